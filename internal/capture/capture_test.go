package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aayushbajaj/trigcap/internal/trigger"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func hit(kind trigger.Kind) trigger.Hit {
	pattern := map[trigger.Kind]string{
		trigger.KindNote:  "///",
		trigger.KindTask:  ",,,",
		trigger.KindTimer: ";;;",
	}[kind]
	return trigger.Hit{
		Definition: trigger.Definition{ID: kind.String(), Pattern: pattern, Kind: kind, Enabled: true},
		At:         t0,
		App:        "com.apple.TextEdit",
	}
}

func newTestMachine(timeout time.Duration) *Machine {
	m := NewMachine(timeout)
	m.newID = func() string { return "rec-1" }
	return m
}

func TestArmNoteGoesStraightToCapturing(t *testing.T) {
	m := newTestMachine(5 * time.Second)

	tr := m.Arm(hit(trigger.KindNote), t0)
	assert.Equal(t, Transition{From: StatusIdle, To: StatusCapturing}, tr)
	assert.True(t, m.Accepting())

	snap := m.Snapshot(t0)
	assert.Equal(t, t0.Add(5*time.Second), snap.Deadline)
	assert.Equal(t, 5*time.Second, snap.Remaining)
	assert.Equal(t, "com.apple.TextEdit", snap.App)
}

func TestNoteCommitProducesRecord(t *testing.T) {
	m := newTestMachine(5 * time.Second)
	m.Arm(hit(trigger.KindNote), t0)

	for _, s := range []string{"h", "e", "l", "l", "o"} {
		require.True(t, m.Input(s))
	}

	tr := m.Commit(t0.Add(2 * time.Second))
	require.NotNil(t, tr.Record)
	assert.Equal(t, StatusCompleted, tr.To)
	assert.Equal(t, ReasonCommit, tr.Reason)
	assert.Equal(t, Record{
		ID:        "rec-1",
		Kind:      trigger.KindNote,
		TriggerID: "note",
		Content:   "hello",
		App:       "com.apple.TextEdit",
		Started:   t0,
		Finished:  t0.Add(2 * time.Second),
	}, *tr.Record)
	assert.Equal(t, 2*time.Second, tr.Record.Duration())
	assert.Equal(t, StatusIdle, m.Status())
}

func TestCommitTrimsAndDropsEmpty(t *testing.T) {
	m := newTestMachine(0)
	m.Arm(hit(trigger.KindTask), t0)
	m.Input("  ")

	tr := m.Commit(t0)
	assert.Nil(t, tr.Record)
	assert.Equal(t, StatusCancelled, tr.To)
	assert.Equal(t, ReasonEmpty, tr.Reason)
	assert.False(t, m.Active())
}

func TestSecondArmIsIgnored(t *testing.T) {
	m := newTestMachine(0)
	m.Arm(hit(trigger.KindNote), t0)
	m.Input("a")

	tr := m.Arm(hit(trigger.KindTask), t0.Add(time.Second))
	assert.False(t, tr.Changed())

	snap := m.Snapshot(t0)
	assert.Equal(t, trigger.KindNote, snap.Kind)
	assert.Equal(t, "a", snap.Content)
}

func TestTimerCollectsNameWhileArmed(t *testing.T) {
	m := newTestMachine(0)

	tr := m.Arm(hit(trigger.KindTimer), t0)
	assert.Equal(t, StatusArmed, tr.To)
	assert.True(t, m.Accepting())

	m.Input("retro")
	tr = m.Commit(t0.Add(time.Second))
	require.NotNil(t, tr.Timer)
	assert.Nil(t, tr.Record)
	assert.Equal(t, StatusArmed, tr.From)
	assert.Equal(t, StatusCompleted, tr.To)
	assert.Equal(t, "retro", tr.Timer.Name)
	assert.Equal(t, "timer", tr.Timer.TriggerID)
}

func TestTimerMayHaveEmptyName(t *testing.T) {
	m := newTestMachine(0)
	m.Arm(hit(trigger.KindTimer), t0)

	tr := m.Commit(t0)
	require.NotNil(t, tr.Timer)
	assert.Equal(t, "", tr.Timer.Name)
}

func TestTimerTimeoutReportsAbandonedName(t *testing.T) {
	m := newTestMachine(5 * time.Second)
	m.Arm(hit(trigger.KindTimer), t0)
	m.Input(" retro ")

	tr := m.Tick(t0.Add(5*time.Second), false)
	assert.Equal(t, StatusCancelled, tr.To)
	assert.Equal(t, ReasonTimeout, tr.Reason)
	assert.Nil(t, tr.Timer)
	require.NotNil(t, tr.Abandoned)
	assert.Equal(t, "retro", tr.Abandoned.Name)
	assert.Equal(t, "timer", tr.Abandoned.TriggerID)

	// Only timeouts abandon; an explicit cancel is the user's choice.
	m.Arm(hit(trigger.KindTimer), t0)
	assert.Nil(t, m.Cancel().Abandoned)

	m.Arm(hit(trigger.KindNote), t0)
	assert.Nil(t, m.Tick(t0.Add(time.Minute), false).Abandoned)
}

func TestEraseRemovesLastRune(t *testing.T) {
	m := newTestMachine(0)
	m.Arm(hit(trigger.KindNote), t0)
	m.Input("héé")

	assert.True(t, m.Erase())
	assert.Equal(t, "hé", m.Snapshot(t0).Content)
	m.Erase()
	m.Erase()
	assert.False(t, m.Erase())
}

func TestInvalidSignalsAreNoOps(t *testing.T) {
	m := newTestMachine(0)

	assert.Equal(t, Transition{}, m.Commit(t0))
	assert.Equal(t, Transition{}, m.Cancel())
	assert.Equal(t, Transition{}, m.Tick(t0, false))
	assert.False(t, m.Input("x"))
	assert.False(t, m.Erase())
	assert.False(t, m.Snapshot(t0).Active())
}

func TestCancelIsIdempotent(t *testing.T) {
	m := newTestMachine(0)
	m.Arm(hit(trigger.KindNote), t0)

	tr := m.Cancel()
	assert.Equal(t, Transition{From: StatusCapturing, To: StatusCancelled, Reason: ReasonCancel}, tr)
	assert.Equal(t, Transition{}, m.Cancel())
}

func TestTimeoutIsNotResetByKeystrokes(t *testing.T) {
	m := newTestMachine(5 * time.Second)
	m.Arm(hit(trigger.KindNote), t0)

	for i := 1; i <= 4; i++ {
		now := t0.Add(time.Duration(i) * time.Second)
		m.Input("x")
		assert.False(t, m.Tick(now, false).Changed(), "tick at %ds", i)
	}

	tr := m.Tick(t0.Add(5*time.Second), false)
	assert.Equal(t, StatusCancelled, tr.To)
	assert.Equal(t, ReasonTimeout, tr.Reason)
	assert.Nil(t, tr.Record)
}

func TestTimeoutScalesWithConfiguredValue(t *testing.T) {
	cancelAfter := func(timeout time.Duration) time.Duration {
		m := newTestMachine(timeout)
		m.Arm(hit(trigger.KindNote), t0)
		for elapsed := time.Second; ; elapsed += time.Second {
			if m.Tick(t0.Add(elapsed), false).Changed() {
				return elapsed
			}
		}
	}

	assert.Equal(t, 10*time.Second, cancelAfter(10*time.Second))
	assert.Equal(t, 5*time.Second, cancelAfter(5*time.Second))
	assert.Equal(t, 2*time.Second, cancelAfter(2*time.Second))
}

func TestComposingSuspendsTimeout(t *testing.T) {
	m := newTestMachine(5 * time.Second)
	m.Arm(hit(trigger.KindNote), t0)

	for i := 1; i <= 60; i++ {
		tr := m.Tick(t0.Add(time.Duration(i)*time.Second), true)
		require.False(t, tr.Changed(), "no timeout while composing (tick %d)", i)
	}
	assert.True(t, m.Snapshot(t0.Add(60*time.Second)).Suspended)

	// Composition started at 1s and ended at 61s: 60s of suspension.
	assert.False(t, m.Tick(t0.Add(61*time.Second), false).Changed())
	assert.Equal(t, t0.Add(65*time.Second), m.Snapshot(t0.Add(61*time.Second)).Deadline)

	assert.False(t, m.Tick(t0.Add(64*time.Second), false).Changed())
	assert.Equal(t, ReasonTimeout, m.Tick(t0.Add(65*time.Second), false).Reason)
}

func TestCommitAfterSuspensionStillWorks(t *testing.T) {
	m := newTestMachine(time.Second)
	m.Arm(hit(trigger.KindNote), t0)
	m.Tick(t0.Add(time.Second), true)
	m.Input("你好")

	tr := m.Commit(t0.Add(30 * time.Second))
	require.NotNil(t, tr.Record)
	assert.Equal(t, "你好", tr.Record.Content)
}

func TestSetTimeoutAppliesToNextSession(t *testing.T) {
	m := newTestMachine(5 * time.Second)
	m.Arm(hit(trigger.KindNote), t0)
	m.SetTimeout(time.Second)

	assert.False(t, m.Tick(t0.Add(2*time.Second), false).Changed())
	m.Cancel()

	m.Arm(hit(trigger.KindNote), t0)
	assert.True(t, m.Tick(t0.Add(time.Second), false).Changed())

	m.SetTimeout(-1)
	assert.Equal(t, DefaultTimeout, m.Timeout())
}

func TestStatusStrings(t *testing.T) {
	assert.Equal(t, "capturing", StatusCapturing.String())
	assert.True(t, StatusCompleted.Terminal())
	assert.False(t, StatusArmed.Terminal())
	assert.Equal(t, "timeout", ReasonTimeout.String())
}
