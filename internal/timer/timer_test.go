package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aayushbajaj/trigcap/internal/capture"
	"github.com/aayushbajaj/trigcap/internal/trigger"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func req(name string, at time.Time) capture.TimerRequest {
	return capture.TimerRequest{Name: name, TriggerID: "03-timer", At: at}
}

func newTestCoordinator() *Coordinator {
	c := NewCoordinator()
	n := 0
	c.newID = func() string {
		n++
		return "timer-" + string(rune('0'+n))
	}
	return c
}

func TestRequestStartsWhenIdle(t *testing.T) {
	c := newTestCoordinator()

	out, conflict := c.Request(req("standup", t0))
	assert.Equal(t, OutcomeStarted, out)
	assert.Nil(t, conflict)

	snap := c.Snapshot(t0.Add(time.Minute))
	assert.True(t, snap.Running)
	assert.Equal(t, "standup", snap.Name)
	assert.Equal(t, time.Minute, snap.Elapsed)
	assert.Nil(t, snap.Pending)
}

func TestConflictCarriesBothTimers(t *testing.T) {
	c := newTestCoordinator()
	c.Request(req("standup", t0))

	out, conflict := c.Request(req("retro", t0.Add(120*time.Second)))
	require.Equal(t, OutcomeConflict, out)
	require.NotNil(t, conflict)
	assert.Equal(t, Conflict{
		Current:   Current{Name: "standup", Tags: []string{}, Elapsed: 120 * time.Second},
		Requested: "retro",
	}, *conflict)

	// Nothing changes until a decision arrives.
	snap := c.Snapshot(t0.Add(121 * time.Second))
	assert.Equal(t, "standup", snap.Name)
	assert.NotNil(t, snap.Pending)
	assert.True(t, c.Pending())
}

func TestRequestsSuspendedWhileConflictPending(t *testing.T) {
	c := newTestCoordinator()
	c.Request(req("a", t0))
	c.Request(req("b", t0))

	out, conflict := c.Request(req("c", t0))
	assert.Equal(t, OutcomeSuspended, out)
	assert.Nil(t, conflict)
	assert.Equal(t, "b", c.Conflict(t0).Requested)
}

func TestResolveStopAndReplace(t *testing.T) {
	c := newTestCoordinator()
	c.Request(req("standup", t0))
	require.NoError(t, c.AddTag("team"))
	c.Request(req("retro", t0.Add(time.Minute)))

	res, err := c.Resolve(DecisionStopAndReplace, t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, res.Started)
	require.NotNil(t, res.Stopped)
	assert.Equal(t, capture.Record{
		ID:        "timer-1",
		Kind:      trigger.KindTimer,
		TriggerID: "03-timer",
		Content:   "standup",
		Tags:      []string{"team"},
		Started:   t0,
		Finished:  t0.Add(2 * time.Minute),
	}, *res.Stopped)

	snap := c.Snapshot(t0.Add(3 * time.Minute))
	assert.Equal(t, "retro", snap.Name)
	assert.Equal(t, time.Minute, snap.Elapsed)
	assert.Empty(t, snap.Tags)
	assert.False(t, c.Pending())
}

func TestResolveCancelNew(t *testing.T) {
	c := newTestCoordinator()
	c.Request(req("standup", t0))
	c.Request(req("retro", t0))

	res, err := c.Resolve(DecisionCancelNew, t0)
	require.NoError(t, err)
	assert.Equal(t, Resolution{}, res)
	assert.Equal(t, "standup", c.Snapshot(t0).Name)
	assert.False(t, c.Pending())
}

func TestResolveErrors(t *testing.T) {
	c := newTestCoordinator()
	_, err := c.Resolve(DecisionCancelNew, t0)
	assert.ErrorIs(t, err, ErrNoConflict)

	c.Request(req("a", t0))
	c.Request(req("b", t0))
	_, err = c.Resolve(Decision(42), t0)
	assert.ErrorIs(t, err, ErrDecision)
	assert.True(t, c.Pending(), "unknown decision leaves the conflict in place")
}

func TestStop(t *testing.T) {
	c := newTestCoordinator()
	_, err := c.Stop(t0)
	assert.ErrorIs(t, err, ErrNotRunning)

	c.Request(req("deep work", t0))
	c.Request(req("other", t0))
	rec, err := c.Stop(t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, time.Hour, rec.Duration())
	assert.False(t, c.Running())
	assert.False(t, c.Pending())
}

func TestRenameAndTags(t *testing.T) {
	c := newTestCoordinator()
	assert.ErrorIs(t, c.Rename("x"), ErrNotRunning)
	assert.ErrorIs(t, c.AddTag("x"), ErrNotRunning)
	assert.ErrorIs(t, c.RemoveTag("x"), ErrNotRunning)

	c.Request(req("", t0))
	require.NoError(t, c.Rename("  planning "))
	require.NoError(t, c.AddTag("work"))
	require.NoError(t, c.AddTag("Q3"))
	require.NoError(t, c.AddTag("WORK"))
	assert.ErrorIs(t, c.AddTag(" "), ErrEmptyTag)

	snap := c.Snapshot(t0)
	assert.Equal(t, "planning", snap.Name)
	assert.Equal(t, []string{"work", "Q3"}, snap.Tags)

	require.NoError(t, c.RemoveTag("work"))
	require.NoError(t, c.RemoveTag("missing"))
	assert.Equal(t, []string{"Q3"}, c.Snapshot(t0).Tags)
}

func TestSnapshotIsACopy(t *testing.T) {
	c := newTestCoordinator()
	c.Request(req("a", t0))
	c.AddTag("x")

	snap := c.Snapshot(t0)
	snap.Tags[0] = "mutated"
	assert.Equal(t, []string{"x"}, c.Snapshot(t0).Tags)
}

func TestSuggestTags(t *testing.T) {
	known := []string{"meetings", "deep-work", "email", "design"}

	assert.Equal(t, []string{"deep-work", "design", "email", "meetings"}, SuggestTags("", known, 0))
	assert.Equal(t, []string{"deep-work", "design"}, SuggestTags("", known, 2))

	got := SuggestTags("dsg", known, 0)
	require.NotEmpty(t, got)
	assert.Equal(t, "design", got[0])

	assert.Empty(t, SuggestTags("zzz", known, 0))
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "conflict", OutcomeConflict.String())
	assert.Equal(t, "stop-and-replace", DecisionStopAndReplace.String())
	assert.Equal(t, "cancel-new", DecisionCancelNew.String())
}
