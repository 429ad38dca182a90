package permission

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	trusted atomic.Bool
	prompts atomic.Int32
	checks  atomic.Int32
}

func (f *fakeChecker) Trusted() bool {
	f.checks.Add(1)
	return f.trusted.Load()
}

func (f *fakeChecker) Prompt() bool {
	f.prompts.Add(1)
	return f.trusted.Load()
}

func TestStartsUnknown(t *testing.T) {
	m := NewManager(&fakeChecker{}, nil)
	assert.Equal(t, StateUnknown, m.State())
}

func TestRecheckTransitions(t *testing.T) {
	c := &fakeChecker{}
	m := NewManager(c, nil)

	var mu sync.Mutex
	var seen []State
	m.OnChange(func(s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	assert.Equal(t, StateDenied, m.Recheck())
	assert.Equal(t, StateDenied, m.Recheck())

	c.trusted.Store(true)
	assert.Equal(t, StateGranted, m.Recheck())

	m.MarkDenied()
	assert.Equal(t, StateDenied, m.State())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateDenied, StateGranted, StateDenied}, seen)
}

func TestSubscriberMayRegisterDuringNotify(t *testing.T) {
	c := &fakeChecker{}
	m := NewManager(c, nil)

	var late atomic.Int32
	var once sync.Once
	m.OnChange(func(State) {
		once.Do(func() {
			m.OnChange(func(State) { late.Add(1) })
		})
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Recheck()
		c.trusted.Store(true)
		m.Recheck()
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("notify deadlocked")
	}
	// The late subscriber only sees changes after it registered.
	assert.Equal(t, int32(1), late.Load())
}

func TestRequestPromptsOnce(t *testing.T) {
	c := &fakeChecker{}
	m := NewManager(c, nil)

	assert.Equal(t, StateDenied, m.Request())
	assert.Equal(t, StateDenied, m.Request())
	assert.Equal(t, StateDenied, m.Request())
	assert.Equal(t, int32(1), c.prompts.Load())
}

func TestPollStopsOnceGranted(t *testing.T) {
	c := &fakeChecker{}
	m := NewManager(c, nil)

	go func() {
		time.Sleep(30 * time.Millisecond)
		c.trusted.Store(true)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	state := m.Poll(ctx, 5*time.Millisecond)
	require.Equal(t, StateGranted, state)

	checks := c.checks.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, checks, c.checks.Load(), "polling must stop after Granted")
}

func TestPollHonoursContext(t *testing.T) {
	m := NewManager(&fakeChecker{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Equal(t, StateDenied, m.Poll(ctx, 5*time.Millisecond))
}

func TestOpenSettings(t *testing.T) {
	m := NewManager(&fakeChecker{}, nil)
	var opened string
	m.openURL = func(u string) error {
		opened = u
		return nil
	}

	require.NoError(t, m.OpenSettings())
	assert.Equal(t, SettingsURL, opened)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unknown", StateUnknown.String())
	assert.Equal(t, "denied", StateDenied.String())
	assert.Equal(t, "granted", StateGranted.String())
}
