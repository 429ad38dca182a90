package keylogger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aayushbajaj/trigcap/internal/keymap"
)

type fakeTap struct {
	sink     tapSink
	stop     chan struct{}
	once     sync.Once
	on       atomic.Bool
	enableOK atomic.Bool
	enables  atomic.Int32
	closed   atomic.Bool
}

func newFakeTap() *fakeTap {
	f := &fakeTap{stop: make(chan struct{})}
	f.on.Store(true)
	f.enableOK.Store(true)
	return f
}

func (f *fakeTap) run() { <-f.stop }

func (f *fakeTap) close() {
	f.closed.Store(true)
	f.once.Do(func() { close(f.stop) })
}

func (f *fakeTap) enable() bool {
	f.enables.Add(1)
	if f.enableOK.Load() {
		f.on.Store(true)
	}
	return f.on.Load()
}

func (f *fakeTap) enabled() bool { return f.on.Load() }

func startFake(t *testing.T, opts Options) (*supervisor, *fakeTap, <-chan KeyEvent) {
	t.Helper()
	ft := newFakeTap()
	s := newSupervisor(opts, func(sink tapSink) (tap, error) {
		ft.sink = sink
		return ft, nil
	})
	ch, err := s.Start(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })
	return s, ft, ch
}

func TestDeliversInOrder(t *testing.T) {
	_, ft, ch := startFake(t, Options{Buffer: 8})

	for i := uint16(0); i < 5; i++ {
		ft.sink.deliver(KeyEvent{Code: i})
	}
	for i := uint16(0); i < 5; i++ {
		ev := <-ch
		assert.Equal(t, i, ev.Code)
	}
}

func TestFullBufferDropsWithoutBlocking(t *testing.T) {
	s, ft, _ := startFake(t, Options{Buffer: 2})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			ft.sink.deliver(KeyEvent{Code: keymap.CodeSpace})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deliver blocked on a full buffer")
	}
	assert.Equal(t, uint64(8), s.Health().Dropped)
}

func TestStartTwice(t *testing.T) {
	s, _, _ := startFake(t, Options{})
	_, err := s.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestStartFailure(t *testing.T) {
	s := newSupervisor(Options{}, func(tapSink) (tap, error) {
		return nil, ErrPermissionDenied
	})
	_, err := s.Start(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.False(t, s.Health().Running)
	assert.NoError(t, s.Stop())
}

func TestStopIsReversible(t *testing.T) {
	s, ft, ch := startFake(t, Options{})

	require.NoError(t, s.Stop())
	assert.True(t, ft.closed.Load(), "listener must be torn down")
	_, ok := <-ch
	assert.False(t, ok, "event channel closes on stop")
	assert.False(t, s.Health().Running)

	// Late callbacks after teardown are ignored.
	ft.sink.deliver(KeyEvent{})
	ft.sink.suspended()

	assert.NoError(t, s.Stop())

	_, err := s.Start(context.Background())
	require.NoError(t, err)
	assert.True(t, s.Health().Running)
}

func TestContextCancelStops(t *testing.T) {
	ft := newFakeTap()
	s := newSupervisor(Options{}, func(sink tapSink) (tap, error) {
		ft.sink = sink
		return ft, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := s.Start(ctx)
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancel")
	}
}

func TestSuspensionIsRearmed(t *testing.T) {
	s, ft, _ := startFake(t, Options{Backoff: time.Millisecond})

	ft.on.Store(false)
	ft.sink.suspended()

	require.Eventually(t, func() bool {
		return s.Health().Rearms == 1
	}, time.Second, 5*time.Millisecond)
	assert.True(t, ft.enabled())
	assert.False(t, s.Health().Degraded)
}

func TestSilentDisableDetectedByCheck(t *testing.T) {
	s, ft, _ := startFake(t, Options{Backoff: time.Millisecond, CheckInterval: 5 * time.Millisecond})

	ft.on.Store(false)

	require.Eventually(t, func() bool {
		return s.Health().Rearms >= 1
	}, time.Second, 5*time.Millisecond)
}

func TestRepeatedFailureDegrades(t *testing.T) {
	s, ft, _ := startFake(t, Options{Backoff: time.Millisecond, MaxRearm: 3})

	ft.enableOK.Store(false)
	ft.on.Store(false)
	ft.sink.suspended()

	require.Eventually(t, func() bool {
		return s.Health().Degraded
	}, time.Second, 5*time.Millisecond)

	h := s.Health()
	assert.True(t, errors.Is(h.LastError, ErrListenerLost))
	assert.Equal(t, int32(3), ft.enables.Load())
	assert.True(t, h.Running, "degraded is reported, not a crash")
}

func TestRunLoopExitDegrades(t *testing.T) {
	s, ft, _ := startFake(t, Options{})

	ft.once.Do(func() { close(ft.stop) })

	require.Eventually(t, func() bool {
		return s.Health().Degraded
	}, time.Second, 5*time.Millisecond)
}

func TestSimulatedType(t *testing.T) {
	sim := NewSimulated(16)
	ch, err := sim.Start(context.Background())
	require.NoError(t, err)

	require.NoError(t, sim.Type("/a"))
	assert.Error(t, sim.Type("é"))

	var got []string
	for i := 0; i < 2; i++ {
		ev := <-ch
		got = append(got, keymap.USLayout{}.Translate(ev.Code, ev.Mods))
		assert.Equal(t, 1, ev.PID)
		assert.False(t, ev.Time.IsZero())
	}
	assert.Equal(t, []string{"/", "a"}, got)

	sim.Degrade(nil)
	assert.ErrorIs(t, sim.Health().LastError, ErrListenerLost)

	require.NoError(t, sim.Stop())
	assert.False(t, sim.Send(KeyEvent{}))
	assert.False(t, sim.Running())
}

func TestSimulatedStartError(t *testing.T) {
	sim := NewSimulated(0)
	sim.StartFn = func() error { return ErrPermissionDenied }
	_, err := sim.Start(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
}
