// Package keylogger installs a passive, system-wide key-down listener and
// delivers events over a bounded channel in arrival order.
//
// The listener never withholds or modifies events. If the operating system
// disables it, a supervisor re-arms it with bounded retries and exponential
// backoff before reporting the monitor as degraded.
package keylogger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/aayushbajaj/trigcap/internal/keymap"
)

// EventMarker tags synthetic events posted by this process so the listener
// can skip them. Stored in the event source user-data field.
const EventMarker = 0x54524947

var (
	ErrAlreadyRunning   = errors.New("keylogger already running")
	ErrNotAvailable     = errors.New("global input monitoring is not available on this platform")
	ErrPermissionDenied = errors.New("input monitoring permission not granted")
	ErrListenerLost     = errors.New("event listener could not be re-armed")
)

// KeyEvent is one observed key-down.
type KeyEvent struct {
	Code   uint16
	Mods   keymap.Modifiers
	Repeat bool
	// PID is the process the event is targeted at, 0 when unknown.
	PID  int
	Time time.Time
	// Committed is text an input method finalized with this key, when the
	// source can observe it.
	Committed string
}

// Health describes the listener's condition.
type Health struct {
	Running   bool
	Degraded  bool
	Rearms    int
	Dropped   uint64
	LastError error
}

// Monitor is a global key-down listener.
type Monitor interface {
	// Start installs the listener. The channel is closed after Stop, or when
	// ctx is done.
	Start(ctx context.Context) (<-chan KeyEvent, error)
	// Stop removes the listener. Calling Stop when not running is a no-op.
	Stop() error
	Health() Health
}

// Options configures a platform monitor.
type Options struct {
	// Buffer is the event channel capacity. Events arriving while it is full
	// are dropped and counted.
	Buffer int
	// MaxRearm bounds re-arm attempts per suspension.
	MaxRearm int
	// Backoff is the delay before the second attempt; it doubles each time.
	Backoff time.Duration
	// CheckInterval is how often the supervisor verifies the listener is
	// still enabled.
	CheckInterval time.Duration
	Logger        *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Buffer <= 0 {
		o.Buffer = 1000
	}
	if o.MaxRearm <= 0 {
		o.MaxRearm = 5
	}
	if o.Backoff <= 0 {
		o.Backoff = 250 * time.Millisecond
	}
	if o.CheckInterval <= 0 {
		o.CheckInterval = 2 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// tap is the platform listener driven by the supervisor.
type tap interface {
	// run blocks servicing the listener until close is called.
	run()
	close()
	// enable re-enables a suspended listener and reports whether it is now
	// enabled.
	enable() bool
	enabled() bool
}

// tapSink receives callbacks from the platform listener thread.
type tapSink interface {
	deliver(KeyEvent)
	suspended()
}

type openFunc func(sink tapSink) (tap, error)

// supervisor adapts a tap to the Monitor interface.
type supervisor struct {
	opts Options
	open openFunc
	log  *zap.Logger

	mu      sync.Mutex
	running bool
	t       tap
	stopCh  chan struct{}
	runDone chan struct{}
	supDone chan struct{}

	sendMu  sync.RWMutex
	events  chan KeyEvent
	closed  bool
	suspend chan struct{}

	dropped atomic.Uint64

	hmu    sync.Mutex
	health Health
}

func newSupervisor(opts Options, open openFunc) *supervisor {
	opts = opts.withDefaults()
	return &supervisor{
		opts: opts,
		open: open,
		log:  opts.Logger,
	}
}

func (s *supervisor) Start(ctx context.Context) (<-chan KeyEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil, ErrAlreadyRunning
	}

	s.sendMu.Lock()
	s.events = make(chan KeyEvent, s.opts.Buffer)
	s.closed = false
	s.suspend = make(chan struct{}, 1)
	s.sendMu.Unlock()

	t, err := s.open(s)
	if err != nil {
		s.sendMu.Lock()
		s.closed = true
		close(s.events)
		s.sendMu.Unlock()
		return nil, err
	}

	s.t = t
	s.running = true
	s.stopCh = make(chan struct{})
	s.runDone = make(chan struct{})
	s.supDone = make(chan struct{})
	s.setHealth(func(h *Health) {
		*h = Health{Running: true}
	})

	go func(done chan struct{}) {
		defer close(done)
		t.run()
	}(s.runDone)
	go s.supervise(t, s.stopCh, s.runDone, s.supDone)
	go func(stop chan struct{}) {
		select {
		case <-ctx.Done():
			_ = s.Stop()
		case <-stop:
		}
	}(s.stopCh)

	s.log.Info("keylogger started", zap.Int("buffer", s.opts.Buffer))
	return s.events, nil
}

func (s *supervisor) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	close(s.stopCh)
	s.t.close()
	<-s.runDone
	<-s.supDone
	s.t = nil

	s.sendMu.Lock()
	s.closed = true
	close(s.events)
	s.sendMu.Unlock()

	s.setHealth(func(h *Health) {
		h.Running = false
	})
	s.log.Info("keylogger stopped", zap.Uint64("dropped", s.dropped.Load()))
	return nil
}

func (s *supervisor) Health() Health {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	h := s.health
	h.Dropped = s.dropped.Load()
	return h
}

func (s *supervisor) setHealth(fn func(*Health)) {
	s.hmu.Lock()
	fn(&s.health)
	s.hmu.Unlock()
}

// deliver runs on the listener thread and must return quickly.
func (s *supervisor) deliver(ev KeyEvent) {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		s.dropped.Add(1)
	}
}

func (s *supervisor) suspended() {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.suspend <- struct{}{}:
	default:
	}
}

func (s *supervisor) supervise(t tap, stop, runDone, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.opts.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-runDone:
			select {
			case <-stop:
				return
			default:
			}
			s.degrade(fmt.Errorf("%w: run loop exited", ErrListenerLost))
			return
		case <-s.suspend:
			if !s.rearm(t, stop) {
				return
			}
		case <-ticker.C:
			if !t.enabled() && !s.rearm(t, stop) {
				return
			}
		}
	}
}

// rearm reports whether the listener is healthy afterwards.
func (s *supervisor) rearm(t tap, stop chan struct{}) bool {
	backoff := s.opts.Backoff
	for attempt := 1; attempt <= s.opts.MaxRearm; attempt++ {
		if t.enabled() || t.enable() {
			s.setHealth(func(h *Health) {
				h.Rearms++
				h.Degraded = false
			})
			s.log.Warn("event listener re-armed", zap.Int("attempt", attempt))
			return true
		}

		s.log.Warn("event listener re-arm failed",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff))

		select {
		case <-stop:
			return false
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	s.degrade(fmt.Errorf("%w after %d attempts", ErrListenerLost, s.opts.MaxRearm))
	return false
}

func (s *supervisor) degrade(err error) {
	s.setHealth(func(h *Health) {
		h.Degraded = true
		h.LastError = err
	})
	s.log.Error("event listener degraded", zap.Error(err))
}
