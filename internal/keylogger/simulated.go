package keylogger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aayushbajaj/trigcap/internal/keymap"
)

// Simulated is a Monitor fed from code. It backs tests and the CLI's
// replay mode.
type Simulated struct {
	mu      sync.Mutex
	buffer  int
	events  chan KeyEvent
	stop    chan struct{}
	health  Health
	PID     int
	StartFn func() error
}

// NewSimulated returns a stopped simulated monitor.
func NewSimulated(buffer int) *Simulated {
	if buffer <= 0 {
		buffer = 64
	}
	return &Simulated{buffer: buffer, PID: 1}
}

func (s *Simulated) Start(ctx context.Context) (<-chan KeyEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.events != nil {
		return nil, ErrAlreadyRunning
	}
	if s.StartFn != nil {
		if err := s.StartFn(); err != nil {
			return nil, err
		}
	}

	s.events = make(chan KeyEvent, s.buffer)
	s.stop = make(chan struct{})
	s.health = Health{Running: true}

	stop := s.stop
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Stop()
		case <-stop:
		}
	}()
	return s.events, nil
}

func (s *Simulated) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.events == nil {
		return nil
	}
	close(s.stop)
	close(s.events)
	s.events = nil
	s.health.Running = false
	return nil
}

func (s *Simulated) Health() Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.health
}

// Running reports whether Start has been called without a matching Stop.
func (s *Simulated) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events != nil
}

// Send delivers ev, blocking while the buffer is full. It reports false if
// the monitor is not running.
func (s *Simulated) Send(ev KeyEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.events == nil {
		return false
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if ev.PID == 0 {
		ev.PID = s.PID
	}
	s.events <- ev
	return true
}

// Key sends a single key code with modifiers.
func (s *Simulated) Key(code uint16, mods keymap.Modifiers) bool {
	return s.Send(KeyEvent{Code: code, Mods: mods})
}

// Type sends the key presses that produce text on a US ANSI layout.
func (s *Simulated) Type(text string) error {
	for _, r := range text {
		code, mods, ok := keymap.USKey(r)
		if !ok {
			return fmt.Errorf("no US key for %q", r)
		}
		if !s.Key(code, mods) {
			return ErrNotAvailable
		}
	}
	return nil
}

// Degrade marks the monitor as having lost its listener.
func (s *Simulated) Degrade(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		err = ErrListenerLost
	}
	s.health.Degraded = true
	s.health.LastError = err
}
