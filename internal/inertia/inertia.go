// Package inertia synthesizes backspaces into the foreground application to
// remove trigger text after a trigger fires.
package inertia

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNotTrusted  = errors.New("process is not trusted to post keyboard events")
	ErrUnsupported = errors.New("keystroke synthesis is not supported on this platform")
)

// MaxErase bounds a single Erase call; trigger patterns are short.
const MaxErase = 64

// DefaultInterval separates synthesized key presses so slow applications
// keep up.
const DefaultInterval = 5 * time.Millisecond

// Eraser posts backspace key presses. It is safe for concurrent use; calls
// are serialized so bursts never interleave.
type Eraser struct {
	mu       sync.Mutex
	open     func() (func() error, error)
	post     func() error
	interval time.Duration
	sleep    func(time.Duration)
	log      *zap.Logger
}

// New returns an eraser for the current platform. The platform backend is
// opened on first use.
func New(logger *zap.Logger) *Eraser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Eraser{
		open:     openBackspace,
		interval: DefaultInterval,
		sleep:    time.Sleep,
		log:      logger.Named("inertia"),
	}
}

// Erase presses backspace n times.
func (e *Eraser) Erase(n int) error {
	if n <= 0 {
		return nil
	}
	if n > MaxErase {
		return fmt.Errorf("erase %d characters: limit is %d", n, MaxErase)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.post == nil {
		post, err := e.open()
		if err != nil {
			return fmt.Errorf("open keyboard: %w", err)
		}
		e.post = post
	}

	for i := 0; i < n; i++ {
		if i > 0 && e.interval > 0 {
			e.sleep(e.interval)
		}
		if err := e.post(); err != nil {
			return fmt.Errorf("post backspace %d/%d: %w", i+1, n, err)
		}
	}
	e.log.Debug("erased trigger text", zap.Int("chars", n))
	return nil
}
