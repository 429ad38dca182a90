// Package permission tracks whether the process is trusted to observe
// system-wide keyboard input.
//
// macOS offers no notification when the user grants or revokes trust, so the
// state is re-validated by polling while it is Denied.
package permission

import (
	"context"
	"sync"
	"time"

	"github.com/skratchdot/open-golang/open"
	"go.uber.org/zap"
)

// State is the cached trust state.
type State int

const (
	StateUnknown State = iota
	StateDenied
	StateGranted
)

func (s State) String() string {
	switch s {
	case StateDenied:
		return "denied"
	case StateGranted:
		return "granted"
	}
	return "unknown"
}

// SettingsURL opens the Input Monitoring pane of System Settings.
const SettingsURL = "x-apple.systempreferences:com.apple.preference.security?Privacy_ListenEvent"

// DefaultPollInterval is how often a Denied state is re-checked.
const DefaultPollInterval = 3 * time.Second

// Checker queries the platform trust API.
type Checker interface {
	// Trusted is a side-effect-free query.
	Trusted() bool
	// Prompt asks the system to show its permission prompt and returns the
	// state at the time of the call.
	Prompt() bool
}

// Manager caches the trust state and notifies subscribers on change.
type Manager struct {
	mu       sync.Mutex
	checker  Checker
	state    State
	prompted bool
	subs     []func(State)
	logger   *zap.Logger

	openURL func(string) error
}

// NewManager returns a manager in StateUnknown.
func NewManager(checker Checker, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		checker: checker,
		logger:  logger,
		openURL: open.Run,
	}
}

// State returns the cached state without touching the platform.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnChange registers fn to be called after every state transition. fn runs
// on the goroutine that caused the transition and must not block.
func (m *Manager) OnChange(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// Recheck queries the platform and updates the cached state. Safe to call
// repeatedly.
func (m *Manager) Recheck() State {
	next := StateDenied
	if m.checker.Trusted() {
		next = StateGranted
	}
	return m.set(next)
}

// Request shows the system prompt once per process, then behaves like
// Recheck.
func (m *Manager) Request() State {
	m.mu.Lock()
	first := !m.prompted
	m.prompted = true
	m.mu.Unlock()

	if !first {
		return m.Recheck()
	}

	next := StateDenied
	if m.checker.Prompt() {
		next = StateGranted
	}
	return m.set(next)
}

// MarkDenied records that monitoring failed in a way that indicates lost
// trust. The next Recheck decides whether that was correct.
func (m *Manager) MarkDenied() {
	m.set(StateDenied)
}

// Poll re-checks at interval until the state is Granted or ctx is done.
func (m *Manager) Poll(ctx context.Context, interval time.Duration) State {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if s := m.Recheck(); s == StateGranted {
		return s
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return m.State()
		case <-ticker.C:
			if s := m.Recheck(); s == StateGranted {
				return s
			}
		}
	}
}

// OpenSettings opens the system pane where the user grants trust.
func (m *Manager) OpenSettings() error {
	return m.openURL(SettingsURL)
}

func (m *Manager) set(next State) State {
	m.mu.Lock()
	prev := m.state
	m.state = next
	subs := append([]func(State){}, m.subs...)
	m.mu.Unlock()

	if prev != next {
		m.logger.Info("permission state changed",
			zap.Stringer("from", prev),
			zap.Stringer("to", next))
		for _, fn := range subs {
			fn(next)
		}
	}
	return next
}
