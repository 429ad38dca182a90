// Package capture owns the lifecycle of a single capture session, from the
// moment a trigger fires until the content is committed or dropped.
package capture

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/aayushbajaj/trigcap/internal/trigger"
)

// DefaultTimeout bounds the total lifetime of a session.
const DefaultTimeout = 10 * time.Second

// Status of the current session. StatusIdle means there is none.
type Status int

const (
	StatusIdle Status = iota
	StatusArmed
	StatusCapturing
	StatusFinalizing
	StatusCancelled
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusArmed:
		return "armed"
	case StatusCapturing:
		return "capturing"
	case StatusFinalizing:
		return "finalizing"
	case StatusCancelled:
		return "cancelled"
	case StatusCompleted:
		return "completed"
	}
	return "unknown"
}

// Terminal reports whether the status ends a session.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Reason explains why a session ended.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonCommit
	ReasonCancel
	ReasonTimeout
	ReasonEmpty
)

func (r Reason) String() string {
	switch r {
	case ReasonCommit:
		return "commit"
	case ReasonCancel:
		return "cancel"
	case ReasonTimeout:
		return "timeout"
	case ReasonEmpty:
		return "empty"
	}
	return "none"
}

// Record is a finalized capture handed to collaborators.
type Record struct {
	ID        string       `json:"id" yaml:"id"`
	Kind      trigger.Kind `json:"kind" yaml:"kind"`
	TriggerID string       `json:"trigger_id,omitempty" yaml:"trigger_id,omitempty"`
	Content   string       `json:"content" yaml:"content"`
	Tags      []string     `json:"tags,omitempty" yaml:"tags,omitempty"`
	App       string       `json:"app,omitempty" yaml:"app,omitempty"`
	Started   time.Time    `json:"started" yaml:"started"`
	Finished  time.Time    `json:"finished" yaml:"finished"`
}

// Duration is the wall time the record spans.
func (r Record) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// TimerRequest is produced when a timer trigger's name has been collected.
type TimerRequest struct {
	Name      string
	TriggerID string
	App       string
	At        time.Time
}

// Transition describes a status change caused by one signal. The zero value
// means the signal was a no-op.
type Transition struct {
	From   Status
	To     Status
	Reason Reason
	Record *Record
	Timer  *TimerRequest
	// Abandoned is set when a timer session timed out before its name was
	// confirmed. No timer is started for it.
	Abandoned *TimerRequest
}

// Changed reports whether the signal moved the session.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Snapshot is a read-only copy of the session for display.
type Snapshot struct {
	Status    Status
	TriggerID string
	Pattern   string
	Kind      trigger.Kind
	Content   string
	App       string
	Started   time.Time
	Deadline  time.Time
	Remaining time.Duration
	Suspended bool
}

// Active reports whether a session exists.
func (s Snapshot) Active() bool {
	return s.Status != StatusIdle
}

type session struct {
	def      trigger.Definition
	app      string
	content  []rune
	started  time.Time
	deadline time.Time
	status   Status
	// suspendedAt is set while the input method is composing.
	suspendedAt time.Time
}

// Machine holds at most one session. Every method is total: a signal that is
// not valid for the current status returns the zero Transition.
//
// Machine is not safe for concurrent use.
type Machine struct {
	timeout time.Duration
	cur     *session
	newID   func() string
}

// NewMachine returns an idle machine. A non-positive timeout selects
// DefaultTimeout.
func NewMachine(timeout time.Duration) *Machine {
	m := &Machine{newID: func() string { return ulid.Make().String() }}
	m.SetTimeout(timeout)
	return m
}

// SetTimeout changes the timeout for sessions armed from now on.
func (m *Machine) SetTimeout(timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	m.timeout = timeout
}

// Timeout returns the configured session timeout.
func (m *Machine) Timeout() time.Duration {
	return m.timeout
}

// Status returns the current status.
func (m *Machine) Status() Status {
	if m.cur == nil {
		return StatusIdle
	}
	return m.cur.status
}

// Active reports whether a session exists.
func (m *Machine) Active() bool {
	return m.cur != nil
}

// Accepting reports whether typed text goes into the session.
func (m *Machine) Accepting() bool {
	if m.cur == nil {
		return false
	}
	switch m.cur.status {
	case StatusCapturing:
		return true
	case StatusArmed:
		return m.cur.def.Kind.IsTimer()
	}
	return false
}

// Arm starts a session for hit. Note and task triggers go straight to
// Capturing; timer triggers stay Armed while the event name is typed. If a
// session is already active the hit is ignored.
func (m *Machine) Arm(hit trigger.Hit, now time.Time) Transition {
	if m.cur != nil {
		return Transition{}
	}

	s := &session{
		def:      hit.Definition,
		app:      hit.App,
		started:  now,
		deadline: now.Add(m.timeout),
		status:   StatusCapturing,
	}
	if hit.Definition.Kind.IsTimer() {
		s.status = StatusArmed
	}
	m.cur = s
	return Transition{From: StatusIdle, To: s.status}
}

// Input appends committed text to the session. It does not move the
// deadline.
func (m *Machine) Input(text string) bool {
	if !m.Accepting() || text == "" {
		return false
	}
	m.cur.content = append(m.cur.content, []rune(text)...)
	return true
}

// Erase removes the last rune of the session content.
func (m *Machine) Erase() bool {
	if !m.Accepting() || len(m.cur.content) == 0 {
		return false
	}
	m.cur.content = m.cur.content[:len(m.cur.content)-1]
	return true
}

// Commit finalizes the session. Note and task sessions yield a Record, or
// end cancelled when nothing but whitespace was typed. Timer sessions yield a
// TimerRequest carrying the collected name.
func (m *Machine) Commit(now time.Time) Transition {
	if !m.Accepting() {
		return Transition{}
	}
	s := m.cur
	from := s.status
	s.status = StatusFinalizing

	text := strings.TrimSpace(string(s.content))
	t := Transition{From: from, Reason: ReasonCommit}

	switch s.def.Kind {
	case trigger.KindTimer:
		t.Timer = &TimerRequest{
			Name:      text,
			TriggerID: s.def.ID,
			App:       s.app,
			At:        now,
		}
		t.To = StatusCompleted
	case trigger.KindNote, trigger.KindTask:
		if text == "" {
			t.To = StatusCancelled
			t.Reason = ReasonEmpty
			break
		}
		t.Record = &Record{
			ID:        m.newID(),
			Kind:      s.def.Kind,
			TriggerID: s.def.ID,
			Content:   text,
			App:       s.app,
			Started:   s.started,
			Finished:  now,
		}
		t.To = StatusCompleted
	}

	m.cur = nil
	return t
}

// Cancel drops the session without a record. Cancelling when idle is a
// no-op.
func (m *Machine) Cancel() Transition {
	return m.cancel(ReasonCancel)
}

func (m *Machine) cancel(reason Reason) Transition {
	if m.cur == nil {
		return Transition{}
	}
	from := m.cur.status
	m.cur = nil
	return Transition{From: from, To: StatusCancelled, Reason: reason}
}

// Tick enforces the deadline. While composing is true the deadline is
// suspended: the suspended time is added back once composition ends, and no
// timeout fires.
func (m *Machine) Tick(now time.Time, composing bool) Transition {
	s := m.cur
	if s == nil {
		return Transition{}
	}

	if composing {
		if s.suspendedAt.IsZero() {
			s.suspendedAt = now
		}
		return Transition{}
	}
	if !s.suspendedAt.IsZero() {
		if d := now.Sub(s.suspendedAt); d > 0 {
			s.deadline = s.deadline.Add(d)
		}
		s.suspendedAt = time.Time{}
	}

	if now.Before(s.deadline) {
		return Transition{}
	}
	var abandoned *TimerRequest
	if s.def.Kind.IsTimer() {
		abandoned = &TimerRequest{
			Name:      strings.TrimSpace(string(s.content)),
			TriggerID: s.def.ID,
			App:       s.app,
			At:        now,
		}
	}
	t := m.cancel(ReasonTimeout)
	t.Abandoned = abandoned
	return t
}

// Snapshot copies the session state.
func (m *Machine) Snapshot(now time.Time) Snapshot {
	s := m.cur
	if s == nil {
		return Snapshot{Status: StatusIdle}
	}

	deadline := s.deadline
	if !s.suspendedAt.IsZero() && now.After(s.suspendedAt) {
		deadline = deadline.Add(now.Sub(s.suspendedAt))
	}
	remaining := deadline.Sub(now)
	if remaining < 0 {
		remaining = 0
	}

	return Snapshot{
		Status:    s.status,
		TriggerID: s.def.ID,
		Pattern:   s.def.Pattern,
		Kind:      s.def.Kind,
		Content:   string(s.content),
		App:       s.app,
		Started:   s.started,
		Deadline:  deadline,
		Remaining: remaining,
		Suspended: !s.suspendedAt.IsZero(),
	}
}
