// Package timer coordinates the single time-tracking session and resolves
// conflicts when a second timer is requested while one is running.
package timer

import (
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/aayushbajaj/trigcap/internal/capture"
	"github.com/aayushbajaj/trigcap/internal/trigger"
)

var (
	ErrNotRunning = errors.New("no timer is running")
	ErrNoConflict = errors.New("no timer conflict is pending")
	ErrEmptyTag   = errors.New("tag is empty")
	ErrDecision   = errors.New("unknown conflict decision")
)

// Outcome of a timer request.
type Outcome int

const (
	// OutcomeStarted means no timer was running and the request started one.
	OutcomeStarted Outcome = iota
	// OutcomeConflict means a timer is running and a decision is required.
	OutcomeConflict
	// OutcomeSuspended means a previous conflict is still awaiting a decision;
	// the request was dropped.
	OutcomeSuspended
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStarted:
		return "started"
	case OutcomeConflict:
		return "conflict"
	case OutcomeSuspended:
		return "suspended"
	}
	return "unknown"
}

// Decision answers a conflict.
type Decision int

const (
	DecisionStopAndReplace Decision = iota + 1
	DecisionCancelNew
)

func (d Decision) String() string {
	switch d {
	case DecisionStopAndReplace:
		return "stop-and-replace"
	case DecisionCancelNew:
		return "cancel-new"
	}
	return "unknown"
}

// Current describes the running timer inside a conflict.
type Current struct {
	Name    string        `json:"name"`
	Tags    []string      `json:"tags"`
	Elapsed time.Duration `json:"elapsed"`
}

// Conflict is surfaced when a timer is requested while another runs.
type Conflict struct {
	Current   Current `json:"current"`
	Requested string  `json:"requested"`
}

// Resolution is the effect of a conflict decision.
type Resolution struct {
	// Stopped is the record of the timer that was replaced, if any.
	Stopped *capture.Record
	// Started is true when the requested timer now runs.
	Started bool
}

// Snapshot is a read-only copy of the timer state.
type Snapshot struct {
	Running bool
	Name    string
	Tags    []string
	Started time.Time
	Elapsed time.Duration
	Pending *Conflict
}

type state struct {
	name      string
	tags      []string
	started   time.Time
	triggerID string
	app       string
}

// Coordinator holds at most one running timer. It is not safe for
// concurrent use.
type Coordinator struct {
	cur     *state
	pending *capture.TimerRequest
	newID   func() string
}

// NewCoordinator returns a coordinator with no timer running.
func NewCoordinator() *Coordinator {
	return &Coordinator{newID: func() string { return ulid.Make().String() }}
}

// Running reports whether a timer is running.
func (c *Coordinator) Running() bool {
	return c.cur != nil
}

// Pending reports whether a conflict awaits a decision.
func (c *Coordinator) Pending() bool {
	return c.pending != nil
}

// Request starts a timer or reports a conflict with the running one. While
// a conflict is pending further requests are dropped.
func (c *Coordinator) Request(req capture.TimerRequest) (Outcome, *Conflict) {
	if c.pending != nil {
		return OutcomeSuspended, nil
	}
	if c.cur == nil {
		c.start(req)
		return OutcomeStarted, nil
	}

	r := req
	c.pending = &r
	return OutcomeConflict, c.conflict(req.At)
}

// Conflict returns the pending conflict as seen at now, or nil.
func (c *Coordinator) Conflict(now time.Time) *Conflict {
	if c.pending == nil {
		return nil
	}
	return c.conflict(now)
}

func (c *Coordinator) conflict(now time.Time) *Conflict {
	return &Conflict{
		Current: Current{
			Name:    c.cur.name,
			Tags:    append([]string{}, c.cur.tags...),
			Elapsed: now.Sub(c.cur.started),
		},
		Requested: c.pending.Name,
	}
}

// Resolve applies the user's decision to the pending conflict.
func (c *Coordinator) Resolve(d Decision, now time.Time) (Resolution, error) {
	if c.pending == nil {
		return Resolution{}, ErrNoConflict
	}

	switch d {
	case DecisionCancelNew:
		c.pending = nil
		return Resolution{}, nil
	case DecisionStopAndReplace:
		req := *c.pending
		c.pending = nil
		rec := c.finish(now)
		req.At = now
		c.start(req)
		return Resolution{Stopped: rec, Started: true}, nil
	}
	return Resolution{}, ErrDecision
}

// Stop finalizes the running timer into a record. A pending conflict is
// dropped with it since there is nothing left to conflict with.
func (c *Coordinator) Stop(now time.Time) (*capture.Record, error) {
	if c.cur == nil {
		return nil, ErrNotRunning
	}
	c.pending = nil
	return c.finish(now), nil
}

// Rename changes the running timer's event name.
func (c *Coordinator) Rename(name string) error {
	if c.cur == nil {
		return ErrNotRunning
	}
	c.cur.name = strings.TrimSpace(name)
	return nil
}

// AddTag adds tag to the running timer. Adding a present tag is a no-op.
func (c *Coordinator) AddTag(tag string) error {
	if c.cur == nil {
		return ErrNotRunning
	}
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ErrEmptyTag
	}
	for _, t := range c.cur.tags {
		if strings.EqualFold(t, tag) {
			return nil
		}
	}
	c.cur.tags = append(c.cur.tags, tag)
	return nil
}

// RemoveTag removes tag from the running timer.
func (c *Coordinator) RemoveTag(tag string) error {
	if c.cur == nil {
		return ErrNotRunning
	}
	tag = strings.TrimSpace(tag)
	for i, t := range c.cur.tags {
		if strings.EqualFold(t, tag) {
			c.cur.tags = append(c.cur.tags[:i], c.cur.tags[i+1:]...)
			return nil
		}
	}
	return nil
}

// Snapshot copies the timer state.
func (c *Coordinator) Snapshot(now time.Time) Snapshot {
	var s Snapshot
	if c.cur != nil {
		s.Running = true
		s.Name = c.cur.name
		s.Tags = append([]string{}, c.cur.tags...)
		s.Started = c.cur.started
		s.Elapsed = now.Sub(c.cur.started)
	}
	s.Pending = c.Conflict(now)
	return s
}

func (c *Coordinator) start(req capture.TimerRequest) {
	c.cur = &state{
		name:      strings.TrimSpace(req.Name),
		started:   req.At,
		triggerID: req.TriggerID,
		app:       req.App,
	}
}

func (c *Coordinator) finish(now time.Time) *capture.Record {
	s := c.cur
	c.cur = nil
	return &capture.Record{
		ID:        c.newID(),
		Kind:      trigger.KindTimer,
		TriggerID: s.triggerID,
		Content:   s.name,
		Tags:      append([]string(nil), s.tags...),
		App:       s.app,
		Started:   s.started,
		Finished:  now,
	}
}
