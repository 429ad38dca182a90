package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aayushbajaj/trigcap/internal/capture"
	"github.com/aayushbajaj/trigcap/internal/timer"
	"github.com/aayushbajaj/trigcap/internal/trigger"
)

// do runs fn on the engine goroutine and waits for it.
func (e *Engine) do(ctx context.Context, fn func()) error {
	if !e.started.Load() {
		return ErrNotRunning
	}
	done := make(chan struct{})
	if !e.post(ctx, func() {
		defer close(done)
		fn()
	}) {
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrNotRunning
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrNotRunning
	}
}

// Commit finalizes the active capture session, if any.
func (e *Engine) Commit(ctx context.Context) error {
	return e.do(ctx, func() {
		e.finish(e.session.Commit(e.now()))
	})
}

// Cancel drops the active capture session. Cancelling nothing is a no-op.
func (e *Engine) Cancel(ctx context.Context) error {
	return e.do(ctx, func() {
		e.finish(e.session.Cancel())
	})
}

// ResolveConflict answers the pending timer conflict.
func (e *Engine) ResolveConflict(ctx context.Context, d timer.Decision) (timer.Resolution, error) {
	var (
		res timer.Resolution
		err error
	)
	if derr := e.do(ctx, func() {
		res, err = e.timers.Resolve(d, e.now())
		if err != nil {
			return
		}
		e.log.Info("timer conflict resolved", zap.Stringer("decision", d))
		if res.Stopped != nil {
			rec := *res.Stopped
			e.emit(func(k Sink) { k.OnCaptureCompleted(rec) })
		}
		e.timerChanged()
	}); derr != nil {
		return timer.Resolution{}, derr
	}
	return res, err
}

// StopTimer stops the running timer and returns its record.
func (e *Engine) StopTimer(ctx context.Context) (*capture.Record, error) {
	var (
		rec *capture.Record
		err error
	)
	if derr := e.do(ctx, func() {
		rec, err = e.timers.Stop(e.now())
		if err != nil {
			return
		}
		r := *rec
		e.emit(func(k Sink) { k.OnCaptureCompleted(r) })
		e.timerChanged()
	}); derr != nil {
		return nil, derr
	}
	return rec, err
}

// RenameTimer sets the running timer's event name.
func (e *Engine) RenameTimer(ctx context.Context, name string) error {
	return e.timerEdit(ctx, func() error { return e.timers.Rename(name) })
}

// AddTag tags the running timer.
func (e *Engine) AddTag(ctx context.Context, tag string) error {
	return e.timerEdit(ctx, func() error { return e.timers.AddTag(tag) })
}

// RemoveTag untags the running timer.
func (e *Engine) RemoveTag(ctx context.Context, tag string) error {
	return e.timerEdit(ctx, func() error { return e.timers.RemoveTag(tag) })
}

func (e *Engine) timerEdit(ctx context.Context, fn func() error) error {
	var err error
	if derr := e.do(ctx, func() {
		if err = fn(); err == nil {
			e.timerChanged()
		}
	}); derr != nil {
		return derr
	}
	return err
}

// SetTriggers validates and installs a new trigger set. On error the current
// set stays active.
func (e *Engine) SetTriggers(ctx context.Context, defs []trigger.Definition) error {
	var err error
	if derr := e.do(ctx, func() {
		err = e.setTriggers(defs)
	}); derr != nil {
		return derr
	}
	return err
}

func (e *Engine) setTriggers(defs []trigger.Definition) error {
	if err := e.matcher.Replace(defs); err != nil {
		return err
	}
	e.opts.Triggers = e.matcher.Definitions()
	e.log.Info("triggers replaced", zap.Int("enabled", len(trigger.Enabled(defs))))
	return nil
}

// SetOptions applies new options. Timeout changes affect the next session.
func (e *Engine) SetOptions(ctx context.Context, opts Options) error {
	opts = opts.withDefaults()
	var err error
	if derr := e.do(ctx, func() {
		if opts.Triggers != nil {
			if err = e.setTriggers(opts.Triggers); err != nil {
				return
			}
		}
		opts.Triggers = e.matcher.Definitions()
		if opts.IMEComposition != e.guard.Enabled() {
			e.guard.SetEnabled(opts.IMEComposition)
		}
		e.session.SetTimeout(opts.Timeout)
		e.opts = opts
	}); derr != nil {
		return derr
	}
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}

// ResetWindow discards any partially typed trigger.
func (e *Engine) ResetWindow(ctx context.Context) error {
	return e.do(ctx, e.resetInput)
}

// Snapshot returns a consistent copy of the engine state.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	err := e.do(ctx, func() { s = e.snapshot() })
	return s, err
}
