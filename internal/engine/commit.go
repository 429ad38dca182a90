package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/aayushbajaj/trigcap/internal/composition"
	"github.com/aayushbajaj/trigcap/internal/keylogger"
	"github.com/aayushbajaj/trigcap/internal/keymap"
)

// pendingCommit tracks a composition whose committed text has to be read back
// from the focused element.
type pendingCommit struct {
	// before is the element's value when the composition started.
	before string
	// awaiting is set between the committing key and the read.
	awaiting bool
	ev       keylogger.KeyEvent
	seq      uint64
}

func (p *pendingCommit) abandon() {
	p.before = ""
	p.awaiting = false
	p.seq++
}

// composing reports whether input is held back from the matcher and the
// capture buffer.
func (e *Engine) composing() bool {
	return e.guard.Composing() || e.commit.awaiting
}

// snapshotFocus records the focused value before a composition starts. It
// reports false when the value cannot be read; the key then bypasses
// composition tracking.
func (e *Engine) snapshotFocus() bool {
	before, ok := e.deps.Focus.FocusedText()
	if !ok {
		e.log.Debug("focused text unreadable, composition not tracked")
		return false
	}
	e.commit.before = before
	return true
}

// awaitCommit schedules the read of the focused element after the input
// method had time to insert its text. A later key resolves it sooner.
func (e *Engine) awaitCommit(ev keylogger.KeyEvent) {
	e.commit.awaiting = true
	e.commit.ev = ev
	e.commit.seq++
	seq := e.commit.seq

	ctx := e.ctx
	settle := e.opts.CommitSettle
	go func() {
		t := time.NewTimer(settle)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return
		}
		e.post(ctx, func() {
			if e.commit.awaiting && e.commit.seq == seq {
				e.resolveCommit()
			}
		})
	}()
}

// resolveCommit diffs the focused element against its value before the
// composition and forwards what the input method inserted.
func (e *Engine) resolveCommit() {
	before, ev := e.commit.before, e.commit.ev
	e.commit.abandon()

	now := e.now()
	after, ok := e.deps.Focus.FocusedText()
	if !ok {
		e.log.Debug("focused text unreadable after composition", zap.Int("pid", ev.PID))
	} else if text := keymap.Clean(composition.Inserted(before, after)); text != "" {
		e.handleText(text, ev, now)
	}
	e.finish(e.session.Tick(now, e.composing()))
}
