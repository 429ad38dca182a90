package engine

import (
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/aayushbajaj/trigcap/internal/composition"
	"github.com/aayushbajaj/trigcap/internal/keylogger"
	"github.com/aayushbajaj/trigcap/internal/keymap"
	"github.com/aayushbajaj/trigcap/internal/permission"
	"github.com/aayushbajaj/trigcap/internal/trigger"
)

// handleKey runs the translate, guard, match pipeline for one key-down.
func (e *Engine) handleKey(ev keylogger.KeyEvent) {
	if e.perm != permission.StateGranted {
		return
	}

	// The previous commit is in the field by the time the next key arrives.
	if e.commit.awaiting {
		e.resolveCommit()
	}

	now := e.now()

	// A trigger must be typed contiguously in one application.
	if ev.PID != 0 && ev.PID != e.lastPID {
		if e.lastPID != 0 {
			e.resetInput()
		}
		e.lastPID = ev.PID
	}

	class := keymap.Classify(ev.Code)
	var text string
	switch class {
	case keymap.ClassNone:
		return
	case keymap.ClassPrintable, keymap.ClassSpace:
		text = e.deps.Translator.Translate(ev.Code, ev.Mods)
		if text == "" {
			// Shortcut or dead layout data: whatever it did to the text is
			// unknown, so partial triggers are void.
			e.matcher.Reset()
			return
		}
	}

	key := composition.Key{
		Class:     class,
		Text:      text,
		IME:       e.imeActive(),
		Committed: ev.Committed,
	}
	if e.guard.WouldStart(key) && !e.snapshotFocus() {
		key.IME = false
	}

	wasComposing := e.composing()
	res := e.guard.Observe(key)
	if res.ReadFocus {
		e.awaitCommit(ev)
	}
	if wasComposing != e.composing() {
		e.finish(e.session.Tick(now, e.composing()))
	}
	if !res.Forward {
		return
	}

	switch res.Class {
	case keymap.ClassReturn:
		if e.opts.CommitOnReturn && e.session.Accepting() {
			e.finish(e.session.Commit(now))
			return
		}
		e.matcher.Reset()

	case keymap.ClassEscape:
		e.matcher.Reset()
		e.finish(e.session.Cancel())

	case keymap.ClassBackspace:
		if e.session.Accepting() {
			if e.session.Erase() {
				e.sessionChanged(now)
			}
			return
		}
		e.matcher.Backspace()

	case keymap.ClassTab, keymap.ClassNavigation:
		e.matcher.Reset()

	case keymap.ClassPrintable, keymap.ClassSpace:
		e.handleText(res.Text, ev, now)
	}
}

func (e *Engine) handleText(text string, ev keylogger.KeyEvent, now time.Time) {
	fed := false
	for _, r := range text {
		if e.session.Accepting() {
			fed = e.session.Input(string(r)) || fed
			// Triggers typed inside a capture are ignored, not queued.
			if hit, ok := e.matcher.Feed(r, now); ok {
				e.log.Info("trigger ignored, capture in progress",
					zap.String("trigger", hit.Definition.ID))
			}
			continue
		}
		if hit, ok := e.matcher.Feed(r, now); ok {
			hit.App = e.deps.AppName(ev.PID)
			e.arm(hit, now)
		}
	}

	if fed {
		e.sessionChanged(now)
	}
}

func (e *Engine) arm(hit trigger.Hit, now time.Time) {
	if hit.Definition.Kind.IsTimer() && e.timers.Pending() {
		e.log.Info("timer trigger ignored, conflict pending",
			zap.String("trigger", hit.Definition.ID))
		return
	}

	tr := e.session.Arm(hit, now)
	if !tr.Changed() {
		e.log.Info("trigger ignored, capture in progress",
			zap.String("trigger", hit.Definition.ID))
		return
	}
	e.matcher.Reset()
	e.log.Info("trigger fired",
		zap.String("trigger", hit.Definition.ID),
		zap.Stringer("kind", hit.Definition.Kind),
		zap.String("app", hit.App))
	e.finish(tr)

	if e.opts.RemoveTriggerText && e.deps.Eraser != nil {
		n := utf8.RuneCountInString(hit.Definition.Pattern)
		eraser := e.deps.Eraser
		e.erasing.Add(1)
		go func() {
			defer e.erasing.Done()
			if err := eraser.Erase(n); err != nil {
				e.log.Warn("erase trigger text", zap.Error(err))
			}
		}()
	}
}

func (e *Engine) sessionChanged(now time.Time) {
	snap := e.session.Snapshot(now)
	e.emit(func(k Sink) { k.OnSessionChanged(snap) })
}

func (e *Engine) imeActive() bool {
	if !e.guard.Enabled() || e.deps.Focus == nil {
		return false
	}
	if r, ok := e.deps.Translator.(keymap.InputSourceReporter); ok {
		return r.InputMethodActive()
	}
	return false
}
