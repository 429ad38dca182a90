// Package composition tracks whether an input method is in the middle of
// building a character from several keystrokes.
//
// While composing, keystrokes are held back from the trigger matcher and the
// capture buffer. Only text the input method commits is forwarded. When the
// platform cannot attach the committed text to the key event, the guard asks
// the caller to recover it from the focused element (see FocusReader).
package composition

import (
	"unicode"

	"github.com/aayushbajaj/trigcap/internal/keymap"
)

// Key is one key-down as seen by the guard.
type Key struct {
	Class keymap.Class
	// Text is the layout translation of the physical key.
	Text string
	// IME reports whether a composing input method is the active source.
	IME bool
	// Committed carries text the input method finalized with this keystroke,
	// when the platform can observe it.
	Committed string
}

// Result is what the guard lets through for one key.
type Result struct {
	Class keymap.Class
	Text  string
	// Forward is false when the key belongs to a pending composition and must
	// not reach the matcher or the capture session.
	Forward bool
	// ReadFocus is set when a composition ended without Committed text. The
	// caller diffs the focused element to find what was inserted.
	ReadFocus bool
}

// Guard is not safe for concurrent use; the engine owns it on its event loop.
type Guard struct {
	enabled bool
	pending int
}

// New returns a guard. A disabled guard never reports composing and forwards
// every key unchanged.
func New(enabled bool) *Guard {
	return &Guard{enabled: enabled}
}

// Composing reports whether a composition is in progress.
func (g *Guard) Composing() bool {
	return g.enabled && g.pending > 0
}

// Enabled reports whether composition tracking is on.
func (g *Guard) Enabled() bool {
	return g.enabled
}

// SetEnabled toggles composition tracking. Turning it off drops any pending
// composition.
func (g *Guard) SetEnabled(enabled bool) {
	g.enabled = enabled
	if !enabled {
		g.pending = 0
	}
}

// Reset abandons any pending composition, e.g. after a focus change.
func (g *Guard) Reset() {
	g.pending = 0
}

// WouldStart reports whether Observe(k) would open a new composition.
func (g *Guard) WouldStart(k Key) bool {
	return g.enabled && k.IME && g.pending == 0 && startsComposition(k)
}

// Observe feeds one key through the guard.
func (g *Guard) Observe(k Key) Result {
	pass := Result{Class: k.Class, Text: k.Text, Forward: true}

	if !g.enabled {
		return pass
	}
	if !k.IME {
		// Source switched away mid-composition; the input method drops it.
		g.pending = 0
		return pass
	}

	if g.pending == 0 {
		if startsComposition(k) {
			g.pending = 1
			return Result{Class: k.Class}
		}
		if k.Committed != "" {
			return Result{Class: keymap.ClassPrintable, Text: k.Committed, Forward: true}
		}
		return pass
	}

	switch k.Class {
	case keymap.ClassPrintable:
		if isLetter(k.Text) {
			g.pending++
			return Result{Class: k.Class}
		}
		return g.commit(k)
	case keymap.ClassSpace, keymap.ClassReturn:
		return g.commit(k)
	case keymap.ClassBackspace:
		g.pending--
		return Result{Class: k.Class}
	case keymap.ClassEscape:
		g.pending = 0
		return Result{Class: k.Class}
	}
	// Navigation moves the candidate cursor.
	return Result{Class: k.Class}
}

// commit ends the composition. The committing key itself is consumed by the
// input method, so only the committed text moves on.
func (g *Guard) commit(k Key) Result {
	g.pending = 0
	if k.Committed == "" {
		return Result{Class: keymap.ClassNone, ReadFocus: true}
	}
	return Result{Class: keymap.ClassPrintable, Text: k.Committed, Forward: true}
}

func startsComposition(k Key) bool {
	return k.Class == keymap.ClassPrintable && isLetter(k.Text)
}

func isLetter(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
