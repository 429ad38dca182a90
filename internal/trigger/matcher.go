package trigger

import (
	"sort"
	"time"
)

type compiled struct {
	def   Definition
	runes []rune
}

// Matcher checks each typed character against the enabled trigger set.
// It is not safe for concurrent use; the engine owns it on its event loop.
type Matcher struct {
	defs     []Definition
	patterns []compiled
	window   *Window
}

// NewMatcher validates defs and builds a matcher for the enabled ones.
func NewMatcher(defs []Definition) (*Matcher, error) {
	m := &Matcher{}
	if err := m.Replace(defs); err != nil {
		return nil, err
	}
	return m, nil
}

// Replace swaps the trigger set after validating it. On error the current
// set stays active. The window is cleared either way on success.
func (m *Matcher) Replace(defs []Definition) error {
	if err := Validate(defs); err != nil {
		return err
	}
	m.install(defs)
	return nil
}

func (m *Matcher) install(defs []Definition) {
	m.defs = append([]Definition(nil), defs...)
	m.patterns = compile(defs)
	longest := 0
	for _, p := range m.patterns {
		if len(p.runes) > longest {
			longest = len(p.runes)
		}
	}
	m.window = NewWindow(longest)
}

// compile orders enabled patterns so the first suffix match is the winner:
// longest pattern first, then lowest ID.
func compile(defs []Definition) []compiled {
	var out []compiled
	for _, d := range defs {
		if !d.Enabled || d.Pattern == "" {
			continue
		}
		out = append(out, compiled{def: d, runes: []rune(d.Pattern)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].runes) != len(out[j].runes) {
			return len(out[i].runes) > len(out[j].runes)
		}
		return out[i].def.ID < out[j].def.ID
	})
	return out
}

// Feed appends r to the window and reports a hit if an enabled pattern is
// now a suffix. A hit consumes the window.
func (m *Matcher) Feed(r rune, at time.Time) (Hit, bool) {
	if m.window == nil || m.window.Cap() == 0 {
		return Hit{}, false
	}
	m.window.Push(r)
	for _, p := range m.patterns {
		if m.window.HasSuffix(p.runes) {
			m.window.Reset()
			return Hit{Definition: p.def, At: at}, true
		}
	}
	return Hit{}, false
}

// Backspace drops the last typed character from the window.
func (m *Matcher) Backspace() {
	if m.window != nil {
		m.window.Pop()
	}
}

// Reset clears any partial match, e.g. after a focus change.
func (m *Matcher) Reset() {
	if m.window != nil {
		m.window.Reset()
	}
}

// Pending returns the characters currently held in the window.
func (m *Matcher) Pending() string {
	if m.window == nil {
		return ""
	}
	return m.window.String()
}

// Definitions returns a copy of the full trigger set, disabled ones included.
func (m *Matcher) Definitions() []Definition {
	return append([]Definition(nil), m.defs...)
}

// MaxPatternLen returns the window capacity in runes.
func (m *Matcher) MaxPatternLen() int {
	if m.window == nil {
		return 0
	}
	return m.window.Cap()
}
