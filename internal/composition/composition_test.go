package composition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aayushbajaj/trigcap/internal/keymap"
)

func letter(s string) Key {
	return Key{Class: keymap.ClassPrintable, Text: s, IME: true}
}

func TestDisabledForwardsEverything(t *testing.T) {
	g := New(false)
	for _, k := range []Key{letter("n"), letter("i"), {Class: keymap.ClassSpace, Text: " ", IME: true}} {
		res := g.Observe(k)
		assert.True(t, res.Forward)
		assert.Equal(t, k.Text, res.Text)
		assert.False(t, g.Composing())
	}
}

func TestNoIMEForwards(t *testing.T) {
	g := New(true)
	res := g.Observe(Key{Class: keymap.ClassPrintable, Text: "/"})
	assert.True(t, res.Forward)
	assert.Equal(t, "/", res.Text)
	assert.False(t, g.Composing())
}

func TestPendingKeysAreHeldUntilCommit(t *testing.T) {
	g := New(true)

	for _, s := range []string{"n", "i", "h", "a", "o"} {
		res := g.Observe(letter(s))
		assert.False(t, res.Forward, "pending %q must not be forwarded", s)
		assert.True(t, g.Composing())
	}

	res := g.Observe(Key{Class: keymap.ClassSpace, Text: " ", IME: true, Committed: "你好"})
	require.True(t, res.Forward)
	assert.Equal(t, "你好", res.Text)
	assert.Equal(t, keymap.ClassPrintable, res.Class)
	assert.False(t, g.Composing())
}

func TestReturnCommitsWithoutBeingAReturn(t *testing.T) {
	g := New(true)
	g.Observe(letter("k"))

	res := g.Observe(Key{Class: keymap.ClassReturn, IME: true, Committed: "k"})
	assert.Equal(t, keymap.ClassPrintable, res.Class)
	assert.Equal(t, "k", res.Text)

	res = g.Observe(Key{Class: keymap.ClassReturn, IME: true})
	assert.Equal(t, keymap.ClassReturn, res.Class)
	assert.True(t, res.Forward)
}

func TestDigitSelectsCandidate(t *testing.T) {
	g := New(true)
	g.Observe(letter("a"))
	res := g.Observe(Key{Class: keymap.ClassPrintable, Text: "2", IME: true, Committed: "阿"})
	assert.Equal(t, "阿", res.Text)
	assert.False(t, g.Composing())
}

func TestBackspaceUnwindsComposition(t *testing.T) {
	g := New(true)
	g.Observe(letter("a"))
	g.Observe(letter("b"))

	res := g.Observe(Key{Class: keymap.ClassBackspace, IME: true})
	assert.False(t, res.Forward)
	assert.True(t, g.Composing())

	g.Observe(Key{Class: keymap.ClassBackspace, IME: true})
	assert.False(t, g.Composing())

	res = g.Observe(Key{Class: keymap.ClassBackspace, IME: true})
	assert.True(t, res.Forward, "backspace with nothing pending reaches the engine")
}

func TestEscapeAbortsCompositionOnly(t *testing.T) {
	g := New(true)
	g.Observe(letter("a"))

	res := g.Observe(Key{Class: keymap.ClassEscape, IME: true})
	assert.False(t, res.Forward, "escape inside a composition must not cancel a capture")
	assert.False(t, g.Composing())
}

func TestPunctuationOutsideCompositionUsesCommittedText(t *testing.T) {
	g := New(true)
	res := g.Observe(Key{Class: keymap.ClassPrintable, Text: ".", IME: true, Committed: "。"})
	assert.True(t, res.Forward)
	assert.Equal(t, "。", res.Text)
}

func TestSourceSwitchDropsComposition(t *testing.T) {
	g := New(true)
	g.Observe(letter("a"))
	require.True(t, g.Composing())

	res := g.Observe(Key{Class: keymap.ClassPrintable, Text: "x"})
	assert.True(t, res.Forward)
	assert.False(t, g.Composing())
}

func TestSetEnabledAndReset(t *testing.T) {
	g := New(true)
	g.Observe(letter("a"))
	g.Reset()
	assert.False(t, g.Composing())

	g.Observe(letter("a"))
	g.SetEnabled(false)
	assert.False(t, g.Composing())
	assert.False(t, g.Enabled())
}

func TestCommitWithoutTextAsksForFocusRead(t *testing.T) {
	g := New(true)
	assert.True(t, g.WouldStart(letter("h")))
	g.Observe(letter("h"))
	assert.False(t, g.WouldStart(letter("i")))
	g.Observe(letter("i"))

	res := g.Observe(Key{Class: keymap.ClassSpace, Text: " ", IME: true})
	assert.False(t, res.Forward)
	assert.True(t, res.ReadFocus)
	assert.False(t, g.Composing())

	// Escape abandons the composition; nothing was inserted.
	g.Observe(letter("h"))
	res = g.Observe(Key{Class: keymap.ClassEscape, IME: true})
	assert.False(t, res.ReadFocus)
}

func TestWouldStartNeedsIMEAndLetter(t *testing.T) {
	g := New(true)
	assert.False(t, g.WouldStart(Key{Class: keymap.ClassPrintable, Text: "h"}))
	assert.False(t, g.WouldStart(Key{Class: keymap.ClassPrintable, Text: "/", IME: true}))
	g.SetEnabled(false)
	assert.False(t, g.WouldStart(letter("h")))
}

func TestInserted(t *testing.T) {
	tests := []struct {
		name, before, after, want string
	}{
		{"append", "///", "///你好", "你好"},
		{"middle", "ab", "a你好b", "你好"},
		{"empty before", "", "hello ", "hello "},
		{"unchanged", "same", "same", ""},
		{"deletion", "abc", "ac", ""},
		{"repeated rune", "aa", "aaa", "a"},
		{"replacement", "a?b", "a。b", "。"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Inserted(tt.before, tt.after))
		})
	}
}
