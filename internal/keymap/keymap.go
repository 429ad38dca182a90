// Package keymap turns physical key codes into the text the active keyboard
// layout produces for them.
//
// Key codes are macOS virtual key codes (Carbon HIToolbox Events.h). The
// translation is layout-aware on darwin and falls back to a US ANSI table
// elsewhere.
package keymap

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Modifiers is the subset of modifier state that affects translation.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModOption
	ModControl
	ModCommand
	ModCapsLock
)

// Has reports whether all of m's bits in other are set.
func (m Modifiers) Has(other Modifiers) bool {
	return m&other == other
}

// FromCGEventFlags converts CGEventFlags bits to Modifiers.
func FromCGEventFlags(flags uint64) Modifiers {
	var m Modifiers
	if flags&(1<<16) != 0 { // kCGEventFlagMaskAlphaShift
		m |= ModCapsLock
	}
	if flags&(1<<17) != 0 { // kCGEventFlagMaskShift
		m |= ModShift
	}
	if flags&(1<<18) != 0 { // kCGEventFlagMaskControl
		m |= ModControl
	}
	if flags&(1<<19) != 0 { // kCGEventFlagMaskAlternate
		m |= ModOption
	}
	if flags&(1<<20) != 0 { // kCGEventFlagMaskCommand
		m |= ModCommand
	}
	return m
}

// Class groups keys by the role they play for the capture engine.
type Class int

const (
	// ClassNone covers function, media and modifier keys.
	ClassNone Class = iota
	// ClassPrintable keys may produce text, depending on the layout.
	ClassPrintable
	ClassSpace
	ClassReturn
	ClassEscape
	ClassBackspace
	ClassTab
	// ClassNavigation keys move the caret and break trigger contiguity.
	ClassNavigation
)

func (c Class) String() string {
	switch c {
	case ClassPrintable:
		return "printable"
	case ClassSpace:
		return "space"
	case ClassReturn:
		return "return"
	case ClassEscape:
		return "escape"
	case ClassBackspace:
		return "backspace"
	case ClassTab:
		return "tab"
	case ClassNavigation:
		return "navigation"
	}
	return "none"
}

// Virtual key codes the engine cares about.
const (
	CodeReturn        uint16 = 0x24
	CodeTab           uint16 = 0x30
	CodeSpace         uint16 = 0x31
	CodeBackspace     uint16 = 0x33
	CodeEscape        uint16 = 0x35
	CodeKeypadEnter   uint16 = 0x4C
	CodeForwardDelete uint16 = 0x75
)

// Classify maps a virtual key code to its Class.
func Classify(code uint16) Class {
	switch code {
	case CodeReturn, CodeKeypadEnter:
		return ClassReturn
	case CodeEscape:
		return ClassEscape
	case CodeBackspace:
		return ClassBackspace
	case CodeTab:
		return ClassTab
	case CodeSpace:
		return ClassSpace
	case CodeForwardDelete,
		0x73, 0x74, 0x77, 0x79, // home, page up, end, page down
		0x7B, 0x7C, 0x7D, 0x7E: // arrows
		return ClassNavigation
	case 0x36, 0x37, 0x38, 0x39, 0x3A, 0x3B, 0x3C, 0x3D, 0x3E, 0x3F, // modifiers, fn
		0x7A, 0x78, 0x63, 0x76, 0x60, 0x61, 0x62, 0x64, 0x65, 0x6D, 0x67, 0x6F, // F1-F12
		0x69, 0x6B, 0x71, 0x6A, 0x40, 0x4F, 0x50, 0x5A, // F13-F20
		0x48, 0x49, 0x4A, 0x72, 0x47: // volume, mute, help, keypad clear
		return ClassNone
	}
	if code <= 0x5F {
		return ClassPrintable
	}
	return ClassNone
}

// Translator produces the text a key would type under the active layout.
// An empty result means the key produces no printable character.
type Translator interface {
	Translate(code uint16, mods Modifiers) string
}

// InputSourceReporter is implemented by translators that can tell whether
// the active input source is an input method that composes characters.
type InputSourceReporter interface {
	InputMethodActive() bool
}

// Clean reduces raw layout output to printable text: control characters and
// the private-use glyphs macOS returns for function keys are dropped, and
// the result is NFC-normalized.
func Clean(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) || unicode.Is(unicode.Co, r) || r == unicode.ReplacementChar {
			continue
		}
		b.WriteRune(r)
	}
	return norm.NFC.String(b.String())
}

// shortcut reports whether the modifier state makes a keystroke a command
// shortcut rather than typed text.
func shortcut(mods Modifiers) bool {
	return mods.Has(ModCommand) || mods.Has(ModControl)
}
