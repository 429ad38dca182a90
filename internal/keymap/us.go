package keymap

import "unicode"

type keyPair struct {
	plain   rune
	shifted rune
}

// usANSI is the US ANSI layout by virtual key code.
var usANSI = map[uint16]keyPair{
	0x00: {'a', 'A'}, 0x01: {'s', 'S'}, 0x02: {'d', 'D'}, 0x03: {'f', 'F'},
	0x04: {'h', 'H'}, 0x05: {'g', 'G'}, 0x06: {'z', 'Z'}, 0x07: {'x', 'X'},
	0x08: {'c', 'C'}, 0x09: {'v', 'V'}, 0x0B: {'b', 'B'}, 0x0C: {'q', 'Q'},
	0x0D: {'w', 'W'}, 0x0E: {'e', 'E'}, 0x0F: {'r', 'R'}, 0x10: {'y', 'Y'},
	0x11: {'t', 'T'}, 0x12: {'1', '!'}, 0x13: {'2', '@'}, 0x14: {'3', '#'},
	0x15: {'4', '$'}, 0x16: {'6', '^'}, 0x17: {'5', '%'}, 0x18: {'=', '+'},
	0x19: {'9', '('}, 0x1A: {'7', '&'}, 0x1B: {'-', '_'}, 0x1C: {'8', '*'},
	0x1D: {'0', ')'}, 0x1E: {']', '}'}, 0x1F: {'o', 'O'}, 0x20: {'u', 'U'},
	0x21: {'[', '{'}, 0x22: {'i', 'I'}, 0x23: {'p', 'P'}, 0x25: {'l', 'L'},
	0x26: {'j', 'J'}, 0x27: {'\'', '"'}, 0x28: {'k', 'K'}, 0x29: {';', ':'},
	0x2A: {'\\', '|'}, 0x2B: {',', '<'}, 0x2C: {'/', '?'}, 0x2D: {'n', 'N'},
	0x2E: {'m', 'M'}, 0x2F: {'.', '>'}, 0x31: {' ', ' '}, 0x32: {'`', '~'},
	0x41: {'.', '.'}, 0x43: {'*', '*'}, 0x45: {'+', '+'}, 0x4B: {'/', '/'},
	0x4E: {'-', '-'}, 0x51: {'=', '='}, 0x52: {'0', '0'}, 0x53: {'1', '1'},
	0x54: {'2', '2'}, 0x55: {'3', '3'}, 0x56: {'4', '4'}, 0x57: {'5', '5'},
	0x58: {'6', '6'}, 0x59: {'7', '7'}, 0x5B: {'8', '8'}, 0x5C: {'9', '9'},
}

var usReverse = func() map[rune]usKey {
	out := make(map[rune]usKey, 2*len(usANSI))
	// Main block first so keypad duplicates do not shadow it.
	for code := uint16(0); code <= 0x32; code++ {
		p, ok := usANSI[code]
		if !ok {
			continue
		}
		if _, seen := out[p.plain]; !seen {
			out[p.plain] = usKey{code: code}
		}
		if _, seen := out[p.shifted]; !seen {
			out[p.shifted] = usKey{code: code, mods: ModShift}
		}
	}
	return out
}()

type usKey struct {
	code uint16
	mods Modifiers
}

// USLayout translates with a fixed US ANSI table.
type USLayout struct{}

// Translate implements Translator.
func (USLayout) Translate(code uint16, mods Modifiers) string {
	if shortcut(mods) {
		return ""
	}
	p, ok := usANSI[code]
	if !ok {
		return ""
	}
	r := p.plain
	if mods.Has(ModShift) {
		r = p.shifted
	}
	if mods.Has(ModCapsLock) && unicode.IsLetter(p.plain) {
		if mods.Has(ModShift) {
			r = unicode.ToLower(r)
		} else {
			r = unicode.ToUpper(r)
		}
	}
	return Clean(string(r))
}

// USKey returns the key code and modifiers that type r on a US ANSI layout.
func USKey(r rune) (uint16, Modifiers, bool) {
	switch r {
	case '\n':
		return CodeReturn, 0, true
	case '\t':
		return CodeTab, 0, true
	case '\b':
		return CodeBackspace, 0, true
	case 0x1b:
		return CodeEscape, 0, true
	}
	k, ok := usReverse[r]
	return k.code, k.mods, ok
}
