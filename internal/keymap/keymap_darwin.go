//go:build darwin
// +build darwin

package keymap

/*
#cgo LDFLAGS: -framework Carbon -framework CoreFoundation

#include <Carbon/Carbon.h>

// Resolves the current layout on every call so input source switches are
// picked up without any notification plumbing.
static int translateKey(uint16_t keyCode, uint32_t modifierKeyState, UniChar *out, int maxLen) {
    TISInputSourceRef source = TISCopyCurrentKeyboardLayoutInputSource();
    if (source == NULL) {
        return -1;
    }
    CFDataRef layoutData = (CFDataRef)TISGetInputSourceProperty(source, kTISPropertyUnicodeKeyLayoutData);
    if (layoutData == NULL) {
        CFRelease(source);
        return -1;
    }
    const UCKeyboardLayout *layout = (const UCKeyboardLayout *)CFDataGetBytePtr(layoutData);

    UInt32 deadKeyState = 0;
    UniCharCount length = 0;
    OSStatus status = UCKeyTranslate(
        layout,
        keyCode,
        kUCKeyActionDown,
        modifierKeyState,
        LMGetKbdType(),
        kUCKeyTranslateNoDeadKeysMask,
        &deadKeyState,
        (UniCharCount)maxLen,
        &length,
        out
    );
    CFRelease(source);
    if (status != noErr) {
        return -1;
    }
    return (int)length;
}

static int inputMethodActive() {
    TISInputSourceRef source = TISCopyCurrentKeyboardInputSource();
    if (source == NULL) {
        return 0;
    }
    CFStringRef type = (CFStringRef)TISGetInputSourceProperty(source, kTISPropertyInputSourceType);
    int result = 0;
    if (type != NULL && CFStringCompare(type, kTISTypeKeyboardInputMode, 0) == kCFCompareEqualTo) {
        result = 1;
    }
    CFRelease(source);
    return result;
}
*/
import "C"

import (
	"unicode/utf16"
	"unsafe"
)

const maxTranslatedUnits = 8

// Carbon EventModifiers bits, already shifted right by 8 as UCKeyTranslate
// expects.
const (
	carbonShift    = 0x02
	carbonCapsLock = 0x04
	carbonOption   = 0x08
	carbonControl  = 0x10
)

// Layout translates through the active keyboard layout with dead keys
// disabled.
type Layout struct{}

// Default returns the translator for the current platform.
func Default() Translator {
	return Layout{}
}

// Translate implements Translator. Platform errors yield "".
func (Layout) Translate(code uint16, mods Modifiers) string {
	if shortcut(mods) {
		return ""
	}
	var state uint32
	if mods.Has(ModShift) {
		state |= carbonShift
	}
	if mods.Has(ModCapsLock) {
		state |= carbonCapsLock
	}
	if mods.Has(ModOption) {
		state |= carbonOption
	}

	var buf [maxTranslatedUnits]C.UniChar
	n := int(C.translateKey(C.uint16_t(code), C.uint32_t(state), &buf[0], C.int(len(buf))))
	if n <= 0 {
		return ""
	}
	units := unsafe.Slice((*uint16)(unsafe.Pointer(&buf[0])), n)
	return Clean(string(utf16.Decode(units)))
}

// InputMethodActive implements InputSourceReporter.
func (Layout) InputMethodActive() bool {
	return C.inputMethodActive() != 0
}

var _ InputSourceReporter = Layout{}
