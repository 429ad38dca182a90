//go:build darwin

package inertia

/*
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation -framework ApplicationServices

#include <CoreGraphics/CoreGraphics.h>
#include <ApplicationServices/ApplicationServices.h>
#include <stdbool.h>

// kVK_Delete
#define BACKSPACE_KEYCODE 51

// Post a key event carrying marker in the user-data field so our own
// listener can recognise and skip it.
static int postKeyEvent(CGKeyCode keycode, bool keyDown, int64_t marker) {
    CGEventRef event = CGEventCreateKeyboardEvent(NULL, keycode, keyDown);
    if (event == NULL) {
        return 0;
    }
    CGEventSetIntegerValueField(event, kCGEventSourceUserData, marker);
    CGEventSetFlags(event, 0);
    CGEventPost(kCGHIDEventTap, event);
    CFRelease(event);
    return 1;
}

static int postBackspace(int64_t marker) {
    if (!postKeyEvent(BACKSPACE_KEYCODE, true, marker)) {
        return 0;
    }
    return postKeyEvent(BACKSPACE_KEYCODE, false, marker);
}

static int isTrusted() {
    return AXIsProcessTrusted();
}
*/
import "C"

import (
	"errors"

	"github.com/aayushbajaj/trigcap/internal/keylogger"
)

func openBackspace() (func() error, error) {
	if C.isTrusted() == 0 {
		return nil, ErrNotTrusted
	}
	return func() error {
		if C.postBackspace(C.int64_t(keylogger.EventMarker)) == 0 {
			return errors.New("CGEventCreateKeyboardEvent failed")
		}
		return nil
	}, nil
}
