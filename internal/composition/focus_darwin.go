//go:build darwin
// +build darwin

package composition

/*
#cgo LDFLAGS: -framework ApplicationServices -framework CoreFoundation

#include <ApplicationServices/ApplicationServices.h>
#include <stdlib.h>

// Returns a malloc'd UTF-8 copy of the focused element's value, or NULL.
static char *copyFocusedValue(long maxChars) {
    AXUIElementRef system = AXUIElementCreateSystemWide();
    if (system == NULL) {
        return NULL;
    }
    AXUIElementSetMessagingTimeout(system, 0.1);

    CFTypeRef focused = NULL;
    AXError err = AXUIElementCopyAttributeValue(system, kAXFocusedUIElementAttribute, &focused);
    CFRelease(system);
    if (err != kAXErrorSuccess || focused == NULL) {
        return NULL;
    }

    CFTypeRef value = NULL;
    err = AXUIElementCopyAttributeValue((AXUIElementRef)focused, kAXValueAttribute, &value);
    CFRelease(focused);
    if (err != kAXErrorSuccess || value == NULL) {
        return NULL;
    }
    if (CFGetTypeID(value) != CFStringGetTypeID()) {
        CFRelease(value);
        return NULL;
    }

    CFStringRef str = (CFStringRef)value;
    CFIndex length = CFStringGetLength(str);
    if (length > maxChars) {
        CFRelease(value);
        return NULL;
    }
    CFIndex size = CFStringGetMaximumSizeForEncoding(length, kCFStringEncodingUTF8) + 1;
    char *out = malloc(size);
    if (out == NULL) {
        CFRelease(value);
        return NULL;
    }
    if (!CFStringGetCString(str, out, size, kCFStringEncodingUTF8)) {
        free(out);
        out = NULL;
    }
    CFRelease(value);
    return out;
}
*/
import "C"

import "unsafe"

// maxFocusedChars bounds the value copied per read.
const maxFocusedChars = 1 << 16

type axReader struct{}

// DefaultFocusReader reads the focused element through the Accessibility
// API. It needs the same trust the key listener does.
func DefaultFocusReader() FocusReader {
	return axReader{}
}

func (axReader) FocusedText() (string, bool) {
	cs := C.copyFocusedValue(C.long(maxFocusedChars))
	if cs == nil {
		return "", false
	}
	defer C.free(unsafe.Pointer(cs))
	return C.GoString(cs), true
}
