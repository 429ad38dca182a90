//go:build darwin
// +build darwin

package keylogger

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation -framework ApplicationServices -framework AppKit

#include <stdlib.h>
#include <string.h>
#include <CoreGraphics/CoreGraphics.h>
#include <ApplicationServices/ApplicationServices.h>
#import <AppKit/AppKit.h>

extern void goKeyDown(int keycode, unsigned long long flags, int isRepeat, int pid);
extern void goTapSuspended(void);

#define TRIGCAP_EVENT_MARKER 0x54524947

static CFMachPortRef eventTap = NULL;
static CFRunLoopSourceRef runLoopSource = NULL;
static CFRunLoopRef tapRunLoop = NULL;

static CGEventRef eventCallback(CGEventTapProxy proxy, CGEventType type, CGEventRef event, void *refcon) {
    if (type == kCGEventTapDisabledByTimeout || type == kCGEventTapDisabledByUserInput) {
        if (eventTap != NULL) {
            CGEventTapEnable(eventTap, true);
        }
        goTapSuspended();
        return event;
    }
    if (type != kCGEventKeyDown) {
        return event;
    }
    if (CGEventGetIntegerValueField(event, kCGEventSourceUserData) == TRIGCAP_EVENT_MARKER) {
        return event;
    }

    CGKeyCode keycode = (CGKeyCode)CGEventGetIntegerValueField(event, kCGKeyboardEventKeycode);
    int isRepeat = (int)CGEventGetIntegerValueField(event, kCGKeyboardEventAutorepeat);
    int pid = (int)CGEventGetIntegerValueField(event, kCGEventTargetUnixProcessID);
    goKeyDown((int)keycode, (unsigned long long)CGEventGetFlags(event), isRepeat, pid);
    return event;
}

static int createEventTap() {
    if (eventTap != NULL) {
        return 1;
    }
    eventTap = CGEventTapCreate(
        kCGSessionEventTap,
        kCGHeadInsertEventTap,
        kCGEventTapOptionListenOnly,
        CGEventMaskBit(kCGEventKeyDown),
        eventCallback,
        NULL
    );
    return eventTap != NULL;
}

// runEventLoop must be called on a locked OS thread. It returns after
// stopEventLoop and releases the tap.
static void runEventLoop() {
    if (eventTap == NULL) {
        return;
    }
    tapRunLoop = CFRunLoopGetCurrent();
    CFRetain(tapRunLoop);
    runLoopSource = CFMachPortCreateRunLoopSource(kCFAllocatorDefault, eventTap, 0);
    CFRunLoopAddSource(tapRunLoop, runLoopSource, kCFRunLoopCommonModes);
    CGEventTapEnable(eventTap, true);

    CFRunLoopRun();

    CGEventTapEnable(eventTap, false);
    CFRunLoopRemoveSource(tapRunLoop, runLoopSource, kCFRunLoopCommonModes);
    CFRelease(runLoopSource);
    runLoopSource = NULL;
    CFMachPortInvalidate(eventTap);
    CFRelease(eventTap);
    eventTap = NULL;
    CFRelease(tapRunLoop);
    tapRunLoop = NULL;
}

static void stopEventLoop() {
    if (tapRunLoop != NULL) {
        CFRunLoopStop(tapRunLoop);
    } else if (eventTap != NULL) {
        CFRelease(eventTap);
        eventTap = NULL;
    }
}

static int enableEventTap() {
    if (eventTap == NULL) {
        return 0;
    }
    CGEventTapEnable(eventTap, true);
    return CGEventTapIsEnabled(eventTap) ? 1 : 0;
}

static int isEventTapEnabled() {
    if (eventTap == NULL) {
        return 0;
    }
    return CGEventTapIsEnabled(eventTap) ? 1 : 0;
}

static char *appBundleID(int pid) {
    @autoreleasepool {
        NSRunningApplication *app = [NSRunningApplication runningApplicationWithProcessIdentifier:(pid_t)pid];
        if (app == nil) {
            return NULL;
        }
        NSString *ident = app.bundleIdentifier;
        if (ident == nil) {
            ident = app.localizedName;
        }
        if (ident == nil) {
            return NULL;
        }
        return strdup([ident UTF8String]);
    }
}

static int frontmostPID() {
    @autoreleasepool {
        NSRunningApplication *app = [[NSWorkspace sharedWorkspace] frontmostApplication];
        return app == nil ? 0 : (int)app.processIdentifier;
    }
}
*/
import "C"

import (
	"fmt"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/aayushbajaj/trigcap/internal/keymap"
)

var (
	sinkMu sync.RWMutex
	sink   tapSink
)

//export goKeyDown
func goKeyDown(keycode C.int, flags C.ulonglong, isRepeat C.int, pid C.int) {
	sinkMu.RLock()
	s := sink
	sinkMu.RUnlock()
	if s == nil {
		return
	}

	ev := KeyEvent{
		Code:   uint16(keycode),
		Mods:   keymap.FromCGEventFlags(uint64(flags)),
		Repeat: isRepeat != 0,
		PID:    int(pid),
		Time:   time.Now(),
	}
	// Some targets are not reported on the event; fall back to the
	// frontmost application.
	if ev.PID == 0 {
		ev.PID = int(C.frontmostPID())
	}
	s.deliver(ev)
}

//export goTapSuspended
func goTapSuspended() {
	sinkMu.RLock()
	s := sink
	sinkMu.RUnlock()
	if s != nil {
		s.suspended()
	}
}

type eventTap struct{}

func openEventTap(s tapSink) (tap, error) {
	sinkMu.Lock()
	defer sinkMu.Unlock()

	if C.createEventTap() == 0 {
		return nil, fmt.Errorf("%w: CGEventTapCreate failed", ErrPermissionDenied)
	}
	sink = s
	return eventTap{}, nil
}

func (eventTap) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	C.runEventLoop()
}

func (eventTap) close() {
	C.stopEventLoop()
	sinkMu.Lock()
	sink = nil
	sinkMu.Unlock()
}

func (eventTap) enable() bool {
	return C.enableEventTap() != 0
}

func (eventTap) enabled() bool {
	return C.isEventTapEnabled() != 0
}

// New returns the CGEventTap monitor. Only one may run per process.
func New(opts Options) Monitor {
	return newSupervisor(opts, openEventTap)
}

// AppName returns the bundle identifier of the process, or "" if unknown.
func AppName(pid int) string {
	if pid <= 0 {
		return ""
	}
	cs := C.appBundleID(C.int(pid))
	if cs == nil {
		return ""
	}
	defer C.free(unsafe.Pointer(cs))
	return C.GoString(cs)
}
