//go:build darwin
// +build darwin

package permission

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework ApplicationServices -framework CoreGraphics -framework Foundation

#include <ApplicationServices/ApplicationServices.h>
#include <CoreGraphics/CoreGraphics.h>
#import <Foundation/Foundation.h>

// Listen-only event taps are gated by Input Monitoring on 10.15+; older
// systems only know the Accessibility trust flag.
static int preflightListenAccess() {
    if (@available(macOS 10.15, *)) {
        return CGPreflightListenEventAccess() ? 1 : 0;
    }
    return AXIsProcessTrusted() ? 1 : 0;
}

static int requestListenAccess() {
    if (@available(macOS 10.15, *)) {
        return CGRequestListenEventAccess() ? 1 : 0;
    }
    NSDictionary *options = @{(__bridge id)kAXTrustedCheckOptionPrompt: @YES};
    return AXIsProcessTrustedWithOptions((__bridge CFDictionaryRef)options) ? 1 : 0;
}
*/
import "C"

type darwinChecker struct{}

// DefaultChecker returns the platform trust checker.
func DefaultChecker() Checker {
	return darwinChecker{}
}

func (darwinChecker) Trusted() bool {
	return C.preflightListenAccess() == 1
}

func (darwinChecker) Prompt() bool {
	return C.requestListenAccess() == 1
}
