//go:build !darwin
// +build !darwin

package composition

// DefaultFocusReader returns nil; focused element values cannot be read on
// this platform.
func DefaultFocusReader() FocusReader {
	return nil
}
