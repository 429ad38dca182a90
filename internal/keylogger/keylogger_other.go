//go:build !darwin

package keylogger

func openUnavailable(tapSink) (tap, error) {
	return nil, ErrNotAvailable
}

// New returns a monitor whose Start always fails with ErrNotAvailable.
// Use Simulated for development on other platforms.
func New(opts Options) Monitor {
	return newSupervisor(opts, openUnavailable)
}

// AppName is not implemented off macOS.
func AppName(pid int) string {
	return ""
}
