//go:build !darwin

package permission

type deniedChecker struct{}

// DefaultChecker returns the platform trust checker. Input monitoring is
// only implemented on macOS, so elsewhere trust is never granted.
func DefaultChecker() Checker {
	return deniedChecker{}
}

func (deniedChecker) Trusted() bool { return false }

func (deniedChecker) Prompt() bool { return false }
