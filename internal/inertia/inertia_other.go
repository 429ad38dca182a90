//go:build !darwin && !(linux && cgo) && !windows

package inertia

func openBackspace() (func() error, error) {
	return nil, ErrUnsupported
}
