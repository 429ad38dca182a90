//go:build !darwin

package keymap

// Default returns the translator for the current platform.
func Default() Translator {
	return USLayout{}
}
