//go:build (linux && cgo) || windows

package inertia

import (
	"github.com/micmonay/keybd_event"
)

func openBackspace() (func() error, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, err
	}
	kb.SetKeys(keybd_event.VK_BACKSPACE)
	return kb.Launching, nil
}
