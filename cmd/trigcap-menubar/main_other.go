//go:build !darwin

package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "trigcap-menubar is only available on macOS; use `trigcap run` or `trigcap watch`.")
	os.Exit(1)
}
