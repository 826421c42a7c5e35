//go:build windows

package commands

import "os"

// stopSignal picks an interrupt for a graceful stop; --force kills.
func stopSignal(force bool) os.Signal {
	if force {
		return os.Kill
	}
	return os.Interrupt
}
