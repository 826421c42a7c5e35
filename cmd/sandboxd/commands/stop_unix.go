//go:build !windows

package commands

import (
	"os"
	"syscall"
)

// stopSignal picks SIGTERM for a graceful stop and SIGKILL for --force.
func stopSignal(force bool) os.Signal {
	if force {
		return syscall.SIGKILL
	}
	return syscall.SIGTERM
}
