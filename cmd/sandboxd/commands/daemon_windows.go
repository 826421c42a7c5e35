//go:build windows

package commands

import (
	"errors"
	"os"
	"os/exec"
)

// isProcessRunning reports whether the PID recorded in pidPath belongs to a
// live process. FindProcess opens a handle on Windows, so success is enough.
func isProcessRunning(pidPath string) (int, bool) {
	pid, err := readPidFile(pidPath)
	if err != nil {
		return 0, false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return 0, false
	}
	_ = process.Release()
	return pid, true
}

func detach(*exec.Cmd) error {
	return errors.New("daemon mode is not supported on Windows, use --foreground")
}
