package commands

import (
	"fmt"
	"io"
	"os"
	"os/exec"
)

// daemonPaths returns the PID and log files a background server uses.
func daemonPaths() (pidPath, logPath string) {
	pidPath, logPath = pidFile, logFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}
	if logPath == "" {
		logPath = GetDefaultLogFile()
	}
	return pidPath, logPath
}

// daemonCommand builds the "start --foreground" invocation of this binary.
func daemonCommand(pidPath string) (*exec.Cmd, error) {
	executable, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	args := []string{"start", "--foreground", "--pid-file", pidPath}
	if GetConfigFile() != "" {
		args = append(args, "--config", GetConfigFile())
	}
	return exec.Command(executable, args...), nil
}

// startDaemon re-executes the binary in the foreground, detached from the
// terminal, with its output appended to the log file.
func startDaemon(w io.Writer) error {
	if err := os.MkdirAll(GetDefaultStateDir(), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	pidPath, logPath := daemonPaths()
	if pid, running := isProcessRunning(pidPath); running {
		return fmt.Errorf("sandboxd is already running (PID %d)\nUse 'sandboxd stop' to stop the running instance", pid)
	}
	_ = os.Remove(pidPath)

	cmd, err := daemonCommand(pidPath)
	if err != nil {
		return err
	}

	logOut, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = logOut.Close() }()

	cmd.Stdout = logOut
	cmd.Stderr = logOut
	if err := detach(cmd); err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	_, _ = fmt.Fprintf(w, "sandboxd started in background (PID %d)\n", cmd.Process.Pid)
	_, _ = fmt.Fprintf(w, "  PID file: %s\n", pidPath)
	_, _ = fmt.Fprintf(w, "  Log file: %s\n", logPath)
	_, _ = fmt.Fprintln(w, "\nUse 'sandboxd stop' to stop the server")
	_, _ = fmt.Fprintln(w, "Use 'sandboxd status' to check server status")
	return nil
}
