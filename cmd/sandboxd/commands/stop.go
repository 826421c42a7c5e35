package commands

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	stopPidFile string
	stopForce   bool
	stopWait    time.Duration
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the sandboxd server",
	Long: `Stop a running sandboxd server.

By default the server is asked to shut down gracefully: it stops accepting
connections and waits for open sessions to end (bounded by
server.shutdown_timeout). Use --force to kill it immediately, and --wait to
block until the process has exited.

Examples:
  # Stop server (uses default PID file)
  sandboxd stop

  # Stop and wait up to 30s for sessions to drain
  sandboxd stop --wait 30s

  # Force stop
  sandboxd stop --force`,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().StringVar(&stopPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/sandboxd/sandboxd.pid)")
	stopCmd.Flags().BoolVarP(&stopForce, "force", "f", false, "Kill the process instead of shutting down gracefully")
	stopCmd.Flags().DurationVar(&stopWait, "wait", 0, "Wait up to this long for the process to exit")
}

func runStop(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	pidPath := stopPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	pid, err := readPidFile(pidPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("PID file not found: %s\n\nIs the server running?", pidPath)
		}
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}

	sig := stopSignal(stopForce)
	_, _ = fmt.Fprintf(out, "Sending %v to process %d...\n", sig, pid)
	if err := process.Signal(sig); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			_, _ = fmt.Fprintln(out, "Server already stopped")
			_ = os.Remove(pidPath)
			return nil
		}
		return fmt.Errorf("failed to send signal: %w", err)
	}

	if stopWait > 0 {
		if !waitForExit(pidPath, stopWait) {
			return fmt.Errorf("process %d still running after %s", pid, stopWait)
		}
		_, _ = fmt.Fprintln(out, "Server stopped")
		return nil
	}

	if stopForce {
		_, _ = fmt.Fprintln(out, "Server terminated")
	} else {
		_, _ = fmt.Fprintln(out, "Shutdown signal sent. Server will stop gracefully.")
	}
	return nil
}

// waitForExit polls until the process recorded in pidPath is gone.
func waitForExit(pidPath string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if _, running := isProcessRunning(pidPath); !running {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// readPidFile parses the PID stored in path.
func readPidFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID in file %s: %q", path, strings.TrimSpace(string(data)))
	}
	return pid, nil
}
