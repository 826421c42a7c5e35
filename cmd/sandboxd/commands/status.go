package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/sandboxd/internal/cli/health"
	"github.com/marmos91/sandboxd/internal/cli/output"
	"github.com/marmos91/sandboxd/pkg/config"
)

var (
	statusOutput  string
	statusPidFile string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	Long: `Display the current status of the sandboxd server.

The PID file tells whether a daemon is running. The configured listener is
then probed with a bare TCP connect, and /healthz is queried when the
metrics server is enabled.

Examples:
  # Check status (uses default settings)
  sandboxd status

  # Output as JSON
  sandboxd status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/sandboxd/sandboxd.pid)")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// ServerStatus represents the server status information.
type ServerStatus struct {
	Running  bool          `json:"running" yaml:"running"`
	PID      int           `json:"pid,omitempty" yaml:"pid,omitempty"`
	Message  string        `json:"message" yaml:"message"`
	Listener health.Check  `json:"listener" yaml:"listener"`
	Metrics  *health.Check `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// Headers implements output.TableRenderer.
func (s ServerStatus) Headers() []string {
	return []string{"CHECK", "TARGET", "STATUS", "DETAIL"}
}

// Rows implements output.TableRenderer.
func (s ServerStatus) Rows() [][]string {
	process := "stopped"
	detail := s.Message
	if s.PID > 0 {
		process = "running"
		detail = fmt.Sprintf("PID %d", s.PID)
	}

	rows := [][]string{
		{"process", "", process, detail},
		checkRow("listener", s.Listener),
	}
	if s.Metrics != nil {
		rows = append(rows, checkRow("metrics", *s.Metrics))
	}
	return rows
}

func checkRow(name string, c health.Check) []string {
	status := "down"
	if c.OK {
		status = "up"
	}
	return []string{name, c.Target, status, c.Message}
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	status := ServerStatus{Message: "Server is not running"}

	pidPath := statusPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}
	if pid, running := isProcessRunning(pidPath); running {
		status.PID = pid
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	status.Listener = health.Listener(ctx, health.LocalAddr(cfg.Server.BindAddress, cfg.Server.Port))
	if cfg.Metrics.Enabled {
		url := "http://" + health.LocalAddr(cfg.Server.BindAddress, cfg.Metrics.Port) + "/healthz"
		c := health.HTTP(ctx, url)
		status.Metrics = &c
	}

	switch {
	case status.Listener.OK && (status.Metrics == nil || status.Metrics.OK):
		status.Running = true
		status.Message = "Server is running and healthy"
	case status.Listener.OK:
		status.Running = true
		status.Message = "Server is running but unhealthy: " + status.Metrics.Message
	case status.PID > 0:
		status.Running = true
		status.Message = "Process is running but not accepting connections"
	}

	printer := output.NewPrinter(cmd.OutOrStdout(), format, false)
	if format == output.FormatTable {
		printer.Println(status.Message)
		printer.Println()
	}
	return printer.Print(status)
}
