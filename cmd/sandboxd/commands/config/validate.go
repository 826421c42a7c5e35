package config

import (
	"fmt"
	"net"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/marmos91/sandboxd/internal/cli/output"
	"github.com/marmos91/sandboxd/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the sandboxd configuration file.

Checks for syntax errors, missing required fields, and invalid values, then
reports settings that are legal but probably unintended.

Examples:
  # Validate default config
  sandboxd config validate

  # Validate specific config file
  sandboxd config validate --config /etc/sandboxd/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)

	cfg, err := config.MustLoad(path)
	if err != nil {
		return err
	}

	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	out := cmd.OutOrStdout()
	printer := output.NewPrinter(out, output.FormatTable, output.ColorSupported(out))
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", path)
	printer.Success("Validation: OK")

	if warnings := Warnings(cfg); len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			printer.Warning("  - " + w)
		}
	}

	auditBackend := "disabled"
	if cfg.Audit.Enabled {
		auditBackend = string(cfg.Audit.Type)
	}

	_, _ = fmt.Fprintf(out, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(out, "  Listen address:  %s\n", net.JoinHostPort(cfg.Server.BindAddress, fmt.Sprint(cfg.Server.Port)))
	_, _ = fmt.Fprintf(out, "  Sandbox root:    %s\n", cfg.Sandbox.Root)
	_, _ = fmt.Fprintf(out, "  Max file size:   %s\n", humanize.IBytes(uint64(cfg.Sandbox.MaxFileSize)))
	_, _ = fmt.Fprintf(out, "  Max frame size:  %s\n", humanize.IBytes(uint64(cfg.Server.MaxFrameSize)))
	_, _ = fmt.Fprintf(out, "  Audit backend:   %s\n", auditBackend)
	_, _ = fmt.Fprintf(out, "  Log level:       %s\n", cfg.Logging.Level)

	return nil
}

// Warnings reports legal settings that are likely mistakes.
func Warnings(cfg *config.Config) []string {
	var warnings []string

	if cfg.Auth.Token != "" {
		warnings = append(warnings, "shared secret stored in plaintext; consider 'sandboxd init --hash-token'")
	}

	if ip := net.ParseIP(cfg.Server.BindAddress); ip == nil || !ip.IsLoopback() {
		warnings = append(warnings, "listening on a non-loopback address; traffic, including the shared secret, is not encrypted")
	}

	if info, err := os.Stat(cfg.Sandbox.Root); err != nil {
		if !cfg.Sandbox.CreateRoot {
			warnings = append(warnings, fmt.Sprintf("sandbox root %s does not exist and create_root is false", cfg.Sandbox.Root))
		}
	} else if !info.IsDir() {
		warnings = append(warnings, fmt.Sprintf("sandbox root %s is not a directory", cfg.Sandbox.Root))
	}

	if uint64(cfg.Sandbox.MaxFileSize)+4 > uint64(cfg.Server.MaxFrameSize) {
		warnings = append(warnings, "max_file_size exceeds max_frame_size; clients with the default frame limit cannot receive the largest files")
	}

	return warnings
}
