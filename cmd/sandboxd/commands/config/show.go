package config

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/sandboxd/internal/cli/output"
	"github.com/marmos91/sandboxd/pkg/config"
)

const redacted = "********"

var (
	showOutput  string
	showSecrets bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective sandboxd configuration: file values merged with
environment overrides and defaults.

Secrets are masked unless --show-secrets is given.

Examples:
  # Show default config as YAML
  sandboxd config show

  # Show as JSON
  sandboxd config show --output json`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
	showCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print the shared secret and database password")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(configPath(cmd))
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	if !showSecrets {
		redact(cfg)
	}

	out := cmd.OutOrStdout()
	switch format {
	case output.FormatJSON:
		return output.PrintJSON(out, cfg)
	default:
		return output.PrintYAML(out, cfg)
	}
}

// redact masks every secret in cfg.
func redact(cfg *config.Config) {
	if cfg.Auth.Token != "" {
		cfg.Auth.Token = redacted
	}
	if cfg.Audit.Postgres.Password != "" {
		cfg.Audit.Postgres.Password = redacted
	}
}
