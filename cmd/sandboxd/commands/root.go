// Package commands implements the sandboxd server CLI.
package commands

import (
	"github.com/spf13/cobra"

	auditcmd "github.com/marmos91/sandboxd/cmd/sandboxd/commands/audit"
	configcmd "github.com/marmos91/sandboxd/cmd/sandboxd/commands/config"
	"github.com/marmos91/sandboxd/internal/cli/completion"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "sandboxd",
	Short: "sandboxd - authenticated read-only file server",
	Long: `sandboxd serves a single directory over a small length-prefixed TCP
protocol. Clients authenticate with a shared secret and may then list the
directory, read files from it, and ask for the server time. Nothing outside
the sandbox root is ever reachable, symlinks included.

Use "sandboxd [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/sandboxd/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(configcmd.Cmd)
	rootCmd.AddCommand(auditcmd.Cmd)
	rootCmd.AddCommand(completion.NewCommand("sandboxd"))

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}
