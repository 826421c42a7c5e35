// Package commands implements the sandboxctl client CLI.
package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/sandboxd/cmd/sandboxctl/cmdutil"
	contextcmd "github.com/marmos91/sandboxd/cmd/sandboxctl/commands/context"
	"github.com/marmos91/sandboxd/internal/cli/completion"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "sandboxctl",
	Short: "sandboxctl - client for sandboxd",
	Long: `sandboxctl talks to a sandboxd server. It can open an interactive
session or run a single command (list, read, time) and print the result.

The server address and shared secret come from, in order: the --addr and
--token flags, the SANDBOXCTL_TOKEN environment variable, and the context
saved by 'sandboxctl login'. Without a secret sandboxctl asks for one.

Use "sandboxctl [command] --help" for more information about a command.`,
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
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cmdutil.Flags.Addr, "addr", "", "Server address (default: saved context or "+cmdutil.DefaultAddr+")")
	flags.StringVar(&cmdutil.Flags.Token, "token", "", "Shared secret (default: $"+cmdutil.TokenEnv+" or saved context)")
	flags.StringVar(&cmdutil.Flags.Context, "context", "", "Use this saved context instead of the current one")
	flags.StringVarP(&cmdutil.Flags.Output, "output", "o", "table", "Output format (table|json|yaml)")
	flags.DurationVar(&cmdutil.Flags.Timeout, "timeout", 10*time.Second, "Per-request timeout")
	flags.BoolVar(&cmdutil.Flags.NoColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(contextcmd.Cmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(timeCmd)
	rootCmd.AddCommand(completion.NewCommand("sandboxctl"))

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
