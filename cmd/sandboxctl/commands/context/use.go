package context

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/sandboxd/internal/cli/credentials"
)

var useCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Switch to a different context",
	Long: `Switch the current context.

Examples:
  # Switch to context named "staging"
  sandboxctl context use staging`,
	Args: cobra.ExactArgs(1),
	RunE: runContextUse,
}

func runContextUse(cmd *cobra.Command, args []string) error {
	name := args[0]

	store, err := openStore()
	if err != nil {
		return err
	}

	if err := store.Use(name); err != nil {
		if errors.Is(err, credentials.ErrContextNotFound) {
			return fmt.Errorf("context '%s' not found\n\n"+
				"List available contexts:\n"+
				"  sandboxctl context list", name)
		}
		return fmt.Errorf("failed to switch context: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Switched to context: %s\n", name)
	return nil
}
