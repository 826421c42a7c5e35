package context

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/sandboxd/internal/cli/credentials"
)

var renameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a context",
	Args:  cobra.ExactArgs(2),
	RunE:  runContextRename,
}

func runContextRename(cmd *cobra.Command, args []string) error {
	oldName, newName := args[0], args[1]

	store, err := openStore()
	if err != nil {
		return err
	}

	if _, err := store.Get(newName); err == nil {
		return fmt.Errorf("context '%s' already exists", newName)
	}

	if err := store.Rename(oldName, newName); err != nil {
		if errors.Is(err, credentials.ErrContextNotFound) {
			return fmt.Errorf("context '%s' not found", oldName)
		}
		return fmt.Errorf("failed to rename context: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Context '%s' renamed to '%s'\n", oldName, newName)
	return nil
}
