package context

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/sandboxd/cmd/sandboxctl/cmdutil"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a context",
	Long: `Delete a saved context and its secret.

Examples:
  # Delete context named "staging"
  sandboxctl context delete staging

  # Delete without confirmation
  sandboxctl context delete staging --force`,
	Args: cobra.ExactArgs(1),
	RunE: runContextDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation")
}

func runContextDelete(cmd *cobra.Command, args []string) error {
	name := args[0]

	store, err := openStore()
	if err != nil {
		return err
	}

	if _, err := store.Get(name); err != nil {
		return fmt.Errorf("context '%s' not found", name)
	}

	return cmdutil.RunDeleteWithConfirmation(cmd.OutOrStdout(), "Context", name, deleteForce, func() error {
		return store.Delete(name)
	})
}
