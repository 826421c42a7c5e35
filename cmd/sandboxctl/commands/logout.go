package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/sandboxd/internal/cli/credentials"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the secret of the current context",
	Long: `Remove the saved secret from the current context.

The address is kept so a later 'sandboxctl login' only asks for the secret.

Examples:
  # Logout from current context
  sandboxctl logout`,
	Args: cobra.NoArgs,
	RunE: runLogout,
}

func runLogout(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	name := store.CurrentName()
	if err := store.ClearToken(); err != nil {
		if errors.Is(err, credentials.ErrNoCurrentContext) || errors.Is(err, credentials.ErrContextNotFound) {
			return errors.New("not logged in - no current context")
		}
		return fmt.Errorf("failed to clear credentials: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Logged out from context: %s\n", name)
	return nil
}
