// Package context implements the sandboxctl context commands.
package context

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/sandboxd/internal/cli/credentials"
)

// Cmd is the parent command for saved server contexts.
var Cmd = &cobra.Command{
	Use:   "context",
	Short: "Manage saved server contexts",
	Long: `Manage the server contexts saved by 'sandboxctl login'.

A context is a server address plus, optionally, its shared secret. The
current context is used whenever --addr and --token are not given.`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(currentCmd)
	Cmd.AddCommand(useCmd)
	Cmd.AddCommand(renameCmd)
	Cmd.AddCommand(deleteCmd)
}

func openStore() (*credentials.Store, error) {
	store, err := credentials.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential store: %w", err)
	}
	return store, nil
}
