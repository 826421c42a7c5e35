package context

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/marmos91/sandboxd/cmd/sandboxctl/cmdutil"
)

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show current context",
	Long: `Display the current context.

Examples:
  # Show current context
  sandboxctl context current

  # Show as JSON
  sandboxctl context current -o json`,
	Args: cobra.NoArgs,
	RunE: runContextCurrent,
}

func runContextCurrent(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	name := store.CurrentName()
	if name == "" {
		return errors.New("no current context set\n\n" +
			"Login to a server first:\n" +
			"  sandboxctl login --addr 127.0.0.1:5000")
	}

	ctx, err := store.Get(name)
	if err != nil {
		return err
	}

	info := ContextList{{Name: name, Current: true, Addr: ctx.Addr, HasToken: ctx.HasToken()}}
	return cmdutil.PrintOutput(cmd.OutOrStdout(), info[0], false, "", info)
}
