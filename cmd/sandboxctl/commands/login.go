package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/sandboxd/cmd/sandboxctl/cmdutil"
	"github.com/marmos91/sandboxd/internal/cli/credentials"
)

var (
	loginName     string
	loginNoSecret bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Verify and save a server context",
	Long: `Authenticate against a sandboxd server and save its address and secret
as a context, which becomes the current one.

The secret is taken from --token or $SANDBOXCTL_TOKEN, or asked for. It is
stored in $XDG_CONFIG_HOME/sandboxctl/contexts.json, readable by the owner
only; use --no-save-token to keep just the address.

Examples:
  # Save the local server as "default"
  sandboxctl login --addr 127.0.0.1:5000

  # Save a second server under its own name
  sandboxctl login --addr 10.0.0.5:5000 --name staging`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginName, "name", "", "Context name (default: current context or \""+credentials.DefaultContextName+"\")")
	loginCmd.Flags().BoolVar(&loginNoSecret, "no-save-token", false, "Save the address only")
}

func runLogin(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	name := loginName
	if name == "" {
		name = store.CurrentName()
	}
	if name == "" {
		name = credentials.DefaultContextName
	}

	// Re-login keeps the saved address unless --addr overrides it; the
	// secret is never reused.
	target := cmdutil.Target{Addr: cmdutil.Flags.Addr, Token: cmdutil.Flags.Token}
	if target.Addr == "" {
		if saved, err := store.Get(name); err == nil {
			target.Addr = saved.Addr
		}
	}
	if target.Addr == "" {
		target.Addr = cmdutil.DefaultAddr
	}
	if target.Token == "" {
		target.Token = os.Getenv(cmdutil.TokenEnv)
	}
	if target.Token == "" {
		if target.Token, err = cmdutil.PromptToken(); err != nil {
			return err
		}
	}

	c, err := cmdutil.Dial(cmd.Context(), target)
	if err != nil {
		return err
	}
	cmdutil.Close(c)

	saved := &credentials.Context{Addr: target.Addr}
	if !loginNoSecret {
		saved.Token = target.Token
	}
	if err := store.Save(name, saved); err != nil {
		return fmt.Errorf("failed to save context: %w", err)
	}

	cmdutil.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Logged in to %s (context: %s)", target.Addr, name))
	return nil
}
