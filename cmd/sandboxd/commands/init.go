package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/sandboxd/pkg/config"
)

var (
	initForce     bool
	initHashToken bool
	initToken     string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a configuration file",
	Long: `Initialize a sandboxd configuration file with a random shared secret.

By default, the configuration file is created at $XDG_CONFIG_HOME/sandboxd/config.yaml.
Use --config to specify a custom path.

With --hash-token only a bcrypt hash of the secret is stored; the secret
itself is printed once and must be saved by the operator.

Examples:
  # Initialize with default location
  sandboxd init

  # Initialize with custom path
  sandboxd init --config /etc/sandboxd/config.yaml

  # Store only the bcrypt hash of the secret
  sandboxd init --hash-token

  # Force overwrite existing config
  sandboxd init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
	initCmd.Flags().BoolVar(&initHashToken, "hash-token", false, "Store a bcrypt hash instead of the plaintext secret")
	initCmd.Flags().StringVar(&initToken, "token", "", "Use this shared secret instead of generating one")
}

func runInit(cmd *cobra.Command, args []string) error {
	opts := config.InitOptions{
		Force:     initForce,
		HashToken: initHashToken,
		Token:     initToken,
	}

	var (
		res *config.InitResult
		err error
	)
	if configFile := GetConfigFile(); configFile != "" {
		res, err = config.InitConfigToPath(configFile, opts)
	} else {
		res, err = config.InitConfig(opts)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", res.Path)
	if initHashToken {
		_, _ = fmt.Fprintf(out, "\n*** Shared secret: %s ***\n", res.Token)
		_, _ = fmt.Fprintln(out, "Only its hash was written to the configuration. It will not be shown again.")
	} else if initToken == "" {
		_, _ = fmt.Fprintln(out, "\nA random shared secret has been written to the configuration (auth.token).")
	}
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Point sandbox.root at the directory to serve")
	_, _ = fmt.Fprintln(out, "  2. Start the server with: sandboxd start")
	_, _ = fmt.Fprintf(out, "  3. Or specify custom config: sandboxd start --config %s\n", res.Path)
	_, _ = fmt.Fprintf(out, "\nThe secret can also be supplied through %s_AUTH_TOKEN.\n", config.EnvPrefix)

	return nil
}
