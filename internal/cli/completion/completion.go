// Package completion provides the shell completion command shared by the
// sandboxd and sandboxctl binaries.
package completion

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Shells lists the supported completion targets.
var Shells = []string{"bash", "zsh", "fish", "powershell"}

// NewCommand returns a "completion" command for the binary called name.
func NewCommand(name string) *cobra.Command {
	return &cobra.Command{
		Use:                   "completion [bash|zsh|fish|powershell]",
		Short:                 "Generate shell completion script",
		Long:                  help(name),
		DisableFlagsInUseLine: true,
		ValidArgs:             Shells,
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return Generate(cmd.Root(), args[0], cmd.OutOrStdout())
		},
	}
}

// Generate writes the completion script of root for shell to w.
func Generate(root *cobra.Command, shell string, w io.Writer) error {
	switch shell {
	case "bash":
		return root.GenBashCompletionV2(w, true)
	case "zsh":
		return root.GenZshCompletion(w)
	case "fish":
		return root.GenFishCompletion(w, true)
	case "powershell":
		return root.GenPowerShellCompletionWithDesc(w)
	}
	return fmt.Errorf("unsupported shell %q (want one of bash, zsh, fish, powershell)", shell)
}

func help(name string) string {
	return fmt.Sprintf(`Print a completion script for %[1]s to stdout.

Load it for the current shell:

  bash:        source <(%[1]s completion bash)
  zsh:         source <(%[1]s completion zsh)
  fish:        %[1]s completion fish | source
  powershell:  %[1]s completion powershell | Out-String | Invoke-Expression

To keep completions across sessions, write the script where your shell
looks for completions, e.g. ~/.local/share/bash-completion/completions/%[1]s
or a directory on zsh's $fpath named _%[1]s.`, name)
}
