package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/sandboxd/pkg/config"
)

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open configuration in editor",
	Long: `Open the configuration file in your default editor.

Uses the EDITOR environment variable, then VISUAL, falling back to 'vi'.
The file is validated after the editor exits.

Examples:
  # Edit default config
  sandboxd config edit

  # Edit specific config file
  sandboxd config edit --config /etc/sandboxd/config.yaml`,
	RunE: runConfigEdit,
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	if !config.ConfigExists(path) {
		return fmt.Errorf("configuration file not found: %s\n\n"+
			"Create it first with:\n"+
			"  sandboxd init --config %s",
			path, path)
	}

	editor, err := editorCommand()
	if err != nil {
		return err
	}

	editorCmd := exec.Command(editor[0], append(editor[1:], path)...)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("failed to run editor: %w", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("configuration saved but invalid: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, "Configuration is valid")
	if n := len(Warnings(cfg)); n > 0 {
		_, _ = fmt.Fprintf(out, "%d warning(s); run 'sandboxd config validate' for details\n", n)
	}
	return nil
}

// editorCommand splits $EDITOR (or $VISUAL) into argv, so values such as
// "code --wait" work. The fallback is vi.
func editorCommand() ([]string, error) {
	for _, env := range []string{"EDITOR", "VISUAL"} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return strings.Fields(v), nil
		}
	}
	if _, err := exec.LookPath("vi"); err != nil {
		return nil, errors.New("no editor found: set $EDITOR")
	}
	return []string{"vi"}, nil
}
