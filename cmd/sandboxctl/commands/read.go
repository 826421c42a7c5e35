package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/sandboxd/cmd/sandboxctl/cmdutil"
	"github.com/marmos91/sandboxd/internal/cli/output"
	"github.com/marmos91/sandboxd/pkg/client"
)

var readCmd = &cobra.Command{
	Use:   "read <name>",
	Short: "Print a file from the sandbox",
	Long: `Print the content of a file in the sandbox root.

Names are resolved inside the root; paths escaping it, symlinks included,
are refused by the server.

Examples:
  # Print a file
  sandboxctl read notes.txt

  # Wrap the content in JSON
  sandboxctl read notes.txt -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runRead,
}

// File is a file fetched from the sandbox.
type File struct {
	Name    string `json:"name" yaml:"name"`
	Size    int    `json:"size" yaml:"size"`
	Content string `json:"content" yaml:"content"`
}

func runRead(cmd *cobra.Command, args []string) error {
	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}

	c, err := cmdutil.Connect(cmd.Context())
	if err != nil {
		return err
	}
	defer cmdutil.Close(c)

	name := args[0]
	content, err := c.Read(name)
	if err != nil {
		return readError(name, err)
	}

	out := cmd.OutOrStdout()
	switch format {
	case output.FormatJSON:
		return output.PrintJSON(out, File{Name: name, Size: len(content), Content: content})
	case output.FormatYAML:
		return output.PrintYAML(out, File{Name: name, Size: len(content), Content: content})
	default:
		_, _ = fmt.Fprint(out, content)
		if content != "" && !strings.HasSuffix(content, "\n") {
			_, _ = fmt.Fprintln(out)
		}
		return nil
	}
}

func readError(name string, err error) error {
	switch {
	case errors.Is(err, client.ErrNotFound):
		return fmt.Errorf("'%s' does not exist or is a directory", name)
	case errors.Is(err, client.ErrAccessDenied):
		return fmt.Errorf("'%s' is outside the sandbox", name)
	case errors.Is(err, client.ErrFileTooLarge):
		return fmt.Errorf("'%s' exceeds the server's file size limit", name)
	default:
		return err
	}
}
