package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/sandboxd/cmd/sandboxctl/cmdutil"
	"github.com/marmos91/sandboxd/internal/protocol"
	"github.com/marmos91/sandboxd/pkg/client"
)

const connectionLost = "Connection lost or empty response."

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Open an interactive session",
	Long: `Open an interactive session with the server.

Each line typed at the "> " prompt is sent as one command and the reply is
printed as is. Blank lines are skipped. The session ends after QUIT, at end
of input, or when the server stops answering.

Commands:
  LIST          list the sandbox root
  READ <name>   print a file
  TIME          print the server time
  QUIT          end the session

Examples:
  # Shell against the saved context
  sandboxctl shell

  # Shell against another server
  sandboxctl shell --addr 10.0.0.5:5000`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

func runShell(cmd *cobra.Command, args []string) error {
	c, err := cmdutil.Connect(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	return shell(c, cmd.InOrStdin(), cmd.OutOrStdout())
}

// shell runs the prompt loop over in until QUIT, end of input or a dead
// connection.
func shell(c *client.Client, in io.Reader, out io.Writer) error {
	_, _ = fmt.Fprintln(out, "Authenticated. Type QUIT to exit.")

	scanner := bufio.NewScanner(in)
	for {
		_, _ = fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(out)
			cmdutil.Close(c)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		reply, err := c.Do(line)
		if err != nil || reply == "" {
			_, _ = fmt.Fprintln(out, connectionLost)
			return nil
		}

		_, _ = fmt.Fprintln(out, reply)
		if reply == protocol.Bye {
			return nil
		}
	}
}
