// Package cmdutil provides shared utilities for sandboxctl commands.
package cmdutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/marmos91/sandboxd/internal/cli/credentials"
	"github.com/marmos91/sandboxd/internal/cli/output"
	"github.com/marmos91/sandboxd/internal/cli/prompt"
	"github.com/marmos91/sandboxd/pkg/client"
)

const (
	// DefaultAddr is used when neither a flag nor a saved context names a server.
	DefaultAddr = "127.0.0.1:5000"

	// TokenEnv holds the shared secret when --token is not given.
	TokenEnv = "SANDBOXCTL_TOKEN"
)

// Flags stores global flag values accessible by subcommands.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values.
type GlobalFlags struct {
	Addr    string
	Token   string
	Context string
	Output  string
	Timeout time.Duration
	NoColor bool
}

// Target is a resolved server address and secret.
type Target struct {
	Addr  string
	Token string
}

// PromptToken asks for the secret when none could be resolved.
var PromptToken = func() (string, error) {
	return prompt.Secret("Token")
}

// Resolve picks the server and secret. Flags win over the environment, which
// wins over the saved context; the address falls back to DefaultAddr.
func Resolve() (Target, error) {
	var t Target

	saved, err := savedContext()
	if err != nil {
		return t, err
	}
	if saved != nil {
		t = Target{Addr: saved.Addr, Token: saved.Token}
	}

	if Flags.Addr != "" {
		t.Addr = Flags.Addr
	}
	if t.Addr == "" {
		t.Addr = DefaultAddr
	}

	if tok := os.Getenv(TokenEnv); tok != "" {
		t.Token = tok
	}
	if Flags.Token != "" {
		t.Token = Flags.Token
	}

	return t, nil
}

// savedContext returns the context named by --context, the current one, or
// nil when nothing is saved.
func savedContext() (*credentials.Context, error) {
	store, err := credentials.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential store: %w", err)
	}

	if Flags.Context != "" {
		ctx, err := store.Get(Flags.Context)
		if err != nil {
			return nil, fmt.Errorf("context '%s' not found", Flags.Context)
		}
		return ctx, nil
	}

	ctx, err := store.Current()
	if err != nil {
		return nil, nil
	}
	return ctx, nil
}

// Connect dials the resolved server and authenticates. Without a secret it
// prompts for one on an interactive terminal.
func Connect(ctx context.Context) (*client.Client, error) {
	t, err := Resolve()
	if err != nil {
		return nil, err
	}

	if t.Token == "" {
		t.Token, err = PromptToken()
		if errors.Is(err, prompt.ErrNotInteractive) {
			return nil, fmt.Errorf("no token given. Use --token, set %s or run 'sandboxctl login'", TokenEnv)
		}
		if err != nil {
			return nil, err
		}
	}

	return Dial(ctx, t)
}

// Dial connects to t and authenticates.
func Dial(ctx context.Context, t Target) (*client.Client, error) {
	c, err := client.Dial(ctx, t.Addr, client.WithTimeout(Flags.Timeout))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to %s: %w", t.Addr, err)
	}

	if err := c.Authenticate(t.Token); err != nil {
		if errors.Is(err, client.ErrAuthFailed) {
			return nil, fmt.Errorf("authentication failed for %s", t.Addr)
		}
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Close ends the session politely, falling back to a plain close.
func Close(c *client.Client) {
	if err := c.Quit(); err != nil {
		_ = c.Close()
	}
}

// GetOutputFormatParsed returns the parsed output format.
func GetOutputFormatParsed() (output.Format, error) {
	return output.ParseFormat(Flags.Output)
}

// PrintOutput prints data in the selected format. For table format it
// prints emptyMsg when there is nothing to show.
func PrintOutput(w io.Writer, data any, isEmpty bool, emptyMsg string, tableRenderer output.TableRenderer) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(w, data)
	case output.FormatYAML:
		return output.PrintYAML(w, data)
	default:
		if isEmpty {
			_, _ = fmt.Fprintln(w, emptyMsg)
			return nil
		}
		return output.PrintTable(w, tableRenderer)
	}
}

// PrintSuccess prints a success message if the output format is table.
func PrintSuccess(w io.Writer, msg string) {
	format, err := GetOutputFormatParsed()
	if err != nil || format != output.FormatTable {
		return
	}
	output.NewPrinter(w, format, !Flags.NoColor).Success(msg)
}

// BoolToYesNo renders a boolean for table output.
func BoolToYesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// RunDeleteWithConfirmation prompts for confirmation (unless force is true)
// and runs deleteFn.
func RunDeleteWithConfirmation(w io.Writer, resourceType, name string, force bool, deleteFn func() error) error {
	confirmed, err := prompt.ConfirmWithForce(fmt.Sprintf("Delete %s '%s'?", resourceType, name), force)
	if err != nil {
		if prompt.IsAborted(err) {
			_, _ = fmt.Fprintln(w, "\nAborted.")
			return nil
		}
		if errors.Is(err, prompt.ErrNotInteractive) {
			return fmt.Errorf("refusing to delete %s '%s' without confirmation; use --force", resourceType, name)
		}
		return err
	}
	if !confirmed {
		_, _ = fmt.Fprintln(w, "Aborted.")
		return nil
	}

	if err := deleteFn(); err != nil {
		return err
	}

	PrintSuccess(w, fmt.Sprintf("%s '%s' deleted successfully", resourceType, name))
	return nil
}
