package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/sandboxd/cmd/sandboxctl/cmdutil"
	"github.com/marmos91/sandboxd/internal/cli/prompt"
	"github.com/marmos91/sandboxd/pkg/config"
	"github.com/marmos91/sandboxd/pkg/server"
)

const testToken = "ctl-secret"

// testServer is a running sandboxd with an isolated sandbox root.
type testServer struct {
	addr string
	root string
}

func startServer(t *testing.T) *testServer {
	t.Helper()

	cfg := config.GetDefaultConfig()
	cfg.Server.BindAddress = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.MetricsLogInterval = 0
	cfg.Auth.Token = testToken
	cfg.Sandbox.Root = filepath.Join(t.TempDir(), "root")

	rt, err := server.New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})

	addr := rt.Addr()
	require.NotEmpty(t, addr)
	return &testServer{addr: addr, root: rt.Sandbox().Root()}
}

func (s *testServer) writeFile(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(s.root, name), []byte(content), 0644))
}

// isolate points the context store at a fresh directory and makes the
// token prompt fail as it would without a terminal.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(cmdutil.TokenEnv, "")

	orig := cmdutil.PromptToken
	cmdutil.PromptToken = func() (string, error) { return "", prompt.ErrNotInteractive }
	t.Cleanup(func() { cmdutil.PromptToken = orig })
}

// resetFlags restores flag-bound globals; cobra keeps parsed values between
// Execute calls.
func resetFlags() {
	*cmdutil.Flags = cmdutil.GlobalFlags{Output: "table", Timeout: 10 * time.Second}
	loginName, loginNoSecret = "", false
	versionShort = false
}

// execute runs sandboxctl with args and stdin, returning stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
		resetFlags()
	})

	err := rootCmd.Execute()
	return out.String(), err
}
