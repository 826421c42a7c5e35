package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/sandboxd/internal/bytesize"
	"github.com/marmos91/sandboxd/pkg/config"
)

func hasWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func TestWarnings(t *testing.T) {
	t.Run("SafeSetup", func(t *testing.T) {
		cfg := config.GetDefaultConfig()
		cfg.Server.BindAddress = "127.0.0.1"
		cfg.Auth.TokenHash = "$2a$10$abcdefghijklmnopqrstuv"
		cfg.Sandbox.Root = t.TempDir()
		assert.Empty(t, Warnings(cfg))
	})

	t.Run("RiskySetup", func(t *testing.T) {
		cfg := config.GetDefaultConfig()
		cfg.Auth.Token = "plain"
		cfg.Sandbox.Root = filepath.Join(t.TempDir(), "missing")
		cfg.Sandbox.CreateRoot = false
		cfg.Sandbox.MaxFileSize = bytesize.ByteSize(cfg.Server.MaxFrameSize)

		w := Warnings(cfg)
		assert.True(t, hasWarning(w, "plaintext"))
		assert.True(t, hasWarning(w, "non-loopback"))
		assert.True(t, hasWarning(w, "does not exist"))
		assert.True(t, hasWarning(w, "max_frame_size"))
	})

	t.Run("RootIsAFile", func(t *testing.T) {
		cfg := config.GetDefaultConfig()
		file := filepath.Join(t.TempDir(), "f")
		require.NoError(t, os.WriteFile(file, nil, 0644))
		cfg.Sandbox.Root = file
		assert.True(t, hasWarning(Warnings(cfg), "not a directory"))
	})
}

func TestRedact(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Auth.Token = "s3cret"
	cfg.Audit.Postgres.Password = "pw"

	redact(cfg)
	assert.Equal(t, redacted, cfg.Auth.Token)
	assert.Equal(t, redacted, cfg.Audit.Postgres.Password)

	empty := config.GetDefaultConfig()
	redact(empty)
	assert.Empty(t, empty.Auth.Token)
}

func TestSchema(t *testing.T) {
	data, err := json.Marshal(Schema())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	for _, section := range []string{"logging", "server", "auth", "sandbox", "metrics", "telemetry", "audit"} {
		assert.Contains(t, props, section)
	}
}

// run executes a subcommand under a root that owns the --config flag.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := &cobra.Command{Use: "sandboxd", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().String("config", "", "")
	root.AddCommand(Cmd)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestValidateAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	_, err := config.InitConfigToPath(path, config.InitOptions{Token: "hunter2"})
	require.NoError(t, err)

	out, err := run(t, "config", "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Validation: OK")
	assert.Contains(t, out, "Sandbox root:")

	out, err = run(t, "config", "show", "--config", path, "-o", "json")
	require.NoError(t, err)
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, redacted)

	_, err = run(t, "config", "validate", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEditorCommand(t *testing.T) {
	t.Setenv("EDITOR", "code --wait")
	t.Setenv("VISUAL", "nano")
	argv, err := editorCommand()
	require.NoError(t, err)
	assert.Equal(t, []string{"code", "--wait"}, argv)

	t.Setenv("EDITOR", "  ")
	argv, err = editorCommand()
	require.NoError(t, err)
	assert.Equal(t, []string{"nano"}, argv)
}
