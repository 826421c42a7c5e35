package commands

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marmos91/sandboxd/pkg/audit"
	"github.com/marmos91/sandboxd/pkg/config"
)

func TestDefaultStatePaths(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("XDG_STATE_HOME is not consulted on Windows")
	}

	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", dir)

	assert.Equal(t, filepath.Join(dir, "sandboxd"), GetDefaultStateDir())
	assert.Equal(t, filepath.Join(dir, "sandboxd", "sandboxd.pid"), GetDefaultPidFile())
	assert.Equal(t, filepath.Join(dir, "sandboxd", "sandboxd.log"), GetDefaultLogFile())
}

func TestLogDir(t *testing.T) {
	assert.Equal(t, "", logDir("stdout"))
	assert.Equal(t, "", logDir("stderr"))
	assert.Equal(t, "", logDir(""))
	assert.Equal(t, filepath.Join("var", "log"), logDir(filepath.Join("var", "log", "sandboxd.log")))
}

func TestResolveLogFile(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	assert.Equal(t, GetDefaultLogFile(), resolveLogFile("stdout"))
	assert.Equal(t, "/tmp/x.log", resolveLogFile("/tmp/x.log"))
}

func TestWritablePaths(t *testing.T) {
	cfg := config.GetDefaultConfig()
	assert.Empty(t, writablePaths(cfg))

	dir := t.TempDir()
	cfg.Logging.Output = filepath.Join(dir, "logs", "sandboxd.log")
	cfg.Audit.Enabled = true
	cfg.Audit.Type = audit.StoreTypeSQLite
	cfg.Audit.SQLite.Path = filepath.Join(dir, "data", "audit.db")

	pidFile = filepath.Join(dir, "run", "sandboxd.pid")
	t.Cleanup(func() { pidFile = "" })

	assert.Equal(t, []string{
		filepath.Join(dir, "logs"),
		filepath.Join(dir, "data"),
		filepath.Join(dir, "run"),
	}, writablePaths(cfg))
}
