package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/marmos91/sandboxd/internal/bytesize"
	"github.com/marmos91/sandboxd/pkg/audit"
)

func validConfig() *Config {
	cfg := GetDefaultConfig()
	cfg.Auth.Token = "s3cret"
	return cfg
}

func TestValidate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"hash only", func(c *Config) { c.Auth.Token = ""; c.Auth.TokenHash = string(hash) }, ""},
		{"no secret", func(c *Config) { c.Auth.Token = "" }, "auth"},
		{"both secrets", func(c *Config) { c.Auth.TokenHash = string(hash) }, "mutually exclusive"},
		{"bad hash", func(c *Config) { c.Auth.Token = ""; c.Auth.TokenHash = "plain" }, "bcrypt"},
		{"log level", func(c *Config) { c.Logging.Level = "INVALID" }, "oneof"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "Format"},
		{"port range", func(c *Config) { c.Server.Port = 70000 }, "max"},
		{"negative port", func(c *Config) { c.Server.Port = -1 }, "min"},
		{"bind address", func(c *Config) { c.Server.BindAddress = "not-an-ip" }, "ip"},
		{"negative max connections", func(c *Config) { c.Server.MaxConnections = -1 }, "MaxConnections"},
		{"negative timeout", func(c *Config) { c.Server.Timeouts.Idle = -1 }, "Idle"},
		{"frame size overflow", func(c *Config) { c.Server.MaxFrameSize = bytesize.ByteSize(1 << 33) }, "max_frame_size"},
		{"zero max file size", func(c *Config) { c.Sandbox.MaxFileSize = 0 }, "max_file_size"},
		{"empty root", func(c *Config) { c.Sandbox.Root = "" }, "Root"},
		{"metrics port collision", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Port = c.Server.Port }, "collides"},
		{"sample rate", func(c *Config) { c.Telemetry.SampleRate = 2 }, "SampleRate"},
		{"profile type", func(c *Config) { c.Telemetry.Profiling.ProfileTypes = []string{"heap"} }, "ProfileTypes"},
		{"audit type", func(c *Config) { c.Audit.Enabled = true; c.Audit.Type = "mongo" }, "Type"},
		{"audit postgres incomplete", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.Type = audit.StoreTypePostgres
		}, "postgres host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
