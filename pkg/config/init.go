package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/marmos91/sandboxd/pkg/auth"
)

const configHeader = `# sandboxd configuration file
#
# Every key can be overridden with an environment variable:
#   SANDBOXD_<SECTION>_<KEY>, e.g. SANDBOXD_SERVER_PORT=6000
#
# Validate with: sandboxd config validate
# JSON schema:   sandboxd config schema

`

// InitOptions controls the generated configuration.
type InitOptions struct {
	// Force overwrites an existing file.
	Force bool

	// HashToken stores a bcrypt hash instead of the plaintext token.
	HashToken bool

	// Token is the shared secret to use. Empty generates a random one.
	Token string
}

// InitResult describes a generated configuration.
type InitResult struct {
	Path string

	// Token is the plaintext shared secret. When HashToken was requested this
	// is the only place it appears.
	Token string
}

// InitConfig writes a default configuration to the default location.
func InitConfig(opts InitOptions) (*InitResult, error) {
	return InitConfigToPath(GetDefaultConfigPath(), opts)
}

// InitConfigToPath writes a default configuration with a shared secret to
// path.
func InitConfigToPath(path string, opts InitOptions) (*InitResult, error) {
	if ConfigExists(path) && !opts.Force {
		return nil, fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}

	token := opts.Token
	if token == "" {
		var err error
		if token, err = GenerateToken(); err != nil {
			return nil, err
		}
	}

	cfg := GetDefaultConfig()
	if opts.HashToken {
		hash, err := auth.HashToken(token)
		if err != nil {
			return nil, err
		}
		cfg.Auth.TokenHash = hash
	} else {
		cfg.Auth.Token = token
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := writeConfigFile(path, append([]byte(configHeader), data...)); err != nil {
		return nil, err
	}

	return &InitResult{Path: path, Token: token}, nil
}

// GenerateToken returns 32 random bytes, hex encoded.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
