package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/marmos91/sandboxd/internal/protocol/frame"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Log level normalization is handled in ApplyDefaults; validation accepts
// both cases.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs validation that cannot be expressed in tags.
func validateCustomRules(cfg *Config) error {
	switch {
	case cfg.Auth.Token == "" && cfg.Auth.TokenHash == "":
		return fmt.Errorf("auth: one of token or token_hash must be set (or SANDBOXD_AUTH_TOKEN)")
	case cfg.Auth.Token != "" && cfg.Auth.TokenHash != "":
		return fmt.Errorf("auth: token and token_hash are mutually exclusive")
	case cfg.Auth.TokenHash != "":
		if _, err := bcrypt.Cost([]byte(cfg.Auth.TokenHash)); err != nil {
			return fmt.Errorf("auth.token_hash: not a bcrypt hash: %v", err)
		}
	}

	if cfg.Server.MaxFrameSize.Uint64() > uint64(^uint32(0)) {
		return fmt.Errorf("server.max_frame_size: %s exceeds the 4-byte length prefix", cfg.Server.MaxFrameSize)
	}
	if cfg.Server.MaxFrameSize.Uint64() < frame.HeaderSize {
		return fmt.Errorf("server.max_frame_size: %s is too small", cfg.Server.MaxFrameSize)
	}

	if cfg.Sandbox.MaxFileSize.Int64() <= 0 {
		return fmt.Errorf("sandbox.max_file_size: must be positive")
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Port == cfg.Server.Port {
		return fmt.Errorf("metrics.port: %d collides with server.port", cfg.Metrics.Port)
	}

	if cfg.Audit.Enabled {
		if err := cfg.Audit.Validate(); err != nil {
			return fmt.Errorf("audit: %w", err)
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages,
// one line per failing field.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	msgs := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		msgs = append(msgs, fmt.Sprintf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value()))
	}
	return errors.New(strings.Join(msgs, "\n"))
}
