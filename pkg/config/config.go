package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/marmos91/sandboxd/internal/bytesize"
	"github.com/marmos91/sandboxd/pkg/audit"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "SANDBOXD"

// Config represents the sandboxd configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (SANDBOXD_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging" json:"logging"`

	// Server contains listener, connection and session settings
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Auth holds the shared secret clients must present
	Auth AuthConfig `mapstructure:"auth" yaml:"auth" json:"auth"`

	// Sandbox describes the directory exposed to clients
	Sandbox SandboxConfig `mapstructure:"sandbox" yaml:"sandbox" json:"sandbox"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics" json:"metrics"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry" json:"telemetry"`

	// Audit configures the session audit trail
	Audit audit.Config `mapstructure:"audit" yaml:"audit" json:"audit"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level" json:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format" json:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output" json:"output"`

	// Rotation applies when Output is a file path
	Rotation RotationConfig `mapstructure:"rotation" yaml:"rotation" json:"rotation"`
}

// RotationConfig controls size-based rotation of the log file.
// A zero MaxSizeMB disables rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb" validate:"gte=0" yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups" validate:"gte=0" yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days" validate:"gte=0" yaml:"max_age_days" json:"max_age_days"`
	Compress   bool `mapstructure:"compress" yaml:"compress" json:"compress"`
}

// ServerConfig contains the TCP listener and session settings.
type ServerConfig struct {
	// BindAddress is the IP address to listen on.
	// Default: 0.0.0.0
	BindAddress string `mapstructure:"bind_address" validate:"omitempty,ip" yaml:"bind_address" json:"bind_address"`

	// Port is the TCP port to listen on.
	// Default: 5000
	Port int `mapstructure:"port" validate:"min=1,max=65535" yaml:"port" json:"port"`

	// MaxConnections caps concurrent sessions. 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"gte=0" yaml:"max_connections" json:"max_connections"`

	// ShutdownTimeout bounds how long shutdown waits for sessions to finish
	// before closing them. 0 waits for every session.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// MetricsLogInterval is how often active connection counts are logged.
	// 0 disables the log line.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" validate:"gte=0" yaml:"metrics_log_interval" json:"metrics_log_interval"`

	// MaxFrameSize rejects frames whose declared length is larger.
	// Default: 16Mi
	MaxFrameSize bytesize.ByteSize `mapstructure:"max_frame_size" yaml:"max_frame_size" json:"max_frame_size"`

	// Timeouts configures per-connection deadlines
	Timeouts TimeoutsConfig `mapstructure:"timeouts" yaml:"timeouts" json:"timeouts"`
}

// TimeoutsConfig holds per-connection deadlines. 0 disables a timeout.
type TimeoutsConfig struct {
	// Read bounds reading one frame once its first byte arrived.
	Read time.Duration `mapstructure:"read" validate:"gte=0" yaml:"read" json:"read"`

	// Write bounds writing one reply.
	Write time.Duration `mapstructure:"write" validate:"gte=0" yaml:"write" json:"write"`

	// Idle bounds the wait for the next frame.
	Idle time.Duration `mapstructure:"idle" validate:"gte=0" yaml:"idle" json:"idle"`
}

// AuthConfig holds the shared secret. Exactly one field must be set.
type AuthConfig struct {
	// Token is the plaintext shared secret.
	// Override: SANDBOXD_AUTH_TOKEN
	Token string `mapstructure:"token" yaml:"token,omitempty" json:"token,omitempty"`

	// TokenHash is a bcrypt hash of the shared secret.
	// Generate with: sandboxd init --hash-token
	TokenHash string `mapstructure:"token_hash" yaml:"token_hash,omitempty" json:"token_hash,omitempty"`
}

// SandboxConfig describes the directory clients can list and read.
type SandboxConfig struct {
	// Root is the sandbox directory.
	// Default: ./sandbox
	Root string `mapstructure:"root" validate:"required" yaml:"root" json:"root"`

	// CreateRoot creates Root when it does not exist.
	// Default: true
	CreateRoot bool `mapstructure:"create_root" yaml:"create_root" json:"create_root"`

	// MaxFileSize is the largest file READ returns.
	// Default: 5Mi
	MaxFileSize bytesize.ByteSize `mapstructure:"max_file_size" yaml:"max_file_size" json:"max_file_size"`

	// Landlock restricts the server process to read-only access to Root
	// (Linux only, best effort).
	Landlock bool `mapstructure:"landlock" yaml:"landlock" json:"landlock"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected.
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP server are enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port" json:"port"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`

	// Insecure controls whether to use an insecure (non-TLS) connection
	// Default: true
	Insecure bool `mapstructure:"insecure" yaml:"insecure" json:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate" json:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling" json:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url" yaml:"endpoint" json:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	ProfileTypes []string `mapstructure:"profile_types" validate:"dive,oneof=cpu alloc_objects alloc_space inuse_objects inuse_space goroutines mutex_count mutex_duration block_count block_duration" yaml:"profile_types" json:"profile_types"`
}

// Load loads configuration from defaults, file and environment.
//
// A missing file is not an error: defaults and environment overrides are
// still applied, so `SANDBOXD_AUTH_TOKEN=... sandboxd start` works without
// a config file.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	// Seed viper with the defaults so every key is known and env overrides
	// bind even when the file omits them.
	if err := seedDefaults(v); err != nil {
		return nil, err
	}
	bindEnvKeys(v, reflect.TypeOf(Config{}), "")

	if _, err := mergeConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration, failing with instructions when the config
// file is missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  sandboxd init\n\n"+
				"Or specify a custom config file:\n"+
				"  sandboxd <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if !ConfigExists(configPath) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  sandboxd init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to path in YAML format.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return writeConfigFile(path, data)
}

func writeConfigFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	// 0600: the file holds the shared secret.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures env overrides and the config file location.
func setupViper(v *viper.Viper, configPath string) {
	// Example: SANDBOXD_SERVER_PORT=6000
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
	}
}

// seedDefaults loads GetDefaultConfig into v as the base layer.
func seedDefaults(v *viper.Viper) error {
	data, err := yaml.Marshal(GetDefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to load defaults: %w", err)
	}
	return nil
}

// bindEnvKeys binds every mapstructure key of t, including keys whose
// default is omitted from the seeded YAML (auth.token, ...).
func bindEnvKeys(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get("mapstructure")
		if name == "" || name == "-" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct && f.Type != reflect.TypeOf(time.Time{}) {
			bindEnvKeys(v, f.Type, key)
			continue
		}
		_ = v.BindEnv(key)
	}
}

// mergeConfigFile merges the config file over the defaults. Returns whether
// a file was found.
func mergeConfigFile(v *viper.Viper) (bool, error) {
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// byteSizeDecodeHook converts strings and integers to bytesize.ByteSize, so
// config files can use sizes like "5Mi", "5MB", or plain numbers.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings like "30s", "5m", "1h" to
// time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Raw integers are nanoseconds
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/sandboxd, falling back to
// ~/.config/sandboxd, or "." if the home directory is unknown.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "sandboxd")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "sandboxd")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	return ConfigExists(GetDefaultConfigPath())
}

// ConfigExists reports whether a file exists at path.
func ConfigExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
