package config

import (
	"strings"
	"time"

	"github.com/marmos91/sandboxd/internal/bytesize"
	"github.com/marmos91/sandboxd/internal/protocol"
	"github.com/marmos91/sandboxd/internal/protocol/frame"
	"github.com/marmos91/sandboxd/internal/telemetry"
)

// Default values.
const (
	DefaultPort               = 5000
	DefaultBindAddress        = "0.0.0.0"
	DefaultMetricsPort        = 9090
	DefaultSandboxRoot        = "./sandbox"
	DefaultMetricsLogInterval = 5 * time.Minute
	DefaultWriteTimeout       = 30 * time.Second
)

// ApplyDefaults sets default values for unspecified fields whose zero value
// is not meaningful.
//
// Fields where zero means "disabled" (timeouts, shutdown_timeout,
// metrics_log_interval, max_connections) are left alone; their defaults come
// from GetDefaultConfig, which Load uses as the base layer.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applySandboxDefaults(&cfg.Sandbox)
	applyMetricsDefaults(&cfg.Metrics)
	applyTelemetryDefaults(&cfg.Telemetry)
	cfg.Audit.ApplyDefaults()
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.BindAddress == "" {
		cfg.BindAddress = DefaultBindAddress
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.MaxFrameSize == 0 {
		cfg.MaxFrameSize = bytesize.ByteSize(frame.DefaultMaxFrameSize)
	}
}

func applySandboxDefaults(cfg *SandboxConfig) {
	if cfg.Root == "" {
		cfg.Root = DefaultSandboxRoot
	}
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = bytesize.ByteSize(protocol.DefaultMaxFileSize)
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultMetricsPort
	}
}

// applyTelemetryDefaults sets OpenTelemetry and profiling defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = append([]string(nil), telemetry.DefaultProfileTypes...)
	}
}

// GetDefaultConfig returns a Config with all default values applied.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			MetricsLogInterval: DefaultMetricsLogInterval,
			Timeouts: TimeoutsConfig{
				Write: DefaultWriteTimeout,
			},
		},
		Sandbox: SandboxConfig{
			CreateRoot: true,
		},
		Telemetry: TelemetryConfig{
			Insecure: true,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
