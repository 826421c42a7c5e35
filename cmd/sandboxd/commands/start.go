package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/sandboxd/internal/logger"
	"github.com/marmos91/sandboxd/internal/telemetry"
	"github.com/marmos91/sandboxd/pkg/adapter"
	"github.com/marmos91/sandboxd/pkg/config"
	"github.com/marmos91/sandboxd/pkg/server"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sandboxd server",
	Long: `Start the sandboxd server with the specified configuration.

By default, the server runs in the background (daemon mode). Use --foreground
to run in the foreground for debugging or when managed by a process supervisor.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/sandboxd/config.yaml.

Examples:
  # Start in background (default)
  sandboxd start

  # Start in foreground
  sandboxd start --foreground

  # Start with custom config file
  sandboxd start --config /etc/sandboxd/config.yaml

  # Start with environment variable overrides
  SANDBOXD_LOGGING_LEVEL=DEBUG sandboxd start --foreground`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/sandboxd/sandboxd.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/sandboxd/sandboxd.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	if !foreground {
		return startDaemon(cmd.OutOrStdout())
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    appName,
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		// ctx is cancelled by then; flushing needs a live one.
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    appName,
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.Err(err))
		}
	}()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	}

	rt, err := server.New(cfg)
	if err != nil {
		return err
	}

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	// Landlock goes last: every file the process opens from here on must
	// live under one of the writable paths or the sandbox root.
	if cfg.Sandbox.Landlock {
		if err := rt.Sandbox().RestrictProcess(writablePaths(cfg)...); err != nil {
			return err
		}
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- rt.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()
		err = <-serverDone
	case err = <-serverDone:
	}

	switch {
	case errors.Is(err, adapter.ErrShutdownTimeout):
		logger.Warn("Server stopped after forcing sessions closed", logger.Err(err))
		return nil
	case err != nil:
		logger.Error("Server error", logger.Err(err))
		return err
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// writablePaths lists the directories the server still writes to once
// Landlock is in effect.
func writablePaths(cfg *config.Config) []string {
	var paths []string
	if dir := logDir(cfg.Logging.Output); dir != "" {
		paths = append(paths, dir)
	}
	if cfg.Audit.Enabled {
		paths = append(paths, cfg.Audit.WritablePath())
	}
	if pidFile != "" {
		paths = append(paths, filepath.Dir(pidFile))
	}
	return paths
}
