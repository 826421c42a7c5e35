// Package server wires the sandboxd components together.
//
// A Runtime owns everything built from a *config.Config: the authenticator,
// the sandbox and its command handler, the session adapter, the audit store
// and the optional metrics HTTP server. Run serves until the context is
// cancelled and then shuts the pieces down in dependency order:
//
//	adapter (drains sessions) -> metrics server -> audit store -> secret
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/sandboxd/internal/adapter/sandbox/handlers"
	"github.com/marmos91/sandboxd/internal/logger"
	isandbox "github.com/marmos91/sandboxd/internal/sandbox"
	"github.com/marmos91/sandboxd/pkg/adapter"
	"github.com/marmos91/sandboxd/pkg/adapter/sandbox"
	"github.com/marmos91/sandboxd/pkg/audit"
	"github.com/marmos91/sandboxd/pkg/auth"
	"github.com/marmos91/sandboxd/pkg/config"
	"github.com/marmos91/sandboxd/pkg/metrics"
	promMetrics "github.com/marmos91/sandboxd/pkg/metrics/prometheus"
)

// metricsShutdownTimeout bounds the metrics server shutdown.
const metricsShutdownTimeout = 5 * time.Second

// Runtime is a fully wired sandboxd instance.
type Runtime struct {
	cfg *config.Config

	auth          *auth.Authenticator
	sandbox       *isandbox.Sandbox
	adapter       *sandbox.Adapter
	audit         audit.Store
	metricsServer *metrics.Server

	closeOnce sync.Once
	closeErr  error
}

type options struct {
	registry       *prometheus.Registry
	handlerOptions []handlers.Option
}

// Option customizes a Runtime.
type Option func(*options)

// WithRegistry registers metrics on reg instead of the global registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WithHandlerOptions passes extra options to the command handler.
func WithHandlerOptions(opts ...handlers.Option) Option {
	return func(o *options) {
		o.handlerOptions = append(o.handlerOptions, opts...)
	}
}

// New builds a Runtime from cfg. Resources acquired before a failure are
// released before returning.
func New(cfg *config.Config, opts ...Option) (rt *Runtime, err error) {
	if cfg == nil {
		return nil, errors.New("server: nil configuration")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	r := &Runtime{cfg: cfg}
	defer func() {
		if err != nil {
			_ = r.close()
		}
	}()

	r.auth, err = auth.New(cfg.Auth.Token, cfg.Auth.TokenHash)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize authentication: %w", err)
	}

	r.sandbox, err = isandbox.New(cfg.Sandbox.Root, isandbox.WithCreate(cfg.Sandbox.CreateRoot))
	if err != nil {
		return nil, fmt.Errorf("failed to open sandbox root: %w", err)
	}

	handlerOpts := append([]handlers.Option{
		handlers.WithMaxFileSize(int64(cfg.Sandbox.MaxFileSize)),
	}, o.handlerOptions...)
	handler := handlers.New(r.sandbox, handlerOpts...)

	r.audit, err = audit.New(&cfg.Audit)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit store: %w", err)
	}

	sandboxMetrics := metrics.SandboxMetrics(metrics.NopSandboxMetrics{})
	if cfg.Metrics.Enabled {
		reg := o.registry
		if reg == nil {
			metrics.InitRegistry()
			reg = metrics.GetRegistry()
		}
		sandboxMetrics = promMetrics.NewSandboxMetricsWith(reg)
		r.metricsServer = metrics.NewServer(metrics.ServerConfig{
			BindAddress: cfg.Server.BindAddress,
			Port:        cfg.Metrics.Port,
			Gatherer:    reg,
			Health:      r.audit.Healthcheck,
		})
	}

	r.adapter, err = sandbox.New(adapterConfig(cfg.Server), r.auth, handler,
		sandbox.WithMetrics(sandboxMetrics),
		sandbox.WithAuditStore(r.audit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox adapter: %w", err)
	}

	return r, nil
}

// adapterConfig maps the server section of the configuration onto the
// adapter's settings.
func adapterConfig(s config.ServerConfig) sandbox.Config {
	return sandbox.Config{
		BindAddress:        s.BindAddress,
		Port:               s.Port,
		MaxConnections:     s.MaxConnections,
		ShutdownTimeout:    s.ShutdownTimeout,
		MetricsLogInterval: s.MetricsLogInterval,
		MaxFrameSize:       uint32(s.MaxFrameSize),
		Timeouts: sandbox.Timeouts{
			Read:  s.Timeouts.Read,
			Write: s.Timeouts.Write,
			Idle:  s.Timeouts.Idle,
		},
	}
}

// Run serves until ctx is cancelled or a component fails, then shuts
// everything down. A shutdown that had to force-close sessions is reported
// with adapter.ErrShutdownTimeout. Run also returns once the adapter stops
// on its own, as after Stop.
func (r *Runtime) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		if err := r.adapter.Serve(gctx); err != nil {
			return fmt.Errorf("%s adapter: %w", r.adapter.Protocol(), err)
		}
		return nil
	})

	if r.metricsServer != nil {
		g.Go(func() error {
			return r.metricsServer.Start(gctx)
		})
	}

	logger.Info("sandboxd running",
		"root", r.sandbox.Root(),
		"port", r.cfg.Server.Port,
		"metrics", r.metricsServer != nil,
		"audit", r.cfg.Audit.Enabled)

	err := g.Wait()
	if err != nil && !errors.Is(err, adapter.ErrShutdownTimeout) {
		logger.Error("Runtime stopped with error", logger.Err(err))
	}

	return errors.Join(err, r.close())
}

// Stop asks the adapter to stop accepting and waits for sessions up to ctx.
// Run then stops the remaining components and owns the final cleanup.
func (r *Runtime) Stop(ctx context.Context) error {
	return r.adapter.Stop(ctx)
}

// close releases everything Run does not own. Safe to call more than once.
func (r *Runtime) close() error {
	r.closeOnce.Do(func() {
		var errs []error

		if r.metricsServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			errs = append(errs, r.metricsServer.Stop(ctx))
			cancel()
		}
		if r.audit != nil {
			if err := r.audit.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close audit store: %w", err))
			}
		}
		if r.auth != nil {
			errs = append(errs, r.auth.Close())
		}

		r.closeErr = errors.Join(errs...)
		logger.Debug("Runtime resources released")
	})
	return r.closeErr
}

// Addr blocks until the session listener is bound and returns its address,
// or "" if binding failed.
func (r *Runtime) Addr() string {
	return r.adapter.GetListenerAddr()
}

// MetricsServer returns the metrics server, or nil when metrics are off.
func (r *Runtime) MetricsServer() *metrics.Server {
	return r.metricsServer
}

// Sandbox returns the confined filesystem view.
func (r *Runtime) Sandbox() *isandbox.Sandbox {
	return r.sandbox
}

// AuditStore returns the audit store (a NopStore when auditing is off).
func (r *Runtime) AuditStore() audit.Store {
	return r.audit
}

// ActiveSessions returns the number of open connections.
func (r *Runtime) ActiveSessions() int32 {
	return r.adapter.GetActiveConnections()
}
