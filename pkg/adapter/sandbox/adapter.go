// Package sandbox implements the sandbox protocol adapter: an authenticated,
// frame-based command server exposing one directory read-only.
//
// Each accepted connection runs a session in its own goroutine:
//
//	AwaitingAuth --secret ok--> Authenticated --QUIT/EOF/error--> Closed
//	     |
//	     +--secret rejected / no message--> Closed
package sandbox

import (
	"context"
	"fmt"
	"net"

	"github.com/marmos91/sandboxd/internal/adapter/sandbox/handlers"
	"github.com/marmos91/sandboxd/internal/logger"
	"github.com/marmos91/sandboxd/pkg/adapter"
	"github.com/marmos91/sandboxd/pkg/audit"
	"github.com/marmos91/sandboxd/pkg/metrics"
)

// ProtocolName is the adapter name used in logs.
const ProtocolName = "sandbox"

// Authenticator checks the handshake secret. *auth.Authenticator satisfies it.
type Authenticator interface {
	Verify(ctx context.Context, token string) bool
}

// Adapter serves the sandbox protocol on a TCP listener.
type Adapter struct {
	*adapter.BaseAdapter

	config Config

	auth    Authenticator
	handler *handlers.Handler
	metrics metrics.SandboxMetrics
	audit   audit.Store
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithMetrics records session and connection metrics to m.
func WithMetrics(m metrics.SandboxMetrics) Option {
	return func(a *Adapter) {
		a.metrics = metrics.OrNop(m)
	}
}

// WithAuditStore records handshakes, commands and session ends to s.
func WithAuditStore(s audit.Store) Option {
	return func(a *Adapter) {
		if s != nil {
			a.audit = s
		}
	}
}

// New creates a sandbox adapter. auth and handler are required.
func New(config Config, auth Authenticator, handler *handlers.Handler, opts ...Option) (*Adapter, error) {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid sandbox adapter config: %w", err)
	}
	if auth == nil {
		return nil, fmt.Errorf("invalid sandbox adapter config: authenticator is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("invalid sandbox adapter config: handler is required")
	}

	a := &Adapter{
		config:  config,
		auth:    auth,
		handler: handler,
		metrics: metrics.NopSandboxMetrics{},
		audit:   audit.NopStore{},
	}
	for _, opt := range opts {
		opt(a)
	}

	a.BaseAdapter = adapter.NewBaseAdapter(adapter.BaseConfig{
		BindAddress:        config.BindAddress,
		Port:               config.Port,
		MaxConnections:     config.MaxConnections,
		ShutdownTimeout:    config.ShutdownTimeout,
		MetricsLogInterval: config.MetricsLogInterval,
	}, ProtocolName)
	a.Metrics = a.metrics

	logger.Debug("sandbox adapter configured",
		"max_frame_size", config.MaxFrameSize,
		"max_file_size", handler.MaxFileSize(),
		"read_timeout", config.Timeouts.Read,
		"write_timeout", config.Timeouts.Write,
		"idle_timeout", config.Timeouts.Idle)

	return a, nil
}

// Serve accepts connections until ctx is cancelled or Stop is called.
func (a *Adapter) Serve(ctx context.Context) error {
	return a.ServeWithFactory(ctx, a)
}

// NewConnection implements adapter.ConnectionFactory.
func (a *Adapter) NewConnection(conn net.Conn) adapter.ConnectionHandler {
	return NewConnection(a, conn)
}

var _ adapter.Adapter = (*Adapter)(nil)
