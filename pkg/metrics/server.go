package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/sandboxd/internal/logger"
)

// HealthFunc reports whether a dependency is healthy.
type HealthFunc func(ctx context.Context) error

// ServerConfig configures the metrics HTTP server.
type ServerConfig struct {
	// BindAddress is the IP address to bind to. Empty binds all interfaces.
	BindAddress string

	// Port to listen on for HTTP requests. 0 picks an ephemeral port.
	Port int

	// Gatherer serves /metrics. Defaults to the global registry.
	Gatherer prometheus.Gatherer

	// Health is consulted by /healthz. nil always reports healthy.
	Health HealthFunc
}

// Server provides an HTTP server for exposing Prometheus metrics.
//
// Endpoints:
//   - GET /metrics: Prometheus metrics (text or OpenMetrics)
//   - GET /healthz: 200 "ok", or 503 with the health error
//   - GET /: index page linking to /metrics
type Server struct {
	server       *http.Server
	config       ServerConfig
	ready        chan struct{}
	listener     net.Listener
	mu           sync.RWMutex
	shutdownOnce sync.Once
}

// NewServer creates a metrics HTTP server in a stopped state.
func NewServer(config ServerConfig) *Server {
	if config.Gatherer == nil {
		if reg := GetRegistry(); reg != nil {
			config.Gatherer = reg
		}
	}

	s := &Server{
		config: config,
		ready:  make(chan struct{}),
	}
	s.server = &http.Server{
		Addr:         net.JoinHostPort(config.BindAddress, fmt.Sprint(config.Port)),
		Handler:      s.router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	if s.config.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	} else {
		r.Get("/metrics", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintln(w, "Metrics collection is disabled")
		})
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		if s.config.Health != nil {
			if err := s.config.Health(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = fmt.Fprintln(w, err.Error())
				return
			}
		}
		_, _ = fmt.Fprintln(w, "ok")
	})

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>sandboxd metrics</title></head>
<body>
    <h1>sandboxd</h1>
    <p><a href="/metrics">/metrics</a> Prometheus metrics</p>
    <p><a href="/healthz">/healthz</a> health check</p>
</body>
</html>`)
	})

	return r
}

// requestLogger logs each request at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Debug("Metrics request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}

// Start serves until ctx is cancelled or the server fails.
//
// Returns nil on graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("metrics server failed to listen on %s: %w", s.server.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	close(s.ready)

	logger.Info("Metrics server listening", "address", ln.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// The cancelled ctx would abort shutdown immediately.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("metrics server failed: %w", err)
	}
}

// Stop gracefully shuts the server down. Safe to call multiple times.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("metrics server shutdown error: %w", err)
			logger.Error("Metrics server shutdown error", logger.Err(err))
			return
		}
		logger.Info("Metrics server stopped")
	})
	return shutdownErr
}

// Addr blocks until the server is listening and returns its address.
func (s *Server) Addr() string {
	<-s.ready
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listener.Addr().String()
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
