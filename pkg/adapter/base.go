package adapter

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/marmos91/sandboxd/internal/logger"
)

// ConnectionHandler represents a protocol-specific connection that can serve
// requests. The Serve method blocks until the connection is closed.
type ConnectionHandler interface {
	Serve(ctx context.Context)
}

// ConnectionFactory creates protocol-specific connection handlers for accepted
// TCP connections. Protocol adapters implement this interface and pass themselves
// to BaseAdapter.ServeWithFactory().
type ConnectionFactory interface {
	NewConnection(conn net.Conn) ConnectionHandler
}

// BaseConfig holds configuration common to all protocol adapters.
// Protocol-specific adapters embed this alongside their own config.
type BaseConfig struct {
	// BindAddress is the IP address to bind to.
	// Empty string or "0.0.0.0" binds to all interfaces.
	BindAddress string

	// Port is the TCP port to listen on. 0 picks an ephemeral port.
	Port int

	// MaxConnections limits the number of concurrent client connections.
	// 0 means unlimited. At the limit the accept loop waits for a slot.
	MaxConnections int

	// ShutdownTimeout bounds how long shutdown waits for active sessions
	// before force-closing them. 0 waits until every session has ended.
	ShutdownTimeout time.Duration

	// MetricsLogInterval is the interval at which to log server metrics.
	// 0 disables periodic metrics logging.
	MetricsLogInterval time.Duration
}

// MetricsRecorder allows protocol adapters to record connection lifecycle
// metrics. metrics.SandboxMetrics satisfies it.
type MetricsRecorder interface {
	RecordConnectionAccepted()
	RecordConnectionClosed()
	RecordConnectionForceClosed()
	SetActiveConnections(count int32)
}

// BaseAdapter provides shared TCP lifecycle management for protocol adapters.
//
// Protocol adapters embed this struct and delegate listener management,
// graceful shutdown, connection tracking, and metrics logging to it. Protocol-
// specific behavior is injected via ConnectionFactory.
//
// Shutdown never interrupts a session in progress: it closes the listener and
// lets sessions end on their own, unless ShutdownTimeout (or the Stop
// context) runs out first.
//
// Thread safety:
// All exported methods are safe for concurrent use. The shutdown mechanism uses
// sync.Once to ensure idempotent behavior even if Stop() is called multiple times.
type BaseAdapter struct {
	// Config holds the shared configuration (bind address, port, limits, timeouts)
	Config BaseConfig

	// protocolName is the human-readable protocol name for logging
	protocolName string

	// Metrics is an optional recorder for connection lifecycle metrics.
	// If nil, no metrics are collected.
	Metrics MetricsRecorder

	// listener is the TCP listener for accepting connections.
	// Closed during shutdown to stop accepting new connections.
	listener net.Listener

	// activeConns tracks all currently active connections for graceful shutdown.
	activeConns sync.WaitGroup

	// shutdownOnce ensures shutdown is only initiated once.
	shutdownOnce sync.Once

	// readyOnce guards the ListenerReady close.
	readyOnce sync.Once

	// Shutdown signals that graceful shutdown has been initiated.
	// Closed by initiateShutdown(), monitored by ServeWithFactory().
	Shutdown chan struct{}

	// ConnCount tracks the current number of active connections.
	ConnCount atomic.Int32

	// connSem limits the number of concurrent connections if MaxConnections > 0.
	// nil if MaxConnections is 0 (unlimited).
	connSem *semaphore.Weighted

	// acceptCtx is cancelled on shutdown so a pending semaphore
	// acquisition returns.
	acceptCtx    context.Context
	cancelAccept context.CancelFunc

	// ActiveConnections maps remote address (string) to net.Conn for
	// forced closure.
	ActiveConnections sync.Map

	// ListenerReady is closed when the listener is ready to accept connections,
	// or when listening failed. Used by tests to synchronize with server startup.
	ListenerReady chan struct{}

	// listenerMu protects access to the listener field.
	listenerMu sync.RWMutex
}

// NewBaseAdapter creates a new BaseAdapter with the specified configuration.
// The adapter is created in a stopped state. Call ServeWithFactory() to start.
func NewBaseAdapter(config BaseConfig, protocol string) *BaseAdapter {
	var connSem *semaphore.Weighted
	if config.MaxConnections > 0 {
		connSem = semaphore.NewWeighted(int64(config.MaxConnections))
		logger.Debug(protocol+" connection limit", "max_connections", config.MaxConnections)
	} else {
		logger.Debug(protocol+" connection limit", "max_connections", "unlimited")
	}

	acceptCtx, cancelAccept := context.WithCancel(context.Background())

	return &BaseAdapter{
		Config:        config,
		protocolName:  protocol,
		Shutdown:      make(chan struct{}),
		connSem:       connSem,
		acceptCtx:     acceptCtx,
		cancelAccept:  cancelAccept,
		ListenerReady: make(chan struct{}),
	}
}

// ServeWithFactory runs the shared TCP accept loop, delegating to factory for
// protocol-specific connection creation.
//
// Sessions receive a context derived from ctx that carries its values but is
// never cancelled, so shutdown lets them drain.
//
// Returns:
//   - nil on graceful shutdown
//   - error if the listener fails to start or sessions had to be force-closed
func (b *BaseAdapter) ServeWithFactory(ctx context.Context, factory ConnectionFactory) error {
	listenAddr := net.JoinHostPort(b.Config.BindAddress, fmt.Sprint(b.Config.Port))
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		b.readyOnce.Do(func() { close(b.ListenerReady) })
		return fmt.Errorf("failed to create %s listener on %s: %w", b.protocolName, listenAddr, err)
	}

	b.listenerMu.Lock()
	b.listener = listener
	b.listenerMu.Unlock()
	b.readyOnce.Do(func() { close(b.ListenerReady) })

	logger.Info(b.protocolName+" server listening", "address", listener.Addr().String())

	// Stop() may have run before the listener existed.
	select {
	case <-b.Shutdown:
		b.closeListener()
	default:
	}

	go func() {
		select {
		case <-ctx.Done():
			logger.Info(b.protocolName+" shutdown signal received", "error", ctx.Err())
			b.initiateShutdown()
		case <-b.Shutdown:
		}
	}()

	if b.Config.MetricsLogInterval > 0 {
		go b.logMetrics()
	}

	sessionCtx := context.WithoutCancel(ctx)

	for {
		if b.connSem != nil {
			if err := b.connSem.Acquire(b.acceptCtx, 1); err != nil {
				return b.gracefulShutdown()
			}
		}

		tcpConn, err := listener.Accept()
		if err != nil {
			b.release()

			select {
			case <-b.Shutdown:
				return b.gracefulShutdown()
			default:
				logger.Debug("Error accepting "+b.protocolName+" connection", "error", err)
				continue
			}
		}

		if tcp, ok := tcpConn.(*net.TCPConn); ok {
			if err := tcp.SetNoDelay(true); err != nil {
				logger.Debug("Failed to set TCP_NODELAY", "error", err)
			}
		}

		b.activeConns.Add(1)
		currentConns := b.ConnCount.Add(1)

		connAddr := tcpConn.RemoteAddr().String()
		b.ActiveConnections.Store(connAddr, tcpConn)

		if b.Metrics != nil {
			b.Metrics.RecordConnectionAccepted()
			b.Metrics.SetActiveConnections(currentConns)
		}

		logger.Debug(b.protocolName+" connection accepted", "address", connAddr, "active", currentConns)

		conn := factory.NewConnection(tcpConn)

		go func(addr string) {
			defer func() {
				b.ActiveConnections.Delete(addr)

				remaining := b.ConnCount.Add(-1)
				b.release()

				if b.Metrics != nil {
					b.Metrics.RecordConnectionClosed()
					b.Metrics.SetActiveConnections(remaining)
				}

				logger.Debug(b.protocolName+" connection closed", "address", addr, "active", remaining)
				b.activeConns.Done()
			}()

			conn.Serve(sessionCtx)
		}(connAddr)
	}
}

func (b *BaseAdapter) release() {
	if b.connSem != nil {
		b.connSem.Release(1)
	}
}

// initiateShutdown closes the shutdown channel and the listener.
// Safe to call multiple times and from multiple goroutines.
func (b *BaseAdapter) initiateShutdown() {
	b.shutdownOnce.Do(func() {
		logger.Debug(b.protocolName + " shutdown initiated")
		close(b.Shutdown)
		b.cancelAccept()
		b.closeListener()
	})
}

func (b *BaseAdapter) closeListener() {
	b.listenerMu.Lock()
	defer b.listenerMu.Unlock()
	if b.listener != nil {
		if err := b.listener.Close(); err != nil {
			logger.Debug("Error closing "+b.protocolName+" listener", "error", err)
		}
	}
}

// waitDone returns a channel closed once every session has ended.
func (b *BaseAdapter) waitDone() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		b.activeConns.Wait()
		close(done)
	}()
	return done
}

// gracefulShutdown waits for active sessions to end. With a positive
// ShutdownTimeout, sessions still running when it expires are force-closed.
func (b *BaseAdapter) gracefulShutdown() error {
	activeCount := b.ConnCount.Load()
	logger.Info(b.protocolName+" graceful shutdown: waiting for active connections",
		"active", activeCount, "timeout", b.Config.ShutdownTimeout)

	done := b.waitDone()

	if b.Config.ShutdownTimeout <= 0 {
		<-done
		logger.Info(b.protocolName + " graceful shutdown complete: all connections closed")
		return nil
	}

	timer := time.NewTimer(b.Config.ShutdownTimeout)
	defer timer.Stop()

	select {
	case <-done:
		logger.Info(b.protocolName + " graceful shutdown complete: all connections closed")
		return nil

	case <-timer.C:
		remaining := b.ConnCount.Load()
		logger.Warn(b.protocolName+" shutdown timeout exceeded - forcing closure",
			"active", remaining, "timeout", b.Config.ShutdownTimeout)

		closed := b.forceCloseConnections()
		<-done

		return fmt.Errorf("%w: %s: %d connections force-closed", ErrShutdownTimeout, b.protocolName, closed)
	}
}

// forceCloseConnections closes all active TCP connections and returns how
// many were closed.
func (b *BaseAdapter) forceCloseConnections() int {
	logger.Info("Force-closing active " + b.protocolName + " connections")

	closedCount := 0
	b.ActiveConnections.Range(func(key, value any) bool {
		addr := key.(string)
		conn := value.(net.Conn)

		if err := conn.Close(); err != nil {
			logger.Debug("Error force-closing connection", "address", addr, "error", err)
		} else {
			closedCount++
			logger.Debug("Force-closed connection", "address", addr)
			if b.Metrics != nil {
				b.Metrics.RecordConnectionForceClosed()
			}
		}

		return true
	})

	if closedCount == 0 {
		logger.Debug("No connections to force-close")
	} else {
		logger.Info("Force-closed connections", "count", closedCount)
	}
	return closedCount
}

// Stop initiates graceful shutdown of the server and waits for active
// sessions to end.
//
// Stop is safe to call multiple times and safe to call concurrently with
// ServeWithFactory(). If ctx is cancelled first, remaining sessions are
// force-closed and ctx.Err() is returned.
func (b *BaseAdapter) Stop(ctx context.Context) error {
	b.initiateShutdown()

	if ctx == nil {
		return b.gracefulShutdown()
	}

	activeCount := b.ConnCount.Load()
	logger.Info(b.protocolName+" graceful shutdown: waiting for active connections (context timeout)",
		"active", activeCount)

	done := b.waitDone()

	select {
	case <-done:
		logger.Info(b.protocolName + " graceful shutdown complete: all connections closed")
		return nil

	case <-ctx.Done():
		remaining := b.ConnCount.Load()
		logger.Warn(b.protocolName+" shutdown context cancelled",
			"active", remaining, "error", ctx.Err())
		b.forceCloseConnections()
		<-done
		return ctx.Err()
	}
}

// logMetrics periodically logs server metrics until shutdown.
func (b *BaseAdapter) logMetrics() {
	ticker := time.NewTicker(b.Config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.Shutdown:
			return
		case <-ticker.C:
			logger.Info(b.protocolName+" metrics", "active_connections", b.ConnCount.Load())
		}
	}
}

// GetActiveConnections returns the current number of active connections.
func (b *BaseAdapter) GetActiveConnections() int32 {
	return b.ConnCount.Load()
}

// GetListenerAddr returns the address the server is listening on.
// This method blocks until the listener is ready, making it safe for tests.
// It returns "" if listening failed.
func (b *BaseAdapter) GetListenerAddr() string {
	<-b.ListenerReady

	b.listenerMu.RLock()
	defer b.listenerMu.RUnlock()

	if b.listener == nil {
		return ""
	}
	return b.listener.Addr().String()
}

// Port returns the configured TCP port.
func (b *BaseAdapter) Port() int {
	return b.Config.Port
}

// Protocol returns the human-readable protocol name.
func (b *BaseAdapter) Protocol() string {
	return b.protocolName
}
