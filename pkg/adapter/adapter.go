// Package adapter provides the shared TCP server machinery for protocol
// adapters: the accept loop, connection accounting and graceful shutdown.
package adapter

import "context"

// Adapter represents a protocol server that can be managed by the server
// runtime.
//
// Lifecycle:
//  1. Creation: Adapter is created with protocol-specific configuration
//  2. Startup: Serve() starts the protocol server and blocks until shutdown
//  3. Shutdown: Stop() initiates graceful shutdown
//
// Thread safety:
// Implementations must be safe for concurrent use. Stop() may be called
// concurrently with Serve().
type Adapter interface {
	// Serve starts the protocol server and blocks until the context is cancelled
	// or an unrecoverable error occurs.
	//
	// When the context is cancelled, Serve must initiate graceful shutdown:
	//   - Stop accepting new connections
	//   - Wait for active sessions to complete
	//   - Clean up resources
	//
	// Returns:
	//   - nil on graceful shutdown
	//   - error if startup fails or shutdown is not graceful
	Serve(ctx context.Context) error

	// Stop initiates graceful shutdown of the protocol server.
	//
	// Implementations must:
	//   - Be safe to call multiple times (idempotent)
	//   - Be safe to call concurrently with Serve()
	//   - Force-close remaining sessions when ctx is done
	Stop(ctx context.Context) error

	// Protocol returns the human-readable protocol name for logging and metrics.
	Protocol() string

	// Port returns the configured TCP port.
	Port() int
}
