package sandbox

import (
	"fmt"
	"time"

	"github.com/marmos91/sandboxd/internal/protocol/frame"
)

// Config holds the sandbox adapter settings.
//
// Default values (applied by New if zero):
//   - MaxFrameSize: frame.DefaultMaxFrameSize (16 MiB)
//
// A zero timeout disables the corresponding deadline.
type Config struct {
	// BindAddress is the IP address to listen on ("" binds all interfaces).
	BindAddress string

	// Port is the TCP port. 0 picks an ephemeral port.
	Port int

	// MaxConnections caps concurrent sessions. 0 means unlimited.
	MaxConnections int

	// ShutdownTimeout bounds the wait for sessions on shutdown.
	// 0 waits for every session to end.
	ShutdownTimeout time.Duration

	// MetricsLogInterval is how often the active connection count is logged.
	MetricsLogInterval time.Duration

	// MaxFrameSize rejects frames that declare a longer payload.
	MaxFrameSize uint32

	// Timeouts holds per-connection deadlines.
	Timeouts Timeouts
}

// Timeouts groups the per-connection deadlines.
type Timeouts struct {
	// Read bounds the rest of a frame once its first byte arrived.
	Read time.Duration

	// Write bounds writing one reply.
	Write time.Duration

	// Idle bounds the wait for the first byte of the next frame.
	Idle time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = frame.DefaultMaxFrameSize
	}
}

func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid max connections %d", c.MaxConnections)
	}
	if c.ShutdownTimeout < 0 || c.Timeouts.Read < 0 || c.Timeouts.Write < 0 || c.Timeouts.Idle < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.MaxFrameSize < frame.HeaderSize {
		return fmt.Errorf("max frame size %d is smaller than the frame header", c.MaxFrameSize)
	}
	return nil
}
