package logger

import (
	"log/slog"
)

// Standard field keys for structured logging. Use them consistently so log
// lines can be aggregated and queried.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// ========================================================================
	// Session
	// ========================================================================
	KeySessionID  = "session_id"
	KeyClientAddr = "client_addr"
	KeyState      = "state"
	KeyActive     = "active"

	// ========================================================================
	// Commands
	// ========================================================================
	KeyCommand  = "command"
	KeyArgument = "argument"
	KeyOutcome  = "outcome"
	KeyPath     = "path"
	KeySize     = "size"
	KeyBytes    = "bytes"

	// ========================================================================
	// Timing & Errors
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyPanic      = "panic"
)

// SessionID returns a slog.Attr for a session identifier.
func SessionID(id string) slog.Attr {
	return slog.String(KeySessionID, id)
}

// ClientAddr returns a slog.Attr for a remote address.
func ClientAddr(addr string) slog.Attr {
	return slog.String(KeyClientAddr, addr)
}

// Command returns a slog.Attr for a command verb.
func Command(verb string) slog.Attr {
	return slog.String(KeyCommand, verb)
}

// Path returns a slog.Attr for a filesystem path.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Err returns a slog.Attr for an error. A nil error yields an empty attr,
// which handlers drop.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// DurationMs returns a slog.Attr with a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}
