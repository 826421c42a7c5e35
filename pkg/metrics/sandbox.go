package metrics

import "time"

// SandboxMetrics records session, command and connection activity of the
// sandbox server.
//
// It also satisfies adapter.MetricsRecorder, so the same value is handed to
// the accept loop.
type SandboxMetrics interface {
	// RecordSessionStart counts a session entering the handshake.
	RecordSessionStart()

	// RecordSessionEnd records how long a session lasted and why it ended
	// (e.g. "quit", "eof", "auth_failed", "write_error", "panic").
	RecordSessionEnd(reason string, duration time.Duration)

	// RecordAuthAttempt counts a handshake by result.
	RecordAuthAttempt(ok bool)

	// RecordCommand records one executed command, its outcome and duration.
	RecordCommand(verb, outcome string, duration time.Duration)

	// RecordBytesSent counts reply payload bytes.
	RecordBytesSent(n int)

	// RecordFrameError counts frames that could not be read
	// (e.g. "truncated", "too_large", "timeout").
	RecordFrameError(reason string)

	RecordConnectionAccepted()
	RecordConnectionClosed()
	RecordConnectionForceClosed()
	SetActiveConnections(count int32)
}

// NopSandboxMetrics discards everything.
type NopSandboxMetrics struct{}

func (NopSandboxMetrics) RecordSessionStart()                         {}
func (NopSandboxMetrics) RecordSessionEnd(string, time.Duration)      {}
func (NopSandboxMetrics) RecordAuthAttempt(bool)                      {}
func (NopSandboxMetrics) RecordCommand(string, string, time.Duration) {}
func (NopSandboxMetrics) RecordBytesSent(int)                         {}
func (NopSandboxMetrics) RecordFrameError(string)                     {}
func (NopSandboxMetrics) RecordConnectionAccepted()                   {}
func (NopSandboxMetrics) RecordConnectionClosed()                     {}
func (NopSandboxMetrics) RecordConnectionForceClosed()                {}
func (NopSandboxMetrics) SetActiveConnections(int32)                  {}

var _ SandboxMetrics = NopSandboxMetrics{}

// OrNop returns m, or a NopSandboxMetrics when m is nil.
func OrNop(m SandboxMetrics) SandboxMetrics {
	if m == nil {
		return NopSandboxMetrics{}
	}
	return m
}
