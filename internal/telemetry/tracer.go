package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys. Network keys follow OpenTelemetry semantic conventions.
const (
	AttrClientAddr = "client.address"
	AttrSessionID  = "session.id"
	AttrAuthResult = "auth.result"

	AttrCommand    = "sandbox.command"
	AttrOutcome    = "sandbox.outcome"
	AttrPath       = "sandbox.path"
	AttrSize       = "sandbox.size"
	AttrEntries    = "sandbox.entries"
	AttrReplyBytes = "sandbox.reply_bytes"
)

// Span names.
const (
	SpanSession = "sandbox.session"
	SpanAuth    = "sandbox.auth"
	// Command spans are named "sandbox.<VERB>", e.g. "sandbox.READ".
	spanCommandPrefix = "sandbox."
)

// ClientAddr returns an attribute for the remote address
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

// SessionID returns an attribute for the session identifier
func SessionID(id string) attribute.KeyValue {
	return attribute.String(AttrSessionID, id)
}

// AuthResult returns an attribute for the handshake result
func AuthResult(ok bool) attribute.KeyValue {
	return attribute.Bool(AttrAuthResult, ok)
}

// Command returns an attribute for the command verb
func Command(verb string) attribute.KeyValue {
	return attribute.String(AttrCommand, verb)
}

// Outcome returns an attribute for a command outcome
func Outcome(outcome string) attribute.KeyValue {
	return attribute.String(AttrOutcome, outcome)
}

// Path returns an attribute for a requested path
func Path(p string) attribute.KeyValue {
	return attribute.String(AttrPath, p)
}

// Size returns an attribute for a file size
func Size(n int64) attribute.KeyValue {
	return attribute.Int64(AttrSize, n)
}

// Entries returns an attribute for a directory entry count
func Entries(n int) attribute.KeyValue {
	return attribute.Int(AttrEntries, n)
}

// ReplyBytes returns an attribute for the size of a reply payload
func ReplyBytes(n int) attribute.KeyValue {
	return attribute.Int(AttrReplyBytes, n)
}

// StartSessionSpan starts the root span of a client session.
func StartSessionSpan(ctx context.Context, sessionID, clientAddr string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanSession,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(SessionID(sessionID), ClientAddr(clientAddr)),
	)
}

// StartCommandSpan starts a span for a single command.
func StartCommandSpan(ctx context.Context, verb string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := make([]attribute.KeyValue, 0, len(attrs)+1)
	all = append(all, Command(verb))
	all = append(all, attrs...)
	return StartSpan(ctx, spanCommandPrefix+verb, trace.WithAttributes(all...))
}
