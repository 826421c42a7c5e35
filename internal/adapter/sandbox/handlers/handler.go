// Package handlers implements the commands a session can run once
// authenticated: LIST, READ and TIME.
//
// Handlers never fail in the Go sense. Every outcome, including filesystem
// faults, is a Result whose Text is the exact reply frame and whose Kind
// classifies it for logging, metrics and auditing.
package handlers

import (
	"context"
	"time"

	"github.com/marmos91/sandboxd/internal/protocol"
	"github.com/marmos91/sandboxd/internal/protocol/command"
	"github.com/marmos91/sandboxd/internal/sandbox"
	"github.com/marmos91/sandboxd/internal/telemetry"
)

// Kind classifies a command outcome.
type Kind int

const (
	// KindOK is a successful reply.
	KindOK Kind = iota
	// KindDenied is a READ whose path escaped the sandbox.
	KindDenied
	// KindNotFound is a READ of a missing path or a directory.
	KindNotFound
	// KindTooLarge is a READ of a file above the size limit.
	KindTooLarge
	// KindError is an I/O failure reported to the client as text.
	KindError
	// KindUnknown is a command outside the dispatch table.
	KindUnknown
)

// String returns the lower-case outcome label used in metrics and audit.
func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindDenied:
		return "denied"
	case KindNotFound:
		return "not_found"
	case KindTooLarge:
		return "too_large"
	case KindError:
		return "error"
	case KindUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Result is the outcome of a command.
type Result struct {
	Kind Kind
	// Text is the reply frame payload.
	Text string
	// Err carries the underlying cause for KindError and is never sent.
	Err error
}

func ok(text string) Result {
	return Result{Kind: KindOK, Text: text}
}

// Handler runs commands against one sandbox. It holds no per-session state
// and is shared by all connections.
type Handler struct {
	sandbox     *sandbox.Sandbox
	maxFileSize int64
	now         func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithMaxFileSize overrides the READ size limit. Values <= 0 are ignored.
func WithMaxFileSize(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxFileSize = n
		}
	}
}

// WithClock overrides the clock used by TIME.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// New returns a Handler for sb.
func New(sb *sandbox.Sandbox, opts ...Option) *Handler {
	h := &Handler{
		sandbox:     sb,
		maxFileSize: protocol.DefaultMaxFileSize,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// MaxFileSize returns the READ size limit in bytes.
func (h *Handler) MaxFileSize() int64 {
	return h.maxFileSize
}

// Execute runs a parsed command. QUIT and empty commands are session
// control and must be handled by the caller; they are reported as unknown
// here.
func (h *Handler) Execute(ctx context.Context, cmd command.Command) Result {
	ctx, span := telemetry.StartCommandSpan(ctx, cmd.Verb())
	defer span.End()

	var res Result
	switch cmd.Kind {
	case command.KindList:
		res = h.List(ctx)
	case command.KindRead:
		res = h.Read(ctx, cmd.Arg)
	case command.KindTime:
		res = h.Time(ctx)
	default:
		res = Result{Kind: KindUnknown, Text: protocol.UnknownCommand}
	}

	telemetry.SetAttributes(ctx, telemetry.Outcome(res.Kind.String()), telemetry.ReplyBytes(len(res.Text)))
	if res.Err != nil {
		telemetry.RecordError(ctx, res.Err)
	}
	return res
}
