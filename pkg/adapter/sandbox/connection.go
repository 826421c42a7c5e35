package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/sandboxd/internal/adapter/sandbox/handlers"
	"github.com/marmos91/sandboxd/internal/logger"
	"github.com/marmos91/sandboxd/internal/protocol"
	"github.com/marmos91/sandboxd/internal/protocol/command"
	"github.com/marmos91/sandboxd/internal/protocol/frame"
	"github.com/marmos91/sandboxd/internal/telemetry"
	"github.com/marmos91/sandboxd/pkg/audit"
)

// State is the session state.
type State int

const (
	StateAwaitingAuth State = iota
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingAuth:
		return "awaiting_auth"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session end reasons, used in metrics and audit records.
const (
	EndQuit          = "quit"
	EndEOF           = "eof"
	EndAuthFailed    = "auth_failed"
	EndTimeout       = "timeout"
	EndFrameTooLarge = "frame_too_large"
	EndReadError     = "read_error"
	EndWriteError    = "write_error"
	EndPanic         = "panic"
)

// Audit column limits.
const (
	maxAuditArgument = 4096
	maxAuditDetail   = 1024
)

// Connection is one client session.
type Connection struct {
	adapter    *Adapter
	conn       net.Conn
	reader     *deadlineReader
	id         string
	clientAddr string
	state      State
	endReason  string
}

// NewConnection creates a session for conn with a fresh time-ordered id.
func NewConnection(a *Adapter, conn net.Conn) *Connection {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	return &Connection{
		adapter:    a,
		conn:       conn,
		reader:     &deadlineReader{conn: conn, timeout: a.config.Timeouts.Read},
		id:         id.String(),
		clientAddr: conn.RemoteAddr().String(),
		state:      StateAwaitingAuth,
	}
}

// ID returns the session id.
func (c *Connection) ID() string {
	return c.id
}

// State returns the current session state. Not safe for use while Serve runs.
func (c *Connection) State() State {
	return c.state
}

// Serve runs the session until the client quits, the stream ends, or an
// error closes it. It always closes the connection and never panics.
func (c *Connection) Serve(ctx context.Context) {
	started := time.Now()

	ctx, span := telemetry.StartSessionSpan(ctx, c.id, c.clientAddr)
	lc := logger.NewLogContext(c.id, c.clientAddr).
		WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	ctx = logger.WithContext(ctx, lc)

	c.adapter.metrics.RecordSessionStart()
	logger.DebugCtx(ctx, "session started")

	defer c.handleConnectionClose(ctx, span, started)

	if !c.authenticate(ctx) {
		return
	}

	for {
		payload, ok := c.readFrame(ctx)
		if !ok {
			return
		}

		cmd := command.Parse(payload)
		switch cmd.Kind {
		case command.KindEmpty:
			continue

		case command.KindQuit:
			c.endReason = EndQuit
			_ = c.writeFrame(ctx, protocol.Bye)
			c.recordCommand(ctx, cmd, handlers.KindOK.String(), "")
			return

		default:
			if !c.execute(ctx, cmd) {
				return
			}
		}
	}
}

// authenticate reads the handshake frame and answers AUTH_OK or AUTH_FAILED.
func (c *Connection) authenticate(ctx context.Context) bool {
	secret, ok := c.readFrame(ctx)
	if !ok {
		return false
	}

	authCtx, span := telemetry.StartSpan(ctx, telemetry.SpanAuth)
	verified := c.adapter.auth.Verify(authCtx, secret)
	span.SetAttributes(telemetry.AuthResult(verified))
	span.End()

	c.adapter.metrics.RecordAuthAttempt(verified)

	if !verified {
		logger.WarnCtx(ctx, "authentication failed")
		c.record(ctx, audit.Event{Kind: audit.KindAuth, Outcome: "failed"})
		c.endReason = EndAuthFailed
		_ = c.writeFrame(ctx, protocol.AuthFailed)
		return false
	}

	c.record(ctx, audit.Event{Kind: audit.KindAuth, Outcome: "ok"})
	if !c.writeFrame(ctx, protocol.AuthOK) {
		return false
	}

	c.state = StateAuthenticated
	logger.InfoCtx(ctx, "client authenticated")
	return true
}

// execute runs one command and writes its reply. It reports whether the
// session should continue.
func (c *Connection) execute(ctx context.Context, cmd command.Command) bool {
	start := time.Now()
	cmdCtx := logger.WithContext(ctx, logger.FromContext(ctx).WithCommand(cmd.Verb()))

	res := c.adapter.handler.Execute(cmdCtx, cmd)
	elapsed := time.Since(start)

	c.adapter.metrics.RecordCommand(cmd.Verb(), res.Kind.String(), elapsed)

	args := []any{logger.Command(cmd.Verb()), "outcome", res.Kind.String(), logger.DurationMs(float64(elapsed.Microseconds()) / 1000.0)}
	if cmd.Arg != "" {
		args = append(args, logger.Path(cmd.Arg))
	}
	switch {
	case res.Err != nil:
		logger.WarnCtx(cmdCtx, "command failed", append(args, logger.Err(res.Err))...)
	case res.Kind == handlers.KindUnknown:
		logger.DebugCtx(cmdCtx, "unknown command", append(args, "raw", truncate(cmd.Raw, 64))...)
	default:
		logger.DebugCtx(cmdCtx, "command served", args...)
	}

	detail := ""
	if res.Err != nil {
		detail = res.Err.Error()
	}
	c.recordCommand(ctx, cmd, res.Kind.String(), detail)

	return c.writeFrame(cmdCtx, res.Text)
}

// readFrame reads the next frame under the idle and read deadlines. On
// failure it sets the end reason and returns false.
func (c *Connection) readFrame(ctx context.Context) (string, bool) {
	if idle := c.adapter.config.Timeouts.Idle; idle > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(idle)); err != nil {
			logger.DebugCtx(ctx, "failed to set idle deadline", logger.Err(err))
		}
	} else if c.reader.timeout > 0 {
		_ = c.conn.SetReadDeadline(time.Time{})
	}
	c.reader.reset()

	payload, err := frame.ReadFrameMax(c.reader, c.adapter.config.MaxFrameSize)
	if err == nil {
		return payload, true
	}

	var netErr net.Error
	switch {
	case errors.Is(err, frame.ErrTruncated):
		c.adapter.metrics.RecordFrameError("truncated")
		c.endReason = EndEOF
		logger.DebugCtx(ctx, "client closed mid-frame", logger.Err(err))
	case errors.Is(err, frame.ErrNoMessage):
		c.endReason = EndEOF
		logger.DebugCtx(ctx, "client closed connection")
	case errors.Is(err, frame.ErrFrameTooLarge):
		c.adapter.metrics.RecordFrameError("too_large")
		c.endReason = EndFrameTooLarge
		logger.WarnCtx(ctx, "frame rejected", logger.Err(err))
	case errors.As(err, &netErr) && netErr.Timeout():
		c.adapter.metrics.RecordFrameError("timeout")
		c.endReason = EndTimeout
		logger.DebugCtx(ctx, "session timed out", logger.Err(err))
	case errors.Is(err, net.ErrClosed):
		c.endReason = EndEOF
		logger.DebugCtx(ctx, "connection closed", logger.Err(err))
	default:
		c.adapter.metrics.RecordFrameError("read")
		c.endReason = EndReadError
		logger.DebugCtx(ctx, "error reading frame", logger.Err(err))
	}
	return "", false
}

// writeFrame sends msg under the write deadline. On failure it sets the end
// reason and returns false.
func (c *Connection) writeFrame(ctx context.Context, msg string) bool {
	if wt := c.adapter.config.Timeouts.Write; wt > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(wt)); err != nil {
			logger.DebugCtx(ctx, "failed to set write deadline", logger.Err(err))
		}
	}

	if err := frame.WriteFrame(c.conn, msg); err != nil {
		if c.endReason == "" {
			c.endReason = EndWriteError
		}
		logger.DebugCtx(ctx, "error writing reply", logger.Err(err))
		return false
	}

	c.adapter.metrics.RecordBytesSent(frame.HeaderSize + len(msg))
	return true
}

func (c *Connection) recordCommand(ctx context.Context, cmd command.Command, outcome, detail string) {
	c.record(ctx, audit.Event{
		Kind:     audit.KindCommand,
		Verb:     cmd.Verb(),
		Argument: cmd.Arg,
		Outcome:  outcome,
		Detail:   detail,
	})
}

// record writes an audit event. Failures are logged, never surfaced.
func (c *Connection) record(ctx context.Context, e audit.Event) {
	e.SessionID = c.id
	e.ClientAddr = c.clientAddr
	e.Argument = truncate(e.Argument, maxAuditArgument)
	e.Detail = truncate(e.Detail, maxAuditDetail)

	if err := c.adapter.audit.Record(ctx, e); err != nil {
		logger.WarnCtx(ctx, "failed to record audit event", "kind", string(e.Kind), logger.Err(err))
	}
}

// handleConnectionClose recovers a panic, closes the connection and records
// the session end.
func (c *Connection) handleConnectionClose(ctx context.Context, span trace.Span, started time.Time) {
	if r := recover(); r != nil {
		c.endReason = EndPanic
		logger.ErrorCtx(ctx, "panic in sandbox session",
			"error", r,
			"stack", string(debug.Stack()))
		span.SetStatus(codes.Error, fmt.Sprint(r))
	}

	_ = c.conn.Close()
	c.state = StateClosed

	if c.endReason == "" {
		c.endReason = EndEOF
	}

	elapsed := time.Since(started)
	c.adapter.metrics.RecordSessionEnd(c.endReason, elapsed)
	c.record(ctx, audit.Event{Kind: audit.KindSession, Outcome: c.endReason})

	span.SetAttributes(telemetry.Outcome(c.endReason))
	span.End()

	logger.DebugCtx(ctx, "session closed", "reason", c.endReason, logger.DurationMs(float64(elapsed.Microseconds())/1000.0))
}

// deadlineReader arms the read timeout once the first byte of a frame has
// arrived, so the wait for a frame is bounded by the idle timeout alone.
type deadlineReader struct {
	conn    net.Conn
	timeout time.Duration
	armed   bool
}

func (r *deadlineReader) reset() {
	r.armed = false
}

func (r *deadlineReader) Read(p []byte) (int, error) {
	n, err := r.conn.Read(p)
	if n > 0 && !r.armed && r.timeout > 0 {
		r.armed = true
		if derr := r.conn.SetReadDeadline(time.Now().Add(r.timeout)); derr != nil && err == nil {
			err = derr
		}
	}
	return n, err
}

var _ io.Reader = (*deadlineReader)(nil)

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
