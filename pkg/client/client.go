// Package client provides a Go client for the sandbox protocol, used by
// sandboxctl.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/sandboxd/internal/protocol"
	"github.com/marmos91/sandboxd/internal/protocol/frame"
)

// DefaultTimeout bounds each request/reply exchange.
const DefaultTimeout = 30 * time.Second

// Client is a connection to a sandboxd server. Calls are serialized, so a
// Client may be shared between goroutines.
type Client struct {
	conn         net.Conn
	timeout      time.Duration
	maxFrameSize uint32

	mu     sync.Mutex
	closed bool
}

type options struct {
	timeout      time.Duration
	maxFrameSize uint32
	dialer       *net.Dialer
}

// Option configures a Client.
type Option func(*options)

// WithTimeout bounds every exchange. 0 disables the deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithMaxFrameSize caps the size of replies the client accepts.
func WithMaxFrameSize(n uint32) Option {
	return func(o *options) {
		o.maxFrameSize = n
	}
}

// WithDialer overrides the dialer used by Dial.
func WithDialer(d *net.Dialer) Option {
	return func(o *options) {
		if d != nil {
			o.dialer = d
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		timeout:      DefaultTimeout,
		maxFrameSize: frame.DefaultMaxFrameSize,
		dialer:       &net.Dialer{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Dial connects to addr. The caller must Authenticate before sending
// commands.
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	o := buildOptions(opts)

	conn, err := o.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return newClient(conn, o), nil
}

// New wraps an established connection.
func New(conn net.Conn, opts ...Option) *Client {
	return newClient(conn, buildOptions(opts))
}

func newClient(conn net.Conn, o options) *Client {
	return &Client{
		conn:         conn,
		timeout:      o.timeout,
		maxFrameSize: o.maxFrameSize,
	}
}

// Authenticate sends the shared secret. On ErrAuthFailed the server has
// closed the connection and so does the client.
func (c *Client) Authenticate(token string) error {
	reply, err := c.exchange(token)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	switch reply {
	case protocol.AuthOK:
		return nil
	case protocol.AuthFailed:
		_ = c.Close()
		return ErrAuthFailed
	default:
		_ = c.Close()
		return fmt.Errorf("authenticate: %w: %q", ErrUnexpectedReply, reply)
	}
}

// Do sends a raw command line and returns the reply text unchanged.
// "ERROR: ..." replies are returned as text, not as errors.
func (c *Client) Do(cmd string) (string, error) {
	if strings.TrimSpace(cmd) == "" {
		return "", ErrEmptyCommand
	}
	return c.exchange(cmd)
}

// List returns the names in the sandbox root. Directories end in "/".
func (c *Client) List() ([]string, error) {
	reply, err := c.Do("LIST")
	if err != nil {
		return nil, err
	}
	if serr, ok := AsServerError(reply, protocol.ListFailedPrefix); ok {
		return nil, serr
	}
	if reply == protocol.EmptyListing {
		return []string{}, nil
	}
	return strings.Split(reply, "\n"), nil
}

// Read returns the content of a file in the sandbox.
func (c *Client) Read(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("read: file name is required")
	}

	reply, err := c.Do("READ " + name)
	if err != nil {
		return "", err
	}
	if serr, ok := AsServerError(reply, protocol.ReadFailedPrefix); ok {
		return "", serr
	}
	return reply, nil
}

// Time returns the server's local time, interpreted in the client's zone.
func (c *Client) Time() (time.Time, error) {
	reply, err := c.Do("TIME")
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation(protocol.TimeLayout, reply, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnexpectedReply, reply)
	}
	return t, nil
}

// Quit ends the session and closes the client.
func (c *Client) Quit() error {
	reply, err := c.Do("QUIT")
	closeErr := c.Close()
	if err != nil {
		return err
	}
	if reply != protocol.Bye {
		return fmt.Errorf("%w: %q", ErrUnexpectedReply, reply)
	}
	return closeErr
}

// Close closes the connection. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// exchange writes one frame and reads one reply.
func (c *Client) exchange(msg string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", ErrClosed
	}

	if c.timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return "", fmt.Errorf("set deadline: %w", err)
		}
	}

	if err := frame.WriteFrame(c.conn, msg); err != nil {
		return "", err
	}

	reply, err := frame.ReadFrameMax(c.conn, c.maxFrameSize)
	if err != nil {
		if errors.Is(err, frame.ErrNoMessage) {
			return "", fmt.Errorf("connection closed by server: %w", err)
		}
		return "", err
	}
	return reply, nil
}
