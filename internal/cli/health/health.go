// Package health probes a running sandboxd instance from the outside.
package health

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds each probe.
const DefaultTimeout = 2 * time.Second

// Check is the result of a single probe.
type Check struct {
	Target  string `json:"target" yaml:"target"`
	OK      bool   `json:"ok" yaml:"ok"`
	Message string `json:"message" yaml:"message"`
}

// Listener dials addr and hangs up without sending anything. The server
// treats that as a session that ended before the handshake.
func Listener(ctx context.Context, addr string) Check {
	c := Check{Target: addr}

	d := net.Dialer{Timeout: DefaultTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		c.Message = err.Error()
		return c
	}
	_ = conn.Close()

	c.OK = true
	c.Message = "accepting connections"
	return c
}

// HTTP issues a GET to url and expects a 200 response. The first line of the
// body becomes the message.
func HTTP(ctx context.Context, url string) Check {
	c := Check{Target: url}

	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.Message = err.Error()
		return c
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.Message = err.Error()
		return c
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	msg := strings.TrimSpace(strings.SplitN(string(body), "\n", 2)[0])

	if resp.StatusCode != http.StatusOK {
		c.Message = fmt.Sprintf("%s: %s", resp.Status, msg)
		return c
	}
	c.OK = true
	c.Message = msg
	return c
}

// LocalAddr turns a bind address into something dialable: wildcard binds
// are probed on loopback.
func LocalAddr(bind string, port int) string {
	switch bind {
	case "", "0.0.0.0", "::":
		bind = "127.0.0.1"
	}
	return net.JoinHostPort(bind, fmt.Sprint(port))
}
