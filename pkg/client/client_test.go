package client

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/sandboxd/internal/adapter/sandbox/handlers"
	"github.com/marmos91/sandboxd/internal/protocol"
	"github.com/marmos91/sandboxd/internal/protocol/frame"
	isandbox "github.com/marmos91/sandboxd/internal/sandbox"
	"github.com/marmos91/sandboxd/pkg/adapter/sandbox"
	"github.com/marmos91/sandboxd/pkg/auth"
)

const testToken = "client-test-token"

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local)

// startServer runs a real sandbox adapter on an ephemeral port.
func startServer(t *testing.T) (addr, root string) {
	t.Helper()

	sb, err := isandbox.New(filepath.Join(t.TempDir(), "box"), isandbox.WithCreate(true))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(sb.Root(), "notes.txt"), []byte("line1\nline2"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(sb.Root(), "sub"), 0755))

	authn, err := auth.New(testToken, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = authn.Close() })

	h := handlers.New(sb,
		handlers.WithMaxFileSize(64),
		handlers.WithClock(func() time.Time { return fixedNow }))

	a, err := sandbox.New(sandbox.Config{BindAddress: "127.0.0.1"}, authn, h)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})

	addr = a.GetListenerAddr()
	require.NotEmpty(t, addr)
	return addr, sb.Root()
}

func connect(t *testing.T, addr string) *Client {
	t.Helper()
	c, err := Dial(context.Background(), addr, WithTimeout(2*time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_Session(t *testing.T) {
	addr, root := startServer(t)
	c := connect(t, addr)

	require.NoError(t, c.Authenticate(testToken))

	names, err := c.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"notes.txt", "sub/"}, names)

	content, err := c.Read("notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2", content)

	now, err := c.Time()
	require.NoError(t, err)
	assert.True(t, fixedNow.Equal(now))

	reply, err := c.Do("HELP")
	require.NoError(t, err)
	assert.Equal(t, protocol.UnknownCommand, reply)

	t.Run("ServerErrors", func(t *testing.T) {
		_, err := c.Read("../outside")
		assert.ErrorIs(t, err, ErrAccessDenied)

		_, err = c.Read("missing")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = c.Read("sub")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, os.WriteFile(filepath.Join(root, "big.bin"), []byte(strings.Repeat("x", 65)), 0644))
		_, err = c.Read("big.bin")
		assert.ErrorIs(t, err, ErrFileTooLarge)

		var serr *ServerError
		require.True(t, errors.As(err, &serr))
		assert.Equal(t, "file too large", serr.Message)
	})

	t.Run("ContentLooksLikeAnError", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(root, "app.log"), []byte("ERROR: disk full"), 0644))

		content, err := c.Read("app.log")
		require.NoError(t, err)
		assert.Equal(t, "ERROR: disk full", content)
	})

	require.NoError(t, c.Quit())

	_, err = c.Do("LIST")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClient_AuthFailed(t *testing.T) {
	addr, _ := startServer(t)
	c := connect(t, addr)

	err := c.Authenticate("wrong")
	require.ErrorIs(t, err, ErrAuthFailed)

	_, err = c.Do("LIST")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClient_EmptyListing(t *testing.T) {
	addr, root := startServer(t)
	require.NoError(t, os.Remove(filepath.Join(root, "notes.txt")))
	require.NoError(t, os.Remove(filepath.Join(root, "sub")))

	c := connect(t, addr)
	require.NoError(t, c.Authenticate(testToken))

	names, err := c.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestClient_EmptyCommand(t *testing.T) {
	addr, _ := startServer(t)
	c := connect(t, addr)
	require.NoError(t, c.Authenticate(testToken))

	_, err := c.Do("   ")
	assert.ErrorIs(t, err, ErrEmptyCommand)

	_, err = c.Read(" ")
	assert.Error(t, err)
}

func TestClient_DialFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	_, err = Dial(context.Background(), addr)
	assert.Error(t, err)
}

// scripted answers every frame with the next canned reply, then closes.
func scripted(t *testing.T, replies ...string) *Client {
	t.Helper()

	server, clientConn := net.Pipe()
	go func() {
		defer server.Close()
		for _, r := range replies {
			if _, err := frame.ReadFrame(server); err != nil {
				return
			}
			if err := frame.WriteFrame(server, r); err != nil {
				return
			}
		}
	}()

	c := New(clientConn, WithTimeout(2*time.Second))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_UnexpectedReplies(t *testing.T) {
	t.Run("Handshake", func(t *testing.T) {
		c := scripted(t, "HELLO")
		assert.ErrorIs(t, c.Authenticate(testToken), ErrUnexpectedReply)
	})

	t.Run("Time", func(t *testing.T) {
		c := scripted(t, "yesterday")
		_, err := c.Time()
		assert.ErrorIs(t, err, ErrUnexpectedReply)
	})

	t.Run("Quit", func(t *testing.T) {
		c := scripted(t, "SEE YOU")
		assert.ErrorIs(t, c.Quit(), ErrUnexpectedReply)
	})

	t.Run("ServerHangsUp", func(t *testing.T) {
		server, clientConn := net.Pipe()
		go func() {
			defer server.Close()
			_, _ = frame.ReadFrame(server)
		}()

		c := New(clientConn, WithTimeout(2*time.Second))
		defer c.Close()

		_, err := c.Do("LIST")
		assert.ErrorIs(t, err, frame.ErrNoMessage)
	})

	t.Run("ListError", func(t *testing.T) {
		c := scripted(t, "ERROR: cannot list sandbox: boom")
		_, err := c.List()
		var serr *ServerError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "cannot list sandbox: boom", serr.Message)
		assert.False(t, errors.Is(err, ErrNotFound))
	})

	t.Run("ReadError", func(t *testing.T) {
		c := scripted(t, "ERROR: cannot read file: input/output error")
		_, err := c.Read("a.txt")
		var serr *ServerError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "cannot read file: input/output error", serr.Message)
	})

	t.Run("EntryLooksLikeAnError", func(t *testing.T) {
		c := scripted(t, "ERROR: notes.txt\na.txt")
		names, err := c.List()
		require.NoError(t, err)
		assert.Equal(t, []string{"ERROR: notes.txt", "a.txt"}, names)
	})
}

func TestAsServerError(t *testing.T) {
	serr, ok := AsServerError(protocol.UnknownCommand)
	require.True(t, ok)
	assert.ErrorIs(t, serr, ErrUnknown)

	_, ok = AsServerError("hello")
	assert.False(t, ok)

	_, ok = AsServerError("ERROR: disk full")
	assert.False(t, ok)

	_, ok = AsServerError("ERROR: disk full", protocol.ReadFailedPrefix)
	assert.False(t, ok)

	serr, ok = AsServerError(protocol.ReadFailedPrefix+"boom", protocol.ReadFailedPrefix)
	require.True(t, ok)
	assert.Equal(t, "cannot read file: boom", serr.Message)
}
