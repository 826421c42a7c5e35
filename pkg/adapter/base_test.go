package adapter

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoFactory serves line echo until the client closes.
type echoFactory struct{}

type echoConn struct{ conn net.Conn }

func (echoFactory) NewConnection(conn net.Conn) ConnectionHandler {
	return &echoConn{conn: conn}
}

func (e *echoConn) Serve(_ context.Context) {
	defer e.conn.Close()
	r := bufio.NewReader(e.conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		if _, err := e.conn.Write([]byte(line)); err != nil {
			return
		}
	}
}

func startBase(t *testing.T, cfg BaseConfig) (*BaseAdapter, string, <-chan error) {
	t.Helper()

	cfg.BindAddress = "127.0.0.1"
	b := NewBaseAdapter(cfg, "echo")

	errCh := make(chan error, 1)
	go func() { errCh <- b.ServeWithFactory(context.Background(), echoFactory{}) }()

	addr := b.GetListenerAddr()
	require.NotEmpty(t, addr)
	return b, addr, errCh
}

func echo(t *testing.T, conn net.Conn, r *bufio.Reader, msg string) string {
	t.Helper()
	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))
	_, err := conn.Write([]byte(msg + "\n"))
	require.NoError(t, err)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	return line[:len(line)-1]
}

func TestBaseAdapter_ServeAndStop(t *testing.T) {
	b, addr, errCh := startBase(t, BaseConfig{})

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	assert.Equal(t, "ping", echo(t, conn, bufio.NewReader(conn), "ping"))
	assert.Eventually(t, func() bool { return b.GetActiveConnections() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.NoError(t, b.Stop(context.Background()))
	require.NoError(t, <-errCh)
	assert.Equal(t, int32(0), b.GetActiveConnections())
}

func TestBaseAdapter_ShutdownWhileWaitingForSlot(t *testing.T) {
	b, addr, errCh := startBase(t, BaseConfig{MaxConnections: 1})

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, "x", echo(t, conn, bufio.NewReader(conn), "x"))

	// The accept loop now blocks on the semaphore. Stop must unblock it and,
	// once its context expires, close the held connection.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, b.Stop(ctx), context.DeadlineExceeded)

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ServeWithFactory did not return")
	}
}

func TestBaseAdapter_ShutdownTimeout(t *testing.T) {
	b, addr, errCh := startBase(t, BaseConfig{ShutdownTimeout: 50 * time.Millisecond})

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, "x", echo(t, conn, bufio.NewReader(conn), "x"))

	b.initiateShutdown()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrShutdownTimeout)
	case <-time.After(5 * time.Second):
		t.Fatal("ServeWithFactory did not return")
	}
}

func TestBaseAdapter_Accessors(t *testing.T) {
	b := NewBaseAdapter(BaseConfig{Port: 4321}, "echo")
	assert.Equal(t, 4321, b.Port())
	assert.Equal(t, "echo", b.Protocol())
	assert.Equal(t, int32(0), b.GetActiveConnections())
}
