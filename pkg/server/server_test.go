package server

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/sandboxd/internal/adapter/sandbox/handlers"
	"github.com/marmos91/sandboxd/pkg/audit"
	"github.com/marmos91/sandboxd/pkg/auth"
	"github.com/marmos91/sandboxd/pkg/client"
	"github.com/marmos91/sandboxd/pkg/config"
)

const testToken = "runtime-secret"

var fixedNow = time.Date(2025, 6, 7, 8, 9, 10, 0, time.Local)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.GetDefaultConfig()
	cfg.Server.BindAddress = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.MetricsLogInterval = 0
	cfg.Auth.Token = testToken
	cfg.Sandbox.Root = filepath.Join(t.TempDir(), "root")
	cfg.Metrics.Port = 0
	return cfg
}

type running struct {
	rt     *Runtime
	cancel context.CancelFunc
	errCh  chan error
}

func start(t *testing.T, cfg *config.Config, opts ...Option) *running {
	t.Helper()

	opts = append(opts, WithHandlerOptions(handlers.WithClock(func() time.Time { return fixedNow })))
	rt, err := New(cfg, opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	r := &running{rt: rt, cancel: cancel, errCh: make(chan error, 1)}
	go func() { r.errCh <- rt.Run(ctx) }()

	require.NotEmpty(t, rt.Addr())
	return r
}

func (r *running) stop(t *testing.T) error {
	t.Helper()
	r.cancel()
	select {
	case err := <-r.errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestRuntime_ServesSessions(t *testing.T) {
	cfg := testConfig(t)
	r := start(t, cfg)

	require.NoError(t, os.WriteFile(filepath.Join(r.rt.Sandbox().Root(), "a.txt"), []byte("alpha"), 0644))

	c, err := client.Dial(context.Background(), r.rt.Addr(), client.WithTimeout(2*time.Second))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Authenticate(testToken))

	names, err := c.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, names)

	content, err := c.Read("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "alpha", content)

	now, err := c.Time()
	require.NoError(t, err)
	assert.True(t, fixedNow.Equal(now))

	require.NoError(t, c.Quit())
	require.NoError(t, r.stop(t))

	assert.Nil(t, r.rt.MetricsServer())
	assert.IsType(t, audit.NopStore{}, r.rt.AuditStore())
}

func TestRuntime_MetricsAndAudit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = true
	cfg.Audit.Enabled = true
	cfg.Audit.Type = audit.StoreTypeSQLite
	cfg.Audit.SQLite.Path = filepath.Join(t.TempDir(), "audit.db")

	r := start(t, cfg, WithRegistry(prometheus.NewRegistry()))
	require.NotNil(t, r.rt.MetricsServer())
	metricsAddr := r.rt.MetricsServer().Addr()

	c, err := client.Dial(context.Background(), r.rt.Addr(), client.WithTimeout(2*time.Second))
	require.NoError(t, err)
	require.NoError(t, c.Authenticate(testToken))
	_, err = c.List()
	require.NoError(t, err)
	require.NoError(t, c.Quit())

	// Session end is recorded after the reply, so wait for the slot to free.
	require.Eventually(t, func() bool { return r.rt.ActiveSessions() == 0 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + metricsAddr + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "sandboxd_sessions_started_total 1")
	assert.Contains(t, string(body), `sandboxd_commands_total{`)

	resp, err = http.Get("http://" + metricsAddr + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, r.stop(t))

	// The runtime closed its store; reopen the database to inspect the trail.
	store, err := audit.New(&cfg.Audit)
	require.NoError(t, err)
	defer store.Close()

	events, err := store.List(context.Background(), audit.Filter{})
	require.NoError(t, err)
	require.Len(t, events, 4)

	kinds := map[audit.Kind]int{}
	for _, e := range events {
		kinds[e.Kind]++
	}
	assert.Equal(t, 1, kinds[audit.KindAuth])
	assert.Equal(t, 2, kinds[audit.KindCommand])
	assert.Equal(t, 1, kinds[audit.KindSession])
}

func TestRuntime_StopDrainsThenReturns(t *testing.T) {
	cfg := testConfig(t)
	r := start(t, cfg)

	c, err := client.Dial(context.Background(), r.rt.Addr(), client.WithTimeout(2*time.Second))
	require.NoError(t, err)
	require.NoError(t, c.Authenticate(testToken))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, r.rt.Stop(ctx), context.DeadlineExceeded)

	_, err = c.Do("TIME")
	assert.Error(t, err)
	_ = c.Close()

	require.NoError(t, r.stop(t))
}

func TestRuntime_StopEndsRunWithMetrics(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = true

	r := start(t, cfg, WithRegistry(prometheus.NewRegistry()))
	require.NotNil(t, r.rt.MetricsServer())
	metricsAddr := r.rt.MetricsServer().Addr()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.rt.Stop(ctx))

	select {
	case err := <-r.errCh:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	_, err := http.Get("http://" + metricsAddr + "/healthz")
	assert.Error(t, err)
}

func TestNew_Errors(t *testing.T) {
	t.Run("NilConfig", func(t *testing.T) {
		_, err := New(nil)
		assert.Error(t, err)
	})

	t.Run("NoSecret", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Auth.Token = ""
		_, err := New(cfg)
		assert.ErrorIs(t, err, auth.ErrNoSecret)
	})

	t.Run("MissingRoot", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Sandbox.CreateRoot = false
		_, err := New(cfg)
		assert.Error(t, err)
	})

	t.Run("InvalidServerSettings", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Server.Timeouts.Idle = -time.Second
		_, err := New(cfg)
		assert.Error(t, err)
	})
}

func TestAdapterConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.MaxConnections = 7
	cfg.Server.Timeouts.Read = time.Second

	ac := adapterConfig(cfg.Server)
	assert.Equal(t, "127.0.0.1", ac.BindAddress)
	assert.Equal(t, 7, ac.MaxConnections)
	assert.Equal(t, uint32(16<<20), ac.MaxFrameSize)
	assert.Equal(t, time.Second, ac.Timeouts.Read)
	assert.Equal(t, config.DefaultWriteTimeout, ac.Timeouts.Write)
}
