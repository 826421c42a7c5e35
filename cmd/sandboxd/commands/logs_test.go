package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTail(t *testing.T) {
	var sb strings.Builder
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}

	lines, err := tail(strings.NewReader(sb.String()), 3, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []string{"line 8", "line 9", "line 10"}, lines)

	lines, err = tail(strings.NewReader(sb.String()), 50, time.Time{})
	require.NoError(t, err)
	assert.Len(t, lines, 10)
	assert.Equal(t, "line 1", lines[0])

	lines, err = tail(strings.NewReader(sb.String()), 0, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestTail_Since(t *testing.T) {
	input := strings.Join([]string{
		`[2025-01-01 10:00:00.000] [INFO] old`,
		`{"time":"2025-01-01T09:00:00Z","level":"INFO","msg":"old json"}`,
		`no timestamp here`,
		`[2099-01-01 10:00:00.000] [INFO] new`,
	}, "\n")

	since := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	lines, err := tail(strings.NewReader(input), 10, since)
	require.NoError(t, err)
	assert.Equal(t, []string{"no timestamp here", "[2099-01-01 10:00:00.000] [INFO] new"}, lines)
}

func TestExtractTimestamp(t *testing.T) {
	ts := extractTimestamp(`[2025-01-02 03:04:05.678] [WARN] something`)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 678e6, time.Local), ts)

	ts = extractTimestamp(`{"time":"2025-01-02T03:04:05.123456789Z","msg":"x"}`)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 123456789, time.UTC), ts.UTC())

	assert.True(t, extractTimestamp("plain").IsZero())
	assert.True(t, extractTimestamp("[not a time] x").IsZero())
}

func TestShowLogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sandboxd.log")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\nc\n"), 0644))

	var out bytes.Buffer
	require.NoError(t, showLogs(&out, path, 2, time.Time{}))
	assert.Equal(t, "b\nc\n", out.String())

	assert.Error(t, showLogs(&out, filepath.Join(t.TempDir(), "missing"), 2, time.Time{}))
}

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFollowLogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sandboxd.log")
	require.NoError(t, os.WriteFile(path, []byte("before\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out syncBuffer
	done := make(chan error, 1)
	go func() { done <- followLogs(ctx, &out, path) }()

	// The watcher is registered asynchronously; keep appending until a line
	// shows up.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	defer f.Close()

	require.Eventually(t, func() bool {
		_, _ = f.WriteString("after\n")
		return strings.Contains(out.String(), "after\n")
	}, 5*time.Second, 50*time.Millisecond)
	assert.NotContains(t, out.String(), "before")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("followLogs did not return")
	}
}
