package handlers

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/sandboxd/internal/protocol"
	"github.com/marmos91/sandboxd/internal/protocol/command"
	"github.com/marmos91/sandboxd/internal/sandbox"
)

// ============================================================================
// Test Helpers
// ============================================================================

func newHandler(t *testing.T, opts ...Option) (*Handler, string) {
	t.Helper()

	root := filepath.Join(t.TempDir(), "box")
	sb, err := sandbox.New(root, sandbox.WithCreate(true))
	require.NoError(t, err)
	return New(sb, opts...), sb.Root()
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("a", size)), 0644))
}

// ============================================================================
// LIST
// ============================================================================

func TestList(t *testing.T) {
	ctx := context.Background()

	t.Run("EmptyRoot", func(t *testing.T) {
		h, _ := newHandler(t)

		res := h.List(ctx)
		assert.Equal(t, KindOK, res.Kind)
		assert.Equal(t, protocol.EmptyListing, res.Text)
	})

	t.Run("FilesAndDirectories", func(t *testing.T) {
		h, root := newHandler(t)
		writeFile(t, filepath.Join(root, "b.txt"), 1)
		writeFile(t, filepath.Join(root, "a.txt"), 1)
		require.NoError(t, os.Mkdir(filepath.Join(root, "docs"), 0755))

		res := h.List(ctx)
		assert.Equal(t, KindOK, res.Kind)
		assert.Equal(t, "a.txt\nb.txt\ndocs/", res.Text)
	})

	t.Run("OnlyDirectChildren", func(t *testing.T) {
		h, root := newHandler(t)
		writeFile(t, filepath.Join(root, "docs", "nested.txt"), 1)

		assert.Equal(t, "docs/", h.List(ctx).Text)
	})

	t.Run("SymlinkToDirectoryMarked", func(t *testing.T) {
		h, root := newHandler(t)
		require.NoError(t, os.Mkdir(filepath.Join(root, "real"), 0755))
		require.NoError(t, os.Symlink("real", filepath.Join(root, "alias")))

		assert.Equal(t, "alias/\nreal/", h.List(ctx).Text)
	})

	t.Run("RootRemovedIsError", func(t *testing.T) {
		h, root := newHandler(t)
		require.NoError(t, os.RemoveAll(root))

		res := h.List(ctx)
		assert.Equal(t, KindError, res.Kind)
		assert.True(t, strings.HasPrefix(res.Text, "ERROR: cannot list sandbox: "), res.Text)
		assert.Error(t, res.Err)
	})
}

// ============================================================================
// READ
// ============================================================================

func TestRead(t *testing.T) {
	ctx := context.Background()

	t.Run("ReturnsContent", func(t *testing.T) {
		h, root := newHandler(t)
		require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hello\nworld"), 0644))

		res := h.Read(ctx, "notes.txt")
		assert.Equal(t, KindOK, res.Kind)
		assert.Equal(t, "hello\nworld", res.Text)
	})

	t.Run("NestedFile", func(t *testing.T) {
		h, root := newHandler(t)
		writeFile(t, filepath.Join(root, "docs", "guide.md"), 3)

		assert.Equal(t, "aaa", h.Read(ctx, "docs/guide.md").Text)
	})

	t.Run("BinaryIsLossilyDecoded", func(t *testing.T) {
		h, root := newHandler(t)
		require.NoError(t, os.WriteFile(filepath.Join(root, "blob.bin"), []byte{'x', 0xff, 'y', 0xe2, 0x82, 'z', 0xf0, 0x9f, 0x98}, 0644))

		assert.Equal(t, "x\ufffdy\ufffdz\ufffd", h.Read(ctx, "blob.bin").Text)
	})

	t.Run("Missing", func(t *testing.T) {
		h, _ := newHandler(t)

		res := h.Read(ctx, "missing.txt")
		assert.Equal(t, KindNotFound, res.Kind)
		assert.Equal(t, protocol.NotFound, res.Text)
	})

	t.Run("Directory", func(t *testing.T) {
		h, root := newHandler(t)
		require.NoError(t, os.Mkdir(filepath.Join(root, "docs"), 0755))

		res := h.Read(ctx, "docs")
		assert.Equal(t, KindNotFound, res.Kind)
		assert.Equal(t, protocol.NotFound, res.Text)
	})

	t.Run("TraversalDenied", func(t *testing.T) {
		h, root := newHandler(t)
		writeFile(t, filepath.Join(filepath.Dir(root), "secret.txt"), 6)

		for _, name := range []string{"../secret.txt", "../../../../etc/passwd", "/etc/passwd"} {
			res := h.Read(ctx, name)
			assert.Equal(t, KindDenied, res.Kind, name)
			assert.Equal(t, protocol.AccessDenied, res.Text, name)
		}
	})

	t.Run("SymlinkEscapeDenied", func(t *testing.T) {
		h, root := newHandler(t)
		outside := filepath.Join(filepath.Dir(root), "secret.txt")
		writeFile(t, outside, 6)
		require.NoError(t, os.Symlink(outside, filepath.Join(root, "link")))

		assert.Equal(t, KindDenied, h.Read(ctx, "link").Kind)
	})
}

func TestReadSizeLimit(t *testing.T) {
	ctx := context.Background()

	t.Run("ExactlyFiveMiBSucceeds", func(t *testing.T) {
		h, root := newHandler(t)
		writeFile(t, filepath.Join(root, "exact.bin"), protocol.DefaultMaxFileSize)

		res := h.Read(ctx, "exact.bin")
		assert.Equal(t, KindOK, res.Kind)
		assert.Len(t, res.Text, protocol.DefaultMaxFileSize)
	})

	t.Run("OneByteOverIsTooLarge", func(t *testing.T) {
		h, root := newHandler(t)
		writeFile(t, filepath.Join(root, "big.bin"), protocol.DefaultMaxFileSize+1)

		res := h.Read(ctx, "big.bin")
		assert.Equal(t, KindTooLarge, res.Kind)
		assert.Equal(t, protocol.FileTooLarge, res.Text)
	})

	t.Run("CustomLimit", func(t *testing.T) {
		h, root := newHandler(t, WithMaxFileSize(10))
		writeFile(t, filepath.Join(root, "eleven.txt"), 11)
		writeFile(t, filepath.Join(root, "ten.txt"), 10)

		assert.Equal(t, int64(10), h.MaxFileSize())
		assert.Equal(t, KindTooLarge, h.Read(ctx, "eleven.txt").Kind)
		assert.Equal(t, KindOK, h.Read(ctx, "ten.txt").Kind)
	})

	t.Run("NonPositiveLimitIgnored", func(t *testing.T) {
		h, _ := newHandler(t, WithMaxFileSize(0))
		assert.Equal(t, int64(protocol.DefaultMaxFileSize), h.MaxFileSize())
	})
}

// ============================================================================
// TIME
// ============================================================================

func TestTime(t *testing.T) {
	fixed := time.Date(2024, 3, 9, 7, 5, 3, 0, time.Local)
	h, _ := newHandler(t, WithClock(func() time.Time { return fixed }))

	res := h.Time(context.Background())
	assert.Equal(t, KindOK, res.Kind)
	assert.Equal(t, "2024-03-09 07:05:03", res.Text)
}

func TestTimeFormatWithRealClock(t *testing.T) {
	h, _ := newHandler(t)

	text := h.Time(context.Background()).Text
	_, err := time.ParseInLocation(protocol.TimeLayout, text, time.Local)
	assert.NoError(t, err, text)
	assert.Len(t, text, len("2006-01-02 15:04:05"))
}

// ============================================================================
// Dispatch
// ============================================================================

func TestExecute(t *testing.T) {
	ctx := context.Background()
	h, root := newHandler(t)
	writeFile(t, filepath.Join(root, "a.txt"), 2)

	assert.Equal(t, "a.txt", h.Execute(ctx, command.Parse("LIST")).Text)
	assert.Equal(t, "aa", h.Execute(ctx, command.Parse("READ a.txt")).Text)
	assert.Equal(t, KindOK, h.Execute(ctx, command.Parse("TIME")).Kind)

	res := h.Execute(ctx, command.Parse("DELETE a.txt"))
	assert.Equal(t, KindUnknown, res.Kind)
	assert.Equal(t, protocol.UnknownCommand, res.Text)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "ok", KindOK.String())
	assert.Equal(t, "denied", KindDenied.String())
	assert.Equal(t, "not_found", KindNotFound.String())
	assert.Equal(t, "too_large", KindTooLarge.String())
	assert.Equal(t, "error", KindError.String())
	assert.Equal(t, "unknown", KindUnknown.String())
}
