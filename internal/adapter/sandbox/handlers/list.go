package handlers

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/marmos91/sandboxd/internal/protocol"
	"github.com/marmos91/sandboxd/internal/telemetry"
)

// List returns the direct children of the sandbox root, one per line and
// sorted by name. Directories carry a trailing "/". An empty root yields
// "(empty)".
func (h *Handler) List(ctx context.Context) Result {
	entries, err := os.ReadDir(h.sandbox.Root())
	if err != nil {
		return Result{
			Kind: KindError,
			Text: protocol.ListFailedPrefix + err.Error(),
			Err:  err,
		}
	}

	telemetry.SetAttributes(ctx, telemetry.Entries(len(entries)))

	if len(entries) == 0 {
		return ok(protocol.EmptyListing)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if h.isDir(e) {
			name += protocol.DirSuffix
		}
		names = append(names, name)
	}
	return ok(strings.Join(names, "\n"))
}

// isDir reports whether an entry is a directory, following symlinks.
func (h *Handler) isDir(e fs.DirEntry) bool {
	if e.Type()&fs.ModeSymlink == 0 {
		return e.IsDir()
	}
	info, err := os.Stat(filepath.Join(h.sandbox.Root(), e.Name()))
	return err == nil && info.IsDir()
}
