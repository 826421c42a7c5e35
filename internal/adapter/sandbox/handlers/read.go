package handlers

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/marmos91/sandboxd/internal/protocol"
	"github.com/marmos91/sandboxd/internal/protocol/frame"
	"github.com/marmos91/sandboxd/internal/sandbox"
	"github.com/marmos91/sandboxd/internal/telemetry"
)

// Read returns the content of a file inside the sandbox as text.
//
// Outcomes, checked in order:
//   - the name escapes the root: "ERROR: access denied"
//   - missing, unreadable metadata, or a directory: "ERROR: file not found or is directory"
//   - larger than the limit: "ERROR: file too large" (the file is not opened)
//   - I/O failure while reading: "ERROR: cannot read file: <reason>"
//
// Content that is not valid UTF-8 is returned with U+FFFD substitutions.
func (h *Handler) Read(ctx context.Context, name string) Result {
	telemetry.SetAttributes(ctx, telemetry.Path(name))

	path, err := h.sandbox.Resolve(name)
	if err != nil {
		if errors.Is(err, sandbox.ErrAccessDenied) {
			return Result{Kind: KindDenied, Text: protocol.AccessDenied}
		}
		return Result{Kind: KindNotFound, Text: protocol.NotFound, Err: err}
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return Result{Kind: KindNotFound, Text: protocol.NotFound}
	}

	telemetry.SetAttributes(ctx, telemetry.Size(info.Size()))

	if info.Size() > h.maxFileSize {
		return Result{Kind: KindTooLarge, Text: protocol.FileTooLarge}
	}

	data, err := readLimited(path, h.maxFileSize)
	if err != nil {
		return Result{
			Kind: KindError,
			Text: protocol.ReadFailedPrefix + err.Error(),
			Err:  err,
		}
	}

	return ok(frame.DecodeLossy(data))
}

// errGrewPastLimit reports a file that grew beyond the limit after the size
// check.
var errGrewPastLimit = errors.New("file grew past the size limit while reading")

// readLimited reads at most limit bytes and fails if more are available.
func readLimited(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errGrewPastLimit
	}
	return data, nil
}
