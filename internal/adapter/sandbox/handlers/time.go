package handlers

import (
	"context"

	"github.com/marmos91/sandboxd/internal/protocol"
)

// Time returns the server's local wall-clock time as YYYY-MM-DD HH:MM:SS.
func (h *Handler) Time(_ context.Context) Result {
	return ok(h.now().Local().Format(protocol.TimeLayout))
}
