//go:build !linux

package sandbox

import (
	"github.com/marmos91/sandboxd/internal/logger"
)

// RestrictProcess is a no-op outside Linux.
func (s *Sandbox) RestrictProcess(_ ...string) error {
	logger.Warn("Landlock is only available on Linux, sandbox.landlock ignored")
	return nil
}
