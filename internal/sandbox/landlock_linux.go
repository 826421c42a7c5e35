//go:build linux

package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/landlock-lsm/go-landlock/landlock"

	"github.com/marmos91/sandboxd/internal/logger"
)

// systemReadPaths are read by the runtime after startup (time zone data for
// TIME replies, resolver config for the metrics/telemetry endpoints).
var systemReadPaths = []string{
	"/etc/localtime",
	"/usr/share/zoneinfo",
	"/etc/hosts",
	"/etc/resolv.conf",
	"/etc/nsswitch.conf",
}

// RestrictProcess confines the whole process with Landlock: the sandbox root
// becomes read-only and writable holds the few paths the server itself
// writes (log file, audit database). Paths that do not exist are skipped.
//
// On kernels without Landlock the call degrades to a no-op.
func (s *Sandbox) RestrictProcess(writable ...string) error {
	// Load the local zone before the filesystem disappears.
	_ = time.Now().Local().String()

	rules := []landlock.Rule{landlock.RODirs(s.root)}

	for _, p := range systemReadPaths {
		if rule, ok := ruleFor(p, false); ok {
			rules = append(rules, rule)
		}
	}
	for _, p := range writable {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if rule, ok := ruleFor(abs, true); ok {
			rules = append(rules, rule)
		}
	}

	if err := landlock.V6.BestEffort().RestrictPaths(rules...); err != nil {
		return fmt.Errorf("landlock restriction failed: %w", err)
	}

	logger.Info("Landlock restrictions applied", "root", s.root, "rules", len(rules))
	return nil
}

// ruleFor picks the file or directory flavour of a rule, since Landlock
// rejects directory rights on regular files.
func ruleFor(path string, writable bool) (landlock.Rule, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}

	switch {
	case info.IsDir() && writable:
		return landlock.RWDirs(path), true
	case info.IsDir():
		return landlock.RODirs(path), true
	case writable:
		return landlock.RWFiles(path), true
	default:
		return landlock.ROFiles(path), true
	}
}
