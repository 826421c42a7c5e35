// Package timeutil provides time formatting utilities for CLI output.
package timeutil

import (
	"time"

	"github.com/dustin/go-humanize"
)

// LocalTimeFormat is the format used for displaying local times in CLI output.
const LocalTimeFormat = "2006-01-02 15:04:05"

// FormatTime renders t in the local zone, or "-" for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(LocalTimeFormat)
}

// FormatRelative renders t relative to now ("3 minutes ago").
func FormatRelative(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// FormatDrift describes the offset of a remote clock from the local one.
func FormatDrift(remote, local time.Time) string {
	d := remote.Sub(local).Round(time.Second)
	switch {
	case d == 0:
		return "in sync"
	case d > 0:
		return d.String() + " ahead"
	default:
		return (-d).String() + " behind"
	}
}
