// Package command parses command frames received after authentication.
package command

import (
	"strings"
)

// Kind identifies a parsed command.
type Kind int

const (
	KindEmpty Kind = iota
	KindList
	KindRead
	KindTime
	KindQuit
	KindUnknown
)

// String returns the wire verb for the kind, "EMPTY" or "UNKNOWN".
func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "EMPTY"
	case KindList:
		return "LIST"
	case KindRead:
		return "READ"
	case KindTime:
		return "TIME"
	case KindQuit:
		return "QUIT"
	default:
		return "UNKNOWN"
	}
}

// Command is a single parsed command line.
type Command struct {
	Kind Kind
	// Arg is the trimmed filename for READ and empty otherwise.
	Arg string
	// Raw is the trimmed frame text.
	Raw string
}

// Verb returns a stable label for metrics and audit records.
func (c Command) Verb() string {
	return c.Kind.String()
}

const readPrefix = "READ "

// Parse classifies a command frame. Verbs are matched exactly and are
// case-sensitive. LIST, TIME and QUIT accept no argument; READ takes the
// remainder of the line after "READ ", trimmed, as the filename.
func Parse(payload string) Command {
	line := strings.TrimSpace(payload)

	switch {
	case line == "":
		return Command{Kind: KindEmpty}
	case line == "LIST":
		return Command{Kind: KindList, Raw: line}
	case line == "TIME":
		return Command{Kind: KindTime, Raw: line}
	case line == "QUIT":
		return Command{Kind: KindQuit, Raw: line}
	case strings.HasPrefix(line, readPrefix):
		return Command{Kind: KindRead, Arg: strings.TrimSpace(line[len(readPrefix):]), Raw: line}
	default:
		return Command{Kind: KindUnknown, Raw: line}
	}
}
