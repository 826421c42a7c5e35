package client

import (
	"errors"
	"strings"

	"github.com/marmos91/sandboxd/internal/protocol"
)

var (
	// ErrAuthFailed is returned when the server answers AUTH_FAILED.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrClosed is returned by calls on a closed client.
	ErrClosed = errors.New("client closed")

	// ErrEmptyCommand is returned by Do for blank commands, which the
	// server never answers.
	ErrEmptyCommand = errors.New("empty command")

	// ErrUnexpectedReply is returned when a reply does not fit the command.
	ErrUnexpectedReply = errors.New("unexpected reply")

	// Sentinels matched by ServerError via errors.Is.
	ErrAccessDenied = errors.New("access denied")
	ErrNotFound     = errors.New("file not found or is directory")
	ErrFileTooLarge = errors.New("file too large")
	ErrUnknown      = errors.New("unknown or disallowed command")
)

// ServerError is an "ERROR: ..." reply.
type ServerError struct {
	// Message is the reply text without the "ERROR: " prefix.
	Message string
}

func (e *ServerError) Error() string {
	return "server error: " + e.Message
}

// Is matches the sentinel for well-known replies.
func (e *ServerError) Is(target error) bool {
	switch protocol.ErrorPrefix + e.Message {
	case protocol.AccessDenied:
		return target == ErrAccessDenied
	case protocol.NotFound:
		return target == ErrNotFound
	case protocol.FileTooLarge:
		return target == ErrFileTooLarge
	case protocol.UnknownCommand:
		return target == ErrUnknown
	}
	return false
}

// AsServerError returns the reply as a *ServerError when it is one of the
// server's fixed error replies or starts with one of failurePrefixes.
// Anything else, including file content that happens to start with
// "ERROR: ", is not an error.
func AsServerError(reply string, failurePrefixes ...string) (*ServerError, bool) {
	switch reply {
	case protocol.AccessDenied, protocol.NotFound, protocol.FileTooLarge, protocol.UnknownCommand:
		return &ServerError{Message: strings.TrimPrefix(reply, protocol.ErrorPrefix)}, true
	}
	for _, prefix := range failurePrefixes {
		if strings.HasPrefix(reply, prefix) {
			return &ServerError{Message: strings.TrimPrefix(reply, protocol.ErrorPrefix)}, true
		}
	}
	return nil, false
}
