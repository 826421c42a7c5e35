// Package protocol holds the fixed reply texts of the sandbox protocol.
// Framing lives in protocol/frame and command parsing in protocol/command.
package protocol

// Handshake replies.
const (
	AuthOK     = "AUTH_OK"
	AuthFailed = "AUTH_FAILED"
)

// Command replies.
const (
	Bye            = "BYE"
	EmptyListing   = "(empty)"
	DirSuffix      = "/"
	ErrorPrefix    = "ERROR: "
	AccessDenied   = ErrorPrefix + "access denied"
	NotFound       = ErrorPrefix + "file not found or is directory"
	FileTooLarge   = ErrorPrefix + "file too large"
	UnknownCommand = ErrorPrefix + "unknown or disallowed command"

	// ListFailedPrefix and ReadFailedPrefix start the replies for I/O
	// failures; the reason follows.
	ListFailedPrefix = ErrorPrefix + "cannot list sandbox: "
	ReadFailedPrefix = ErrorPrefix + "cannot read file: "
)

// TimeLayout formats TIME replies as YYYY-MM-DD HH:MM:SS.
const TimeLayout = "2006-01-02 15:04:05"

// DefaultMaxFileSize is the largest file READ returns (5 MiB).
const DefaultMaxFileSize = 5 * 1024 * 1024
