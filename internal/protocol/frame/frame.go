// Package frame implements the length-prefixed wire format: a 4-byte
// little-endian payload length followed by exactly that many bytes of UTF-8
// text.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/marmos91/sandboxd/pkg/bufpool"
)

// HeaderSize is the size of the length prefix.
const HeaderSize = 4

// DefaultMaxFrameSize bounds the payload a reader accepts when no explicit
// limit is configured.
const DefaultMaxFrameSize = 16 << 20

var (
	// ErrNoMessage reports that no complete frame could be read because the
	// peer closed the stream.
	ErrNoMessage = errors.New("no message")

	// ErrTruncated reports a stream that ended inside a header or payload.
	// It wraps ErrNoMessage, so callers that only care about "no message"
	// treat both cases alike.
	ErrTruncated = fmt.Errorf("%w: stream closed mid-frame", ErrNoMessage)

	// ErrFrameTooLarge reports a header announcing more than the limit.
	ErrFrameTooLarge = errors.New("frame too large")
)

// ReadFrame reads one frame with the default size limit.
func ReadFrame(r io.Reader) (string, error) {
	return ReadFrameMax(r, DefaultMaxFrameSize)
}

// ReadFrameMax reads one frame whose payload may not exceed maxSize bytes.
// A maxSize of 0 selects DefaultMaxFrameSize. Invalid UTF-8 in the payload is
// replaced with U+FFFD, never rejected.
func ReadFrameMax(r io.Reader, maxSize uint32) (string, error) {
	if maxSize == 0 {
		maxSize = DefaultMaxFrameSize
	}

	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return "", classify("header", err)
	}

	n := binary.LittleEndian.Uint32(hdr[:])
	if n > maxSize {
		return "", fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLarge, n, maxSize)
	}
	if n == 0 {
		return "", nil
	}

	payload := bufpool.GetUint32(n)
	defer bufpool.Put(payload)

	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			return "", ErrTruncated
		}
		return "", classify("payload", err)
	}

	return DecodeLossy(payload), nil
}

// classify maps stream-end conditions onto ErrNoMessage/ErrTruncated and
// wraps anything else.
func classify(part string, err error) error {
	switch {
	case errors.Is(err, io.EOF):
		return ErrNoMessage
	case errors.Is(err, io.ErrUnexpectedEOF):
		return ErrTruncated
	default:
		return fmt.Errorf("read frame %s: %w", part, err)
	}
}

// WriteFrame writes msg as a single frame using one Write call, so the peer
// never observes a header without its payload from this writer.
func WriteFrame(w io.Writer, msg string) error {
	if uint64(len(msg)) > math.MaxUint32 {
		return fmt.Errorf("%w: %d bytes exceeds the 32-bit length field", ErrFrameTooLarge, len(msg))
	}

	buf := bufpool.Get(HeaderSize + len(msg))
	defer bufpool.Put(buf)

	binary.LittleEndian.PutUint32(buf[:HeaderSize], uint32(len(msg)))
	copy(buf[HeaderSize:], msg)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// DecodeLossy converts b to a string. Each maximal invalid subpart (a lone
// bad byte, or the prefix of a truncated multi-byte sequence up to the first
// byte that cannot continue it) becomes a single U+FFFD.
func DecodeLossy(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}

	var sb strings.Builder
	sb.Grow(len(b) + 8)
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			size = invalidPrefix(b)
			sb.WriteRune(utf8.RuneError)
		} else {
			sb.Write(b[:size])
		}
		b = b[size:]
	}
	return sb.String()
}

// invalidPrefix returns how many bytes of b, which does not start with a
// valid sequence, form one maximal invalid subpart.
func invalidPrefix(b []byte) int {
	var n int
	lo, hi := byte(0x80), byte(0xbf)
	switch c := b[0]; {
	case c >= 0xc2 && c <= 0xdf:
		n = 2
	case c == 0xe0:
		n, lo = 3, 0xa0
	case c == 0xed:
		n, hi = 3, 0x9f
	case c >= 0xe1 && c <= 0xef:
		n = 3
	case c == 0xf0:
		n, lo = 4, 0x90
	case c == 0xf4:
		n, hi = 4, 0x8f
	case c >= 0xf1 && c <= 0xf3:
		n = 4
	default:
		return 1
	}

	if len(b) < 2 || b[1] < lo || b[1] > hi {
		return 1
	}
	k := 2
	for k < n && k < len(b) && b[k] >= 0x80 && b[k] <= 0xbf {
		k++
	}
	return k
}
