// Package bytesize provides a byte-count type that decodes from
// human-readable configuration values such as "5Mi", "16MiB" or "1.5 GB".
package bytesize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/invopop/jsonschema"
)

// ByteSize is a size in bytes.
//
// Binary suffixes (Ki, Mi, Gi, Ti with optional B) multiply by 1024, decimal
// suffixes (K, M, G, T with optional B) by 1000. Suffixes are case-insensitive.
type ByteSize uint64

// Common byte size constants
const (
	B  ByteSize = humanize.Byte
	KB ByteSize = humanize.KByte
	MB ByteSize = humanize.MByte
	GB ByteSize = humanize.GByte
	TB ByteSize = humanize.TByte

	KiB ByteSize = humanize.KiByte
	MiB ByteSize = humanize.MiByte
	GiB ByteSize = humanize.GiByte
	TiB ByteSize = humanize.TiByte
)

// ParseByteSize parses a human-readable byte size string.
func ParseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty byte size string")
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("negative byte size: %q", s)
	}

	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	return ByteSize(n), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so ByteSize decodes
// directly through mapstructure and yaml.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// MarshalText renders the size with the largest binary unit that divides it
// exactly, so values survive a save/load cycle unchanged.
func (b ByteSize) MarshalText() ([]byte, error) {
	units := []struct {
		size   ByteSize
		suffix string
	}{
		{TiB, "Ti"}, {GiB, "Gi"}, {MiB, "Mi"}, {KiB, "Ki"},
	}
	for _, u := range units {
		if b >= u.size && b%u.size == 0 {
			return []byte(strconv.FormatUint(uint64(b/u.size), 10) + u.suffix), nil
		}
	}
	return []byte(strconv.FormatUint(uint64(b), 10)), nil
}

// String returns a human-readable representation, e.g. "5.0 MiB".
func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// Uint64 returns the ByteSize as a uint64.
func (b ByteSize) Uint64() uint64 {
	return uint64(b)
}

// Int64 returns the ByteSize as an int64.
func (b ByteSize) Int64() int64 {
	return int64(b)
}

// JSONSchema describes ByteSize as either a plain integer or a size string.
func (ByteSize) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "integer", Minimum: "0"},
			{Type: "string", Pattern: `^\s*\d+(\.\d+)?\s*([KkMmGgTt][Ii]?[Bb]?|[Bb])?\s*$`},
		},
		Description: "Byte size, e.g. 5Mi, 16MiB, 100MB or 1048576",
	}
}
