package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ByteSize
		wantErr bool
	}{
		{"plain zero", "0", 0, false},
		{"plain bytes", "1024", 1024, false},
		{"bytes suffix", "1024B", 1024, false},

		{"kibibytes Ki", "1Ki", KiB, false},
		{"mebibytes MiB", "5MiB", 5 * MiB, false},
		{"mebibytes Mi", "5Mi", 5 * 1024 * 1024, false},
		{"gibibytes Gi", "1Gi", GiB, false},

		{"kilobytes KB", "1KB", 1000, false},
		{"megabytes M", "100M", 100 * MB, false},

		{"lowercase", "16mi", 16 * MiB, false},
		{"surrounding whitespace", "  1Gi  ", GiB, false},
		{"space before unit", "5 MiB", 5 * MiB, false},
		{"fraction", "1.5Mi", ByteSize(1.5 * 1024 * 1024), false},

		{"empty", "", 0, true},
		{"only spaces", "   ", 0, true},
		{"negative", "-1Mi", 0, true},
		{"unknown unit", "5XB", 0, true},
		{"garbage", "lots", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseByteSize(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMarshalText(t *testing.T) {
	tests := []struct {
		in   ByteSize
		want string
	}{
		{0, "0"},
		{512, "512"},
		{5 * MiB, "5Mi"},
		{5*MiB + 1, "5242881"},
		{16 * MiB, "16Mi"},
		{1536 * KiB, "1536Ki"},
		{2 * GiB, "2Gi"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			text, err := tt.in.MarshalText()
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(text))

			var back ByteSize
			require.NoError(t, back.UnmarshalText(text))
			assert.Equal(t, tt.in, back)
		})
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "5.0 MiB", (5 * MiB).String())
	assert.Equal(t, "100 B", ByteSize(100).String())
}
