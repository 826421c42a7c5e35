package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{name: "table", input: "table", want: FormatTable},
		{name: "empty defaults to table", input: "", want: FormatTable},
		{name: "JSON uppercase", input: "JSON", want: FormatJSON},
		{name: "yml alias", input: "yml", want: FormatYAML},
		{name: "whitespace trimmed", input: "  yaml  ", want: FormatYAML},
		{name: "invalid format", input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type entries [][]string

func (e entries) Headers() []string { return []string{"Name", "Type"} }
func (e entries) Rows() [][]string  { return e }

type entry struct {
	Name string `json:"name" yaml:"name"`
	Size int    `json:"size" yaml:"size"`
}

func TestPrinter_Print(t *testing.T) {
	t.Run("Table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrinter(&buf, FormatTable, false).Print(entries{{"a.txt", "file"}, {"docs", "dir"}}))

		out := buf.String()
		assert.Contains(t, out, "NAME")
		assert.Contains(t, out, "TYPE")
		assert.Contains(t, out, "a.txt")
		assert.Contains(t, out, "docs")
	})

	t.Run("TableFallsBackToJSON", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrinter(&buf, FormatTable, false).Print(entry{Name: "a.txt", Size: 5}))
		assert.Contains(t, buf.String(), `"name": "a.txt"`)
	})

	t.Run("JSON", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrinter(&buf, FormatJSON, false).Print([]entry{{Name: "a", Size: 1}}))
		assert.Contains(t, buf.String(), `"size": 1`)
	})

	t.Run("YAML", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrinter(&buf, FormatYAML, false).Print([]entry{{Name: "a"}, {Name: "b"}}))
		assert.Contains(t, buf.String(), "- name: a")
		assert.Contains(t, buf.String(), "- name: b")
	})

	t.Run("Unknown", func(t *testing.T) {
		assert.Error(t, NewPrinter(&bytes.Buffer{}, Format("xml"), false).Print(nil))
	})
}

func TestPrinter_Messages(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable, false)
	assert.Equal(t, FormatTable, p.Format())

	p.Success("saved")
	p.Warning("careful")
	p.Println("plain")
	assert.Equal(t, "saved\ncareful\nplain\n", buf.String())

	buf.Reset()
	NewPrinter(&buf, FormatTable, true).Success("saved")
	assert.Equal(t, "\033[32msaved\033[0m\n", buf.String())
}

func TestColorSupported(t *testing.T) {
	assert.False(t, ColorSupported(&bytes.Buffer{}))

	t.Setenv("NO_COLOR", "1")
	assert.False(t, ColorSupported(&bytes.Buffer{}))
}

func TestSimpleTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SimpleTable(&buf, [][2]string{
		{"Server time", "2025-06-07 08:09:10"},
		{"Drift", "in sync"},
	}))

	out := buf.String()
	assert.Contains(t, out, "Server time")
	assert.Contains(t, out, "2025-06-07 08:09:10")
	assert.Contains(t, out, "in sync")
}
