package logger

import (
	"io"
	"os"

	"golang.org/x/term"
)

// supportsColor reports whether w is a terminal that can render ANSI colors.
func supportsColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
