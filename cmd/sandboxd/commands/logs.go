package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/marmos91/sandboxd/pkg/config"
)

var (
	logsFollow bool
	logsLines  int
	logsSince  string
	logsFile   string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Tail server logs",
	Long: `Display and optionally follow the sandboxd server logs.

The log file is taken from logging.output. When the server logs to
stdout/stderr the daemon log file ($XDG_STATE_HOME/sandboxd/sandboxd.log)
is used instead, since that is where a background server's output goes.

Examples:
  # Show last 100 lines (default)
  sandboxd logs

  # Show last 50 lines
  sandboxd logs -n 50

  # Follow logs in real-time
  sandboxd logs -f

  # Show logs since a specific time
  sandboxd logs --since "2024-01-15T10:00:00Z"`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 100, "Number of lines to show")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since timestamp (RFC3339 format)")
	logsCmd.Flags().StringVar(&logsFile, "file", "", "Read this log file instead of the configured one")
}

func runLogs(cmd *cobra.Command, args []string) error {
	path := logsFile
	if path == "" {
		cfg, err := config.Load(GetConfigFile())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		path = resolveLogFile(cfg.Logging.Output)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("log file not found: %s\nThe server may not have started yet or is logging elsewhere", path)
	}

	var since time.Time
	if logsSince != "" {
		var err error
		if since, err = time.Parse(time.RFC3339, logsSince); err != nil {
			return fmt.Errorf("invalid --since format (use RFC3339): %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if err := showLogs(out, path, logsLines, since); err != nil {
		return err
	}
	if !logsFollow {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "Following %s (Ctrl+C to stop)...\n", path)
	return followLogs(ctx, out, path)
}

// resolveLogFile maps logging.output onto the file holding server output.
func resolveLogFile(output string) string {
	if logDir(output) == "" {
		return GetDefaultLogFile()
	}
	return output
}

// showLogs writes the last n lines of path that are not older than since.
func showLogs(w io.Writer, path string, n int, since time.Time) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	lines, err := tail(file, n, since)
	if err != nil {
		return fmt.Errorf("error reading log file: %w", err)
	}
	for _, line := range lines {
		_, _ = fmt.Fprintln(w, line)
	}
	return nil
}

// tail keeps a ring of the last n matching lines.
func tail(r io.Reader, n int, since time.Time) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	ring := make([]string, 0, n)
	next := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !since.IsZero() {
			if ts := extractTimestamp(line); !ts.IsZero() && ts.Before(since) {
				continue
			}
		}
		if len(ring) < n {
			ring = append(ring, line)
			continue
		}
		ring[next] = line
		next = (next + 1) % n
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return append(ring[next:], ring[:next]...), nil
}

// followLogs streams lines appended to path until ctx is done. A rotated or
// truncated file is reopened from the start.
func followLogs(ctx context.Context, w io.Writer, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch log file: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end of log file: %w", err)
	}
	reader := bufio.NewReader(file)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			switch {
			case event.Has(fsnotify.Write):
				if truncated(file) {
					_, _ = file.Seek(0, io.SeekStart)
					reader.Reset(file)
				}
				copyLines(w, reader)

			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				// lumberjack renames the file and creates a fresh one.
				copyLines(w, reader)
				_ = file.Close()
				if file, err = reopen(ctx, path); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
				reader.Reset(file)
				_ = watcher.Remove(path)
				if err := watcher.Add(path); err != nil {
					return fmt.Errorf("failed to watch log file: %w", err)
				}
				copyLines(w, reader)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

// copyLines writes every complete line currently buffered in r.
func copyLines(w io.Writer, r *bufio.Reader) {
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			// Trailing partial line.
			if line != "" {
				_, _ = fmt.Fprint(w, line)
			}
			return
		}
		_, _ = fmt.Fprint(w, line)
	}
}

// truncated reports whether file shrank below the current read offset.
func truncated(file *os.File) bool {
	pos, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return false
	}
	info, err := file.Stat()
	if err != nil {
		return false
	}
	return info.Size() < pos
}

// reopen waits for path to reappear after a rotation.
func reopen(ctx context.Context, path string) (*os.File, error) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		file, err := os.Open(path)
		if err == nil {
			return file, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to reopen log file: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// textTimeLayout matches the timestamp the text log handler writes.
const textTimeLayout = "2006-01-02 15:04:05.000"

// extractTimestamp finds the record time of a log line: the text handler's
// leading timestamp or the JSON handler's "time" field.
func extractTimestamp(line string) time.Time {
	if rest, ok := strings.CutPrefix(line, "["); ok {
		if field, _, ok := strings.Cut(rest, "]"); ok {
			if t, err := time.ParseInLocation(textTimeLayout, field, time.Local); err == nil {
				return t
			}
		}
	}

	const timeKey = `"time":"`
	if idx := strings.Index(line, timeKey); idx >= 0 {
		rest := line[idx+len(timeKey):]
		if end := strings.IndexByte(rest, '"'); end > 0 {
			if t, err := time.Parse(time.RFC3339Nano, rest[:end]); err == nil {
				return t
			}
		}
	}

	return time.Time{}
}
