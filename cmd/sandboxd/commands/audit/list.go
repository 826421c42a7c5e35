package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/sandboxd/internal/cli/output"
	"github.com/marmos91/sandboxd/internal/cli/timeutil"
	"github.com/marmos91/sandboxd/pkg/audit"
	"github.com/marmos91/sandboxd/pkg/config"
)

var (
	listSession string
	listKind    string
	listSince   time.Duration
	listLimit   int
	listOutput  string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events, newest first",
	Long: `List audit events, newest first.

Examples:
  # Last 100 events
  sandboxd audit list

  # Everything one session did
  sandboxd audit list --session 0192f1c4-...

  # Failed handshakes in the last hour, as JSON
  sandboxd audit list --kind auth --since 1h -o json`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listSession, "session", "", "Only events of this session")
	listCmd.Flags().StringVar(&listKind, "kind", "", "Only events of this kind (auth|command|session)")
	listCmd.Flags().DurationVar(&listSince, "since", 0, "Only events newer than this (e.g. 30m, 24h)")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", audit.DefaultListLimit, "Maximum number of events")
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// EventList renders audit events as a table.
type EventList []audit.Event

// Headers implements output.TableRenderer.
func (l EventList) Headers() []string {
	return []string{"TIME", "SESSION", "CLIENT", "KIND", "COMMAND", "OUTCOME", "DETAIL"}
}

// Rows implements output.TableRenderer.
func (l EventList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, e := range l {
		command := e.Verb
		if e.Argument != "" {
			command += " " + e.Argument
		}
		rows = append(rows, []string{
			timeutil.FormatTime(e.CreatedAt),
			shortID(e.SessionID),
			e.ClientAddr,
			string(e.Kind),
			command,
			e.Outcome,
			e.Detail,
		})
	}
	return rows
}

// shortID keeps the leading time-ordered part of a UUID.
func shortID(id string) string {
	if len(id) > 13 {
		return id[:13]
	}
	return id
}

func parseKind(s string) (audit.Kind, error) {
	switch k := audit.Kind(s); k {
	case "", audit.KindAuth, audit.KindCommand, audit.KindSession:
		return k, nil
	default:
		return "", fmt.Errorf("invalid kind %q (valid: auth, command, session)", s)
	}
}

func runList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(listOutput)
	if err != nil {
		return err
	}
	kind, err := parseKind(listKind)
	if err != nil {
		return err
	}

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}
	if !cfg.Audit.Enabled {
		return fmt.Errorf("auditing is disabled in the configuration (audit.enabled: false)")
	}

	store, err := audit.New(&cfg.Audit)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	filter := audit.Filter{
		SessionID: listSession,
		Kind:      kind,
		Limit:     listLimit,
	}
	if listSince > 0 {
		filter.Since = time.Now().Add(-listSince)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	events, err := store.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list audit events: %w", err)
	}

	printer := output.NewPrinter(cmd.OutOrStdout(), format, false)
	if len(events) == 0 && format == output.FormatTable {
		printer.Println("No audit events found.")
		return nil
	}
	return printer.Print(EventList(events))
}
