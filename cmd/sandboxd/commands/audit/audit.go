// Package audit implements the audit trail subcommands.
package audit

import (
	"github.com/spf13/cobra"
)

// Cmd is the audit subcommand.
var Cmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the session audit trail",
	Long: `Inspect the audit trail recorded by sandboxd.

Auditing must be enabled in the configuration (audit.enabled). The trail
is read straight from the configured backend; for the embedded sqlite and
badger backends stop the server first or point at a copy, since they allow
a single writer.

Subcommands:
  list  List recorded events`,
}

func init() {
	Cmd.AddCommand(listCmd)
}
