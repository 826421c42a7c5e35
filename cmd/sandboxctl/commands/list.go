package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/sandboxd/cmd/sandboxctl/cmdutil"
	"github.com/marmos91/sandboxd/internal/protocol"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the sandbox root",
	Long: `List the entries at the top of the sandbox root.

Examples:
  # List as table
  sandboxctl list

  # List as JSON
  sandboxctl list -o json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

// Entry is one name in the sandbox root.
type Entry struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// EntryList is a list of entries for table rendering.
type EntryList []Entry

// Headers implements TableRenderer.
func (el EntryList) Headers() []string {
	return []string{"NAME", "TYPE"}
}

// Rows implements TableRenderer.
func (el EntryList) Rows() [][]string {
	rows := make([][]string, 0, len(el))
	for _, e := range el {
		rows = append(rows, []string{e.Name, e.Type})
	}
	return rows
}

// toEntries splits the listing names into entries. Directories carry the
// trailing separator on the wire.
func toEntries(names []string) EntryList {
	entries := make(EntryList, 0, len(names))
	for _, name := range names {
		if dir, ok := strings.CutSuffix(name, protocol.DirSuffix); ok {
			entries = append(entries, Entry{Name: dir, Type: "dir"})
			continue
		}
		entries = append(entries, Entry{Name: name, Type: "file"})
	}
	return entries
}

func runList(cmd *cobra.Command, args []string) error {
	c, err := cmdutil.Connect(cmd.Context())
	if err != nil {
		return err
	}
	defer cmdutil.Close(c)

	names, err := c.List()
	if err != nil {
		return err
	}

	entries := toEntries(names)
	return cmdutil.PrintOutput(cmd.OutOrStdout(), entries, len(entries) == 0, "The sandbox is empty.", entries)
}
