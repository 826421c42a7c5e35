package context

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/sandboxd/cmd/sandboxctl/cmdutil"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all saved contexts",
	Long: `List all saved server contexts.

The current context is marked with an asterisk (*).

Examples:
  # List contexts as table
  sandboxctl context list

  # List as JSON
  sandboxctl context list -o json`,
	Args: cobra.NoArgs,
	RunE: runContextList,
}

// ContextInfo describes a saved context. The secret itself is never shown.
type ContextInfo struct {
	Name     string `json:"name" yaml:"name"`
	Current  bool   `json:"current" yaml:"current"`
	Addr     string `json:"addr" yaml:"addr"`
	HasToken bool   `json:"has_token" yaml:"has_token"`
}

// ContextList is a list of contexts for table rendering.
type ContextList []ContextInfo

// Headers implements TableRenderer.
func (cl ContextList) Headers() []string {
	return []string{"", "NAME", "ADDRESS", "TOKEN"}
}

// Rows implements TableRenderer.
func (cl ContextList) Rows() [][]string {
	rows := make([][]string, 0, len(cl))
	for _, c := range cl {
		current := ""
		if c.Current {
			current = "*"
		}
		rows = append(rows, []string{current, c.Name, c.Addr, cmdutil.BoolToYesNo(c.HasToken)})
	}
	return rows
}

func runContextList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	current := store.CurrentName()
	contexts := make(ContextList, 0)
	for _, name := range store.Names() {
		ctx, err := store.Get(name)
		if err != nil {
			continue
		}
		contexts = append(contexts, ContextInfo{
			Name:     name,
			Current:  name == current,
			Addr:     ctx.Addr,
			HasToken: ctx.HasToken(),
		})
	}

	return cmdutil.PrintOutput(cmd.OutOrStdout(), contexts, len(contexts) == 0,
		"No contexts configured. Use 'sandboxctl login --addr <host:port>' to create one.", contexts)
}
