package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/sandboxd/cmd/sandboxctl/cmdutil"
	"github.com/marmos91/sandboxd/internal/cli/output"
	"github.com/marmos91/sandboxd/internal/cli/timeutil"
)

var timeCmd = &cobra.Command{
	Use:   "time",
	Short: "Show the server time",
	Long: `Show the server's local time and how far it is from this machine's clock.

The server reports whole seconds, so drift below one second reads as in sync.`,
	Args: cobra.NoArgs,
	RunE: runTime,
}

// ServerTime compares the server clock with the local one.
type ServerTime struct {
	Server time.Time `json:"server" yaml:"server"`
	Local  time.Time `json:"local" yaml:"local"`
	Drift  string    `json:"drift" yaml:"drift"`
}

func runTime(cmd *cobra.Command, args []string) error {
	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}

	c, err := cmdutil.Connect(cmd.Context())
	if err != nil {
		return err
	}
	defer cmdutil.Close(c)

	server, err := c.Time()
	if err != nil {
		return err
	}
	local := time.Now().Truncate(time.Second)

	st := ServerTime{Server: server, Local: local, Drift: timeutil.FormatDrift(server, local)}

	out := cmd.OutOrStdout()
	switch format {
	case output.FormatJSON:
		return output.PrintJSON(out, st)
	case output.FormatYAML:
		return output.PrintYAML(out, st)
	default:
		return output.SimpleTable(out, [][2]string{
			{"Server time", timeutil.FormatTime(st.Server)},
			{"Local time", timeutil.FormatTime(st.Local)},
			{"Drift", st.Drift},
		})
	}
}
