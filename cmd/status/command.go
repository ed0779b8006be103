// Package status implements "lfc status".
package status

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lfc-dev/lfc/internal/cmdutil"
	"github.com/lfc-dev/lfc/internal/reconcile"
)

// Cmd line declaration
var Cmd = &cobra.Command{
	Use:   "status",
	Short: "Show the reconciliation state of every tracked file",
	Long:  "Description:\n  For every tracked sidecar, report whether its blob is cached, materialized, absent, or modified relative to the sidecar.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := cmdutil.OpenRepo()
		if err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, err)
		}
		store := cmdutil.Store(repo)
		mode, _ := cmd.Flags().GetString("mode")
		force, _ := cmd.Flags().GetBool("force")
		rc := cmdutil.Reconciler(repo, store, mode, force)

		statuses, err := rc.Status()
		if err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, err)
		}

		strays, err := rc.Strays()
		if err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, err)
		}

		if len(statuses) == 0 && len(strays) == 0 {
			cmd.Println("No tracked files.")
			return nil
		}
		for _, st := range statuses {
			cmd.Println(colorFor(st.State).Sprintf("%-12s %s", st.State, st.Path))
		}
		for _, path := range strays {
			cmd.Println(color.New(color.FgMagenta).Sprintf("%-12s %s", "stray", path))
		}
		return nil
	},
}

func colorFor(s reconcile.State) *color.Color {
	switch s {
	case reconcile.StatePresent:
		return color.New(color.FgGreen)
	case reconcile.StateCached:
		return color.New(color.FgCyan)
	case reconcile.StateModified:
		return color.New(color.FgYellow)
	case reconcile.StateAbsentBlob:
		return color.New(color.FgRed)
	default:
		return color.New(color.Reset)
	}
}
