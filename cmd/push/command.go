// Package push implements "lfc push [path…]".
package push

import (
	"github.com/spf13/cobra"

	"github.com/lfc-dev/lfc/internal/cmdutil"
	"github.com/lfc-dev/lfc/internal/transfer"
)

// Cmd line declaration
var Cmd = &cobra.Command{
	Use:   "push [path...]",
	Short: "Upload cached blobs referenced by tracked sidecars to a remote",
	Long:  "Description:\n  Send every locally cached blob referenced by a tracked sidecar under the given paths (or the whole tree) to the selected remote.",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := cmdutil.OpenRepo()
		if err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, err)
		}
		store := cmdutil.Store(repo)

		remoteName, _ := cmd.Flags().GetString("remote")
		backend, err := cmdutil.Backend(repo, remoteName)
		if err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, err)
		}

		hashes, err := transfer.ResolvePush(store, args...)
		if err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, err)
		}

		jobs, _ := cmd.Flags().GetInt("jobs")
		engine := transfer.New(store, backend, cmdutil.Jobs(jobs))
		ctx, stop := cmdutil.SignalContext(cmd.Context())
		defer stop()
		summary, err := engine.Run(ctx, transfer.Push, hashes)
		if err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, err)
		}

		quiet, _ := cmd.Flags().GetBool("quiet")
		if !quiet {
			cmdutil.PrintSummary(cmd.OutOrStdout(), summary)
		}
		return cmdutil.ExitForSummary(summary)
	},
}
