// Package pull implements "lfc pull [path…]".
package pull

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lfc-dev/lfc/internal/cmdutil"
	"github.com/lfc-dev/lfc/internal/transfer"
)

// Cmd line declaration
var Cmd = &cobra.Command{
	Use:   "pull [path...]",
	Short: "Fetch missing blobs referenced by tracked sidecars and materialize them",
	Long:  "Description:\n  Fetch every blob referenced by a tracked sidecar under the given paths (or the whole tree) that isn't already cached, then materialize the working tree according to the active mode.",
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

		hashes, err := transfer.ResolvePull(store, args...)
		if err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, err)
		}

		jobs, _ := cmd.Flags().GetInt("jobs")
		engine := transfer.New(store, backend, cmdutil.Jobs(jobs))
		ctx, stop := cmdutil.SignalContext(cmd.Context())
		defer stop()
		summary, err := engine.Run(ctx, transfer.Pull, hashes)
		if err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, err)
		}

		quiet, _ := cmd.Flags().GetBool("quiet")
		if !quiet {
			cmdutil.PrintSummary(cmd.OutOrStdout(), summary)
		}

		mode, _ := cmd.Flags().GetString("mode")
		force, _ := cmd.Flags().GetBool("force")
		rc := cmdutil.Reconciler(repo, store, mode, force)
		if err := rc.Checkout(args...); err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, fmt.Errorf("pull: checkout: %w", err))
		}

		return cmdutil.ExitForSummary(summary)
	},
}
