// Package checkout implements "lfc checkout [path…]".
package checkout

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lfc-dev/lfc/internal/cmdutil"
	"github.com/lfc-dev/lfc/internal/transfer"
)

// Cmd line declaration
var Cmd = &cobra.Command{
	Use:   "checkout [path...]",
	Short: "Materialize tracked files from the local cache into the working tree",
	Long:  "Description:\n  Re-materialize tracked files whose blob is already cached. With auto-pull enabled, missing blobs are fetched from the default remote first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := cmdutil.OpenRepo()
		if err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, err)
		}
		store := cmdutil.Store(repo)

		if repo.Config().AutoPull {
			missing, err := transfer.ResolvePull(store, args...)
			if err != nil {
				return cmdutil.WithExitCode(cmdutil.ExitFailure, fmt.Errorf("checkout: %w", err))
			}
			if len(missing) > 0 {
				remoteName, _ := cmd.Flags().GetString("remote")
				backend, err := cmdutil.Backend(repo, remoteName)
				if err != nil {
					return cmdutil.WithExitCode(cmdutil.ExitFailure, fmt.Errorf("checkout: %w", err))
				}
				jobs, _ := cmd.Flags().GetInt("jobs")
				engine := transfer.New(store, backend, cmdutil.Jobs(jobs))
				ctx, stop := cmdutil.SignalContext(cmd.Context())
				defer stop()
				summary, err := engine.Run(ctx, transfer.Pull, missing)
				if err != nil {
					return cmdutil.WithExitCode(cmdutil.ExitFailure, fmt.Errorf("checkout: %w", err))
				}
				if exitErr := cmdutil.ExitForSummary(summary); exitErr != nil {
					return exitErr
				}
			}
		}

		mode, _ := cmd.Flags().GetString("mode")
		force, _ := cmd.Flags().GetBool("force")
		rc := cmdutil.Reconciler(repo, store, mode, force)
		if err := rc.Checkout(args...); err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, fmt.Errorf("checkout: %w", err))
		}
		return nil
	},
}
