// Package clone implements "lfc clone <git-url> [dir]".
package clone

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lfc-dev/lfc/internal/cache"
	"github.com/lfc-dev/lfc/internal/cmdutil"
	"github.com/lfc-dev/lfc/internal/gitutil"
	"github.com/lfc-dev/lfc/internal/repostate"
	"github.com/lfc-dev/lfc/internal/transfer"
)

// Cmd line declaration
var Cmd = &cobra.Command{
	Use:   "clone <git-url> [dir]",
	Short: "Clone a Git repository and pull the large files it tracks",
	Long:  "Description:\n  Run \"git clone\", then fetch every blob referenced by the checked-out commit's sidecars from the repository's default remote and materialize the working tree.",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) < 1 || len(args) > 2 {
			return cmdutil.WithExitCode(cmdutil.ExitUsage, fmt.Errorf("clone requires a git URL and an optional directory, received %d argument(s)", len(args)))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := ""
		if len(args) == 2 {
			dir = args[1]
		}
		root, err := gitutil.Clone(args[0], dir)
		if err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, fmt.Errorf("clone: %w", err))
		}
		if err := os.Chdir(root); err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, fmt.Errorf("clone: %w", err))
		}

		repo, err := repostate.Open(root)
		if err != nil {
			if err == repostate.ErrNotARepo {
				// No .lfc/config was ever committed: nothing for lfc to do.
				return nil
			}
			return cmdutil.WithExitCode(cmdutil.ExitFailure, fmt.Errorf("clone: %w", err))
		}
		store := cmdutil.Store(repo)

		remoteName, _ := cmd.Flags().GetString("remote")
		backend, err := cmdutil.Backend(repo, remoteName)
		if err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, fmt.Errorf("clone: %w", err))
		}

		hashes, err := transfer.ResolveClone("HEAD")
		if err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, fmt.Errorf("clone: %w", err))
		}
		hashes = keepMissing(store, hashes)

		jobs, _ := cmd.Flags().GetInt("jobs")
		engine := transfer.New(store, backend, cmdutil.Jobs(jobs))
		ctx, stop := cmdutil.SignalContext(cmd.Context())
		defer stop()
		summary, err := engine.Run(ctx, transfer.Clone, hashes)
		if err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, fmt.Errorf("clone: %w", err))
		}

		quiet, _ := cmd.Flags().GetBool("quiet")
		if !quiet {
			cmdutil.PrintSummary(cmd.OutOrStdout(), summary)
		}

		mode, _ := cmd.Flags().GetString("mode")
		force, _ := cmd.Flags().GetBool("force")
		rc := cmdutil.Reconciler(repo, store, mode, force)
		if err := rc.Checkout(); err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, fmt.Errorf("clone: checkout: %w", err))
		}

		return cmdutil.ExitForSummary(summary)
	},
}

// keepMissing drops hashes already present in the local cache, since a
// fresh clone may still share a cache directory via LFC_CACHE_DIR.
func keepMissing(store *cache.Store, hashes []cache.Hash) []cache.Hash {
	out := hashes[:0:0]
	for _, h := range hashes {
		if !store.Has(h) {
			out = append(out, h)
		}
	}
	return out
}
