// Package lsremote implements "lfc ls-remote <name>".
package lsremote

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lfc-dev/lfc/internal/cmdutil"
)

// Cmd line declaration
var Cmd = &cobra.Command{
	Use:   "ls-remote <name>",
	Short: "List every blob hash present at a remote",
	Long:  "Description:\n  Enumerate the named remote's content store and print one hash per line.",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return cmdutil.WithExitCode(cmdutil.ExitUsage, fmt.Errorf("ls-remote requires exactly 1 remote name, received %d argument(s)", len(args)))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := cmdutil.OpenRepo()
		if err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, err)
		}
		backend, err := cmdutil.Backend(repo, args[0])
		if err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, err)
		}

		ctx, stop := cmdutil.SignalContext(cmd.Context())
		defer stop()

		hashes, errc := backend.List(ctx)
		for h := range hashes {
			cmd.Println(h.String())
		}
		if err := <-errc; err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, fmt.Errorf("ls-remote %s: %w", args[0], err))
		}
		return nil
	},
}
