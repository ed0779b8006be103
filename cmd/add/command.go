// Package add implements "lfc add <path>…".
package add

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lfc-dev/lfc/internal/cmdutil"
)

// Cmd line declaration
var Cmd = &cobra.Command{
	Use:   "add <path>...",
	Short: "Track one or more large files",
	Long:  "Description:\n  Hash each path's contents into the local cache and write its sidecar, staging the sidecar with git.",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmdutil.WithExitCode(cmdutil.ExitUsage, fmt.Errorf("add requires at least one path"))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := cmdutil.OpenRepo()
		if err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, err)
		}
		mode, _ := cmd.Flags().GetString("mode")
		force, _ := cmd.Flags().GetBool("force")
		store := cmdutil.Store(repo)
		rc := cmdutil.Reconciler(repo, store, mode, force)

		quiet, _ := cmd.Flags().GetBool("quiet")
		for _, path := range args {
			rec, err := rc.Add(path)
			if err != nil {
				return cmdutil.WithExitCode(cmdutil.ExitFailure, fmt.Errorf("add %s: %w", path, err))
			}
			if !quiet {
				cmd.Printf("tracked %s (sha256:%s, %d bytes)\n", path, rec.SHA256, rec.Size)
			}
		}
		return nil
	},
}
