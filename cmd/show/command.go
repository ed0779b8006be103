// Package show implements "lfc show <path>".
package show

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lfc-dev/lfc/internal/cmdutil"
	"github.com/lfc-dev/lfc/internal/pointer"
)

// Cmd line declaration
var Cmd = &cobra.Command{
	Use:   "show <path>",
	Short: "Print the hash currently resolved for a tracked path",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return cmdutil.WithExitCode(cmdutil.ExitUsage, fmt.Errorf("show requires exactly 1 path argument, received %d", len(args)))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := cmdutil.OpenRepo()
		if err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, err)
		}
		path := args[0]
		rec, err := pointer.Read(filepath.Join(repo.Root, pointer.SidecarPath(path)))
		if err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, fmt.Errorf("show %s: %w", path, err))
		}
		cmd.Printf("sha256:%s  size:%d  %s\n", rec.SHA256, rec.Size, path)
		return nil
	},
}
