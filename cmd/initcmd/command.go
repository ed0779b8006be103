// Package initcmd implements "lfc init".
package initcmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lfc-dev/lfc/internal/cmdutil"
	"github.com/lfc-dev/lfc/internal/gitutil"
	"github.com/lfc-dev/lfc/internal/repostate"
)

// Cmd line declaration
var Cmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the repository for lfc",
	Long:  "Description:\n  Create the \".lfc\" state directory (config, cache, .gitignore) in the current repository.",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 {
			return cmdutil.WithExitCode(cmdutil.ExitUsage, fmt.Errorf("init accepts no arguments, received %d", len(args)))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		top, err := gitutil.TopLevel()
		if err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, fmt.Errorf("init: not in a git repository: %w", err))
		}
		if _, err := repostate.Init(top); err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, fmt.Errorf("init: %w", err))
		}

		// Record the chosen concurrency in git config so later invocations
		// (and hooks running without flags) pick it up.
		if jobs, _ := cmd.Flags().GetInt("jobs"); jobs > 0 {
			if err := gitutil.ConfigSet(map[string]string{"lfc.jobs": strconv.Itoa(jobs)}); err != nil {
				return cmdutil.WithExitCode(cmdutil.ExitFailure, fmt.Errorf("init: writing git config: %w", err))
			}
		}

		cmd.Println("Initialized lfc repository in .lfc/")
		return nil
	},
}
