// Package cmd wires lfc's cobra command tree: a root command carrying the
// global flags, plus one subpackage per verb.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/lfc-dev/lfc/cmd/add"
	"github.com/lfc-dev/lfc/cmd/checkout"
	"github.com/lfc-dev/lfc/cmd/clone"
	cfgcmd "github.com/lfc-dev/lfc/cmd/config"
	"github.com/lfc-dev/lfc/cmd/initcmd"
	"github.com/lfc-dev/lfc/cmd/lsremote"
	"github.com/lfc-dev/lfc/cmd/pull"
	"github.com/lfc-dev/lfc/cmd/push"
	"github.com/lfc-dev/lfc/cmd/remote"
	"github.com/lfc-dev/lfc/cmd/show"
	"github.com/lfc-dev/lfc/cmd/status"
	"github.com/lfc-dev/lfc/internal/lfclog"
)

// RootCmd is lfc's top-level command.
var RootCmd = &cobra.Command{
	Use:   "lfc",
	Short: "Large File Control: a Git-LFS-style tracker for big files",
	Long: "Description:" +
		"\n  lfc tracks large files outside Git's own object store, leaving a small" +
		"\n  sidecar in their place and moving blob content through a content-addressed" +
		"\n  local cache and a pluggable set of remote backends.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		if _, err := lfclog.New("", verbose); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().StringP("remote", "r", "", "remote name to operate against (default: the repository's default remote)")
	RootCmd.PersistentFlags().IntP("jobs", "j", 0, "transfer concurrency (default: LFC_JOBS, then git config lfc.jobs, then 4)")
	RootCmd.PersistentFlags().String("mode", "", "working-tree materialization mode: pointer|link|copy (default: link)")
	RootCmd.PersistentFlags().Bool("force", false, "override conflict/safety checks")
	RootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress non-error output")
	RootCmd.PersistentFlags().BoolP("verbose", "v", false, "echo log output to stderr in addition to the log file")

	RootCmd.AddCommand(initcmd.Cmd)
	RootCmd.AddCommand(add.Cmd)
	RootCmd.AddCommand(pull.Cmd)
	RootCmd.AddCommand(push.Cmd)
	RootCmd.AddCommand(clone.Cmd)
	RootCmd.AddCommand(checkout.Cmd)
	RootCmd.AddCommand(status.Cmd)
	RootCmd.AddCommand(remote.Cmd)
	RootCmd.AddCommand(cfgcmd.Cmd)
	RootCmd.AddCommand(show.Cmd)
	RootCmd.AddCommand(lsremote.Cmd)
	RootCmd.CompletionOptions.HiddenDefaultCmd = true
	RootCmd.SilenceUsage = true
}
