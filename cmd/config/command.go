// Package config implements "lfc config {get|set}".
package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lfc-dev/lfc/internal/cmdutil"
)

// Cmd line declaration
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Read or write repository configuration options",
	Long:  "Description:\n  Get or set scalar options in .lfc/config (core.defaultremote, core.autopull, core.hashcheck, core.umask).",
}

// GetCmd prints one config value.
var GetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a config value",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return cmdutil.WithExitCode(cmdutil.ExitUsage, fmt.Errorf("config get requires exactly 1 key, received %d argument(s)", len(args)))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := cmdutil.OpenRepo()
		if err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, err)
		}
		value, err := repo.GetConfigValue(args[0])
		if err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitUsage, err)
		}
		cmd.Println(value)
		return nil
	},
}

// SetCmd writes one config value.
var SetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 2 {
			return cmdutil.WithExitCode(cmdutil.ExitUsage, fmt.Errorf("config set requires a key and a value, received %d argument(s)", len(args)))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := cmdutil.OpenRepo()
		if err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, err)
		}
		if err := repo.SetConfigValue(args[0], args[1]); err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitUsage, err)
		}
		return nil
	},
}

func init() {
	Cmd.AddCommand(GetCmd)
	Cmd.AddCommand(SetCmd)
}
