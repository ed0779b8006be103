// Package remote implements "lfc remote {add|remove|list|set-url}".
package remote

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lfc-dev/lfc/internal/cmdutil"
)

// Cmd line declaration
var Cmd = &cobra.Command{
	Use:   "remote",
	Short: "Manage the repository's remote cache registry",
	Long:  "Description:\n  Add, remove, list, or re-point the named remotes blobs are pushed to and pulled from.",
}

var addDefault bool

// AddCmd registers a new remote.
var AddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Register a remote",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 2 {
			return cmdutil.WithExitCode(cmdutil.ExitUsage, fmt.Errorf("remote add requires a name and a URL, received %d argument(s)", len(args)))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := cmdutil.OpenRepo()
		if err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, err)
		}
		name, url := args[0], args[1]
		if err := repo.RemoteAdd(name, url); err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, err)
		}
		if addDefault {
			if err := repo.SetConfigValue("core.defaultremote", name); err != nil {
				return cmdutil.WithExitCode(cmdutil.ExitFailure, err)
			}
		}
		return nil
	},
}

// RemoveCmd deletes a remote.
var RemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a remote",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return cmdutil.WithExitCode(cmdutil.ExitUsage, fmt.Errorf("remote remove requires exactly 1 name, received %d", len(args)))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := cmdutil.OpenRepo()
		if err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, err)
		}
		if err := repo.RemoteRemove(args[0]); err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, err)
		}
		return nil
	},
}

// ListCmd prints the registered remotes.
var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "List remotes",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := cmdutil.OpenRepo()
		if err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, err)
		}
		cfg := repo.Config()
		for _, name := range repo.RemoteList() {
			marker := " "
			if name == cfg.DefaultRemote {
				marker = "*"
			}
			cmd.Printf("%s %s\t%s\n", marker, name, cfg.Remotes[name].URL)
		}
		return nil
	},
}

// SetURLCmd re-points an existing remote.
var SetURLCmd = &cobra.Command{
	Use:   "set-url <name> <url>",
	Short: "Change a remote's URL",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 2 {
			return cmdutil.WithExitCode(cmdutil.ExitUsage, fmt.Errorf("remote set-url requires a name and a URL, received %d argument(s)", len(args)))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := cmdutil.OpenRepo()
		if err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, err)
		}
		if err := repo.RemoteSetURL(args[0], args[1]); err != nil {
			return cmdutil.WithExitCode(cmdutil.ExitFailure, err)
		}
		return nil
	},
}

func init() {
	AddCmd.Flags().BoolVar(&addDefault, "default", false, "make this remote the default")
	Cmd.AddCommand(AddCmd)
	Cmd.AddCommand(RemoveCmd)
	Cmd.AddCommand(ListCmd)
	Cmd.AddCommand(SetURLCmd)
}
