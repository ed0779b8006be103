package main

import (
	"os"

	"github.com/lfc-dev/lfc/cmd"
	"github.com/lfc-dev/lfc/internal/cmdutil"
	"github.com/lfc-dev/lfc/internal/lfclog"
)

func main() {
	err := cmd.RootCmd.Execute()
	lfclog.Close()
	if err != nil {
		os.Exit(cmdutil.CodeOf(err))
	}
}
