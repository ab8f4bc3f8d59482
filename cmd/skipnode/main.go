package main

import (
	_ "net/http/pprof"
	"os"

	cmd "github.com/mosaicnetworks/skipgraph/cmd/skipnode/commands"
)

func main() {
	rootCmd := cmd.RootCmd

	rootCmd.AddCommand(
		cmd.VersionCmd,
		cmd.NewRunCmd(),
		cmd.NewTableCmd(),
		cmd.NewSearchCmd(),
		cmd.NewPingCmd(),
	)

	//Do not print usage when error occurs
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
