package commands

import (
	"github.com/mosaicnetworks/skipgraph/src/config"
	"github.com/spf13/cobra"
)

var (
	_config = config.NewDefaultConfig()
)

//RootCmd is the root command for skipnode
var RootCmd = &cobra.Command{
	Use:              "skipnode",
	Short:            "skip graph node",
	TraverseChildren: true,
}
