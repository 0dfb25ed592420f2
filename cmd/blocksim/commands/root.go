package commands

import (
	"github.com/spf13/cobra"
)

var (
	_config = NewDefaultCLIConfig()
)

//RootCmd is the root command for blocksim
var RootCmd = &cobra.Command{
	Use:              "blocksim",
	Short:            "blockchain dissemination simulator",
	TraverseChildren: true,
}
