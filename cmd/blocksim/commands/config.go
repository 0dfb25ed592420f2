package commands

import (
	"github.com/mosaicnetworks/blocksim/src/config"
)

//CLIConfig contains the simulation configuration plus the options that only
//concern the command line
type CLIConfig struct {
	Blocksim config.Config `mapstructure:",squash"`
	Progress bool          `mapstructure:"progress"`
	Runs     int           `mapstructure:"runs"`
	Parallel int           `mapstructure:"parallel"`
}

//NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Blocksim: *config.NewDefaultConfig(),
		Progress: false,
		Runs:     5,
		Parallel: 2,
	}
}
