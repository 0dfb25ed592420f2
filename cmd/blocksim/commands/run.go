package commands

import (
	"time"

	"github.com/mosaicnetworks/blocksim/src/simulation"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

//NewRunCmd returns the command that runs one simulation
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run a simulation",
		PreRunE: loadConfig,
		RunE:    runSimulation,
	}
	AddSimulationFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runSimulation(cmd *cobra.Command, args []string) error {
	logger := _config.Blocksim.Logger()

	s := simulation.NewSimulation(&_config.Blocksim)

	if err := s.Init(); err != nil {
		logger.WithError(err).Error("Cannot initialize simulation")
		return err
	}

	var bar *progressbar.ProgressBar
	if _config.Progress {
		bar = newProgressBar(_config.Blocksim.EndTime)
		last := int64(0)
		s.Kernel.OnAdvance(func(now time.Duration) {
			if sec := int64(now / time.Second); sec > last {
				last = sec
				if err := bar.Set64(sec); err != nil {
					logger.WithError(err).Debug("Updating progress bar")
				}
			}
		})
	}

	summary, err := s.Run()

	if bar != nil {
		if ferr := bar.Finish(); ferr != nil {
			logger.WithError(ferr).Debug("Finishing progress bar")
		}
	}

	if err != nil {
		return errors.Wrap(err, "simulation failed")
	}

	logger.WithFields(logrus.Fields{
		"run":         summary.Name,
		"reliability": summary.Reliability,
		"latency":     summary.Latency,
		"rmr":         summary.RMR,
	}).Info("Summary")

	return nil
}

// newProgressBar tracks the virtual clock in seconds.
func newProgressBar(end time.Duration) *progressbar.ProgressBar {
	bar := progressbar.NewOptions64(
		int64(end/time.Second),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetDescription("Simulating..."),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	_ = bar.RenderBlank()
	return bar
}
