package commands

import (
	"github.com/mosaicnetworks/blocksim/src/report"
	"github.com/mosaicnetworks/blocksim/src/simulation"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

//NewSweepCmd returns the command that runs the same simulation over
//consecutive seeds
func NewSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sweep",
		Short:   "Run a simulation over consecutive seeds",
		Long:    "Run a simulation once per seed, from --seed to --seed + --runs - 1. Runs are independent and execute concurrently.",
		PreRunE: loadConfig,
		RunE:    sweep,
	}
	AddSimulationFlags(cmd)
	cmd.Flags().Int("runs", _config.Runs, "Number of seeds")
	cmd.Flags().Int("parallel", _config.Parallel, "Simulations running at the same time")
	return cmd
}

func sweep(cmd *cobra.Command, args []string) error {
	base := _config.Blocksim
	logger := base.Logger()

	if _config.Runs < 1 {
		return errors.Errorf("runs must be at least 1, got %d", _config.Runs)
	}

	// one archive shared by every run, keyed by run name
	var store report.Store
	if base.Store {
		s, err := report.NewBadgerStore(base.DatabaseDir)
		if err != nil {
			return errors.Wrap(err, "opening report archive")
		}
		defer s.Close()
		store = s
	}

	summaries := make([]*report.Summary, _config.Runs)

	var g errgroup.Group
	if _config.Parallel > 0 {
		g.SetLimit(_config.Parallel)
	}

	for i := 0; i < _config.Runs; i++ {
		i := i
		conf := base
		conf.Seed = base.Seed + int64(i)

		g.Go(func() error {
			s := simulation.NewSimulation(&conf)
			s.Store = store
			if err := s.Init(); err != nil {
				return errors.Wrapf(err, "seed %d", conf.Seed)
			}
			summary, err := s.Run()
			if err != nil {
				return errors.Wrapf(err, "seed %d", conf.Seed)
			}
			summaries[i] = summary
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	var reliability, latency, rmr float64
	for _, s := range summaries {
		logger.WithFields(logrus.Fields{
			"run":         s.Name,
			"reliability": s.Reliability,
			"latency":     s.Latency,
			"rmr":         s.RMR,
			"chain":       s.LongestChain,
		}).Info("Summary")
		reliability += s.Reliability
		latency += s.Latency
		rmr += s.RMR
	}

	n := float64(len(summaries))
	logger.WithFields(logrus.Fields{
		"runs":        len(summaries),
		"reliability": reliability / n,
		"latency":     latency / n,
		"rmr":         rmr / n,
	}).Info("Sweep done")

	return nil
}
