package commands

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//AddSimulationFlags adds the flags shared by run and sweep
func AddSimulationFlags(cmd *cobra.Command) {
	c := &_config.Blocksim

	cmd.Flags().String("datadir", c.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", c.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", c.LogFile, "Also write the logs to this file")

	// Run
	cmd.Flags().Int("nodes", c.Nodes, "Number of nodes")
	cmd.Flags().Duration("end-time", c.EndTime, "Virtual time at which the simulation stops")
	cmd.Flags().Int64("seed", c.Seed, "Random seed")
	cmd.Flags().Bool("progress", _config.Progress, "Show a progress bar of the virtual time")

	// Strategies
	cmd.Flags().String("broadcast", c.Broadcast, "Broadcast strategy: flood, plumtree")
	cmd.Flags().String("membership", c.Membership, "Membership strategy: naive, brahms, dimple")
	cmd.Flags().String("acks", c.Acks, "PlumTree acknowledgements: auto, on, off")

	// Network
	cmd.Flags().Duration("lookahead", c.Lookahead, "Link delay of every message")
	cmd.Flags().Duration("min-delay", c.MinDelay, "Smallest delay between causally dependent events")
	cmd.Flags().Float64("distance", c.Distance, "Naive membership radius")
	cmd.Flags().Int("max-rounds", c.MaxRounds, "Flood retransmission cap, 0 for none")
	cmd.Flags().Int("fanout", c.FanoutOverride, "Naive fanout, 0 to derive it from the number of nodes")
	cmd.Flags().Duration("refresh-period", c.RefreshPeriod, "Naive view refresh period")
	cmd.Flags().Float64("ack-factor", c.AckFactor, "Ack deadline in lookaheads")
	cmd.Flags().Float64("lazy-delay", c.LazyDelay, "IHAVE delay in lookaheads")

	// Churn
	cmd.Flags().Bool("churn", c.Churn, "Churn nodes out")
	cmd.Flags().Float64("fail-rate", c.FailRate, "Fraction of the nodes churned out per cycle")
	cmd.Flags().Duration("churn-start", c.ChurnStart, "Time of the first churn cycle")
	cmd.Flags().Duration("churn-period", c.ChurnPeriod, "Period of churn cycles, 0 for a single cycle")
	cmd.Flags().Duration("churn-mean-delay", c.ChurnMeanDelay, "Mean delay before a sampled node departs")

	// Brahms
	cmd.Flags().Int("view-c", c.ViewC, "Brahms view size constant")
	cmd.Flags().Float64("alpha", c.Alpha, "Brahms push share")
	cmd.Flags().Float64("beta", c.Beta, "Brahms pull share")
	cmd.Flags().Duration("brahms-period", c.BrahmsPeriod, "Brahms round period during the fast phase")
	cmd.Flags().Duration("brahms-stable-period", c.BrahmsStablePeriod, "Brahms round period after the fast phase")
	cmd.Flags().Duration("brahms-fast-until", c.BrahmsFastUntil, "End of the Brahms fast phase")
	cmd.Flags().Duration("brahms-stop-at", c.BrahmsStopAt, "Time at which Brahms rounds stop, 0 for never")

	// DIMPLE
	cmd.Flags().Duration("shuffle-time", c.ShuffleTime, "DIMPLE shuffle period")
	cmd.Flags().Duration("dimple-timeout", c.DimpleTimeout, "DIMPLE response timeout")
	cmd.Flags().Int("seeds", c.Seeds, "Number of DIMPLE seed nodes")

	// Blockchain
	cmd.Flags().Float64("miner-fraction", c.MinerFraction, "Fraction of the nodes that mine")
	cmd.Flags().Duration("mining-mean", c.MiningMean, "Mean proof-of-work latency")
	cmd.Flags().Int("block-tx-limit", c.BlockTxLimit, "Transactions per block")
	cmd.Flags().Int("difficulty", c.Difficulty, "Leading zero hex digits of a valid block hash")
	cmd.Flags().Int("max-nonce", c.MaxNonce, "Nonce search bound")
	cmd.Flags().Duration("tx-mean", c.TxMean, "Mean delay between transactions")
	cmd.Flags().Duration("tx-start", c.TxStart, "Time of the first transaction")
	cmd.Flags().String("fork-tie-break", c.ForkTieBreak, "Choice between equally long forks: earliest, hash")
	cmd.Flags().Int("max-orphans", c.MaxOrphans, "Orphan pool bound, 0 for none")
	cmd.Flags().Int("max-mempool", c.MaxMempool, "Mempool bound, 0 for none")

	// Store
	cmd.Flags().Bool("store", c.Store, "Archive the reports in a badger database")
	cmd.Flags().String("db", c.DatabaseDir, "Database directory")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.Blocksim.SetDataDir(_config.Blocksim.DataDir)

	c := &_config.Blocksim

	logFields := logrus.Fields{
		"blocksim.DataDir":    c.DataDir,
		"blocksim.LogLevel":   c.LogLevel,
		"blocksim.Nodes":      c.Nodes,
		"blocksim.EndTime":    c.EndTime,
		"blocksim.Seed":       c.Seed,
		"blocksim.Broadcast":  c.Broadcast,
		"blocksim.Membership": c.Membership,
		"blocksim.Acks":       c.Acks,
		"blocksim.Lookahead":  c.Lookahead,
		"blocksim.Churn":      c.Churn,
		"blocksim.Store":      c.Store,
	}

	if c.Churn {
		logFields["blocksim.FailRate"] = c.FailRate
		logFields["blocksim.ChurnStart"] = c.ChurnStart
		logFields["blocksim.ChurnPeriod"] = c.ChurnPeriod
	}

	if c.Store {
		logFields["blocksim.DatabaseDir"] = c.DatabaseDir
	}

	c.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return errors.Wrap(err, "reading flags")
	}

	// look for config file in [datadir]/blocksim.toml (.json, .yaml also work)
	viper.SetConfigName("blocksim")
	viper.AddConfigPath(_config.Blocksim.DataDir)

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Blocksim.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Blocksim.Logger().Debugf("No config file found in: %s", _config.Blocksim.DataDir)
	} else {
		return errors.Wrap(err, "reading config file")
	}

	// second unmarshal to read from config file
	if err := viper.Unmarshal(_config); err != nil {
		return errors.Wrap(err, "reading config file")
	}

	return nil
}
