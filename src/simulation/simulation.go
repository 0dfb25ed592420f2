package simulation

import (
	"math/rand"

	"github.com/mosaicnetworks/blocksim/src/churn"
	"github.com/mosaicnetworks/blocksim/src/common"
	"github.com/mosaicnetworks/blocksim/src/config"
	"github.com/mosaicnetworks/blocksim/src/net"
	"github.com/mosaicnetworks/blocksim/src/node"
	"github.com/mosaicnetworks/blocksim/src/peers"
	"github.com/mosaicnetworks/blocksim/src/report"
	"github.com/mosaicnetworks/blocksim/src/sim"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Simulation wires one run: a kernel, the nodes, the miners, the transaction
// token, the optional churn manager and the report collector. It owns its
// kernel and random source, so independent simulations can run in parallel.
type Simulation struct {
	Config    *config.Config
	Kernel    *sim.Kernel
	Roster    *churn.Roster
	Grid      *peers.Grid
	Nodes     []*node.Node
	Miners    []int
	Churn     *churn.Manager
	Collector *report.Collector
	Store     report.Store

	// ownStore is set when Init opened the Store, in which case Run closes
	// it.
	ownStore bool

	rng    *rand.Rand
	ids    *common.IDGenerator
	logger *logrus.Entry
}

// NewSimulation ... A Store may be assigned before Init to share one archive
// between runs; Init then leaves it open.
func NewSimulation(conf *config.Config) *Simulation {
	return &Simulation{
		Config: conf,
	}
}

// Init validates the configuration and builds every entity. Nothing runs
// until Run.
func (s *Simulation) Init() error {
	if err := s.Config.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	s.logger = s.Config.Logger().WithField("run", s.Config.Name())
	s.rng = rand.New(rand.NewSource(s.Config.Seed))
	s.ids = common.NewIDGenerator(s.rng)
	s.Kernel = sim.NewKernel(s.Config.EndTime, s.Config.MinDelay, s.logger)
	s.Roster = churn.NewRoster(s.Config.Nodes)

	if err := s.initStore(); err != nil {
		return err
	}

	s.initCollector()

	if err := s.initNodes(); err != nil {
		return err
	}

	s.initMiners()
	s.initTransactions()
	s.initChurn()

	return nil
}

func (s *Simulation) initStore() error {
	if s.Store != nil {
		return nil
	}

	if !s.Config.Store {
		s.Store = report.NewInmemStore()
		s.logger.Debug("created new in-mem store")
		return nil
	}

	s.logger.WithField("path", s.Config.DatabaseDir).Debug("Attempting to load or create database")

	store, err := report.NewBadgerStore(s.Config.DatabaseDir)
	if err != nil {
		return errors.Wrap(err, "opening report archive")
	}
	s.Store = store
	s.ownStore = true

	return nil
}

func (s *Simulation) initCollector() {
	failRate := 0.0
	if s.Config.Churn {
		failRate = s.Config.FailRate
	}

	s.Collector = report.NewCollector(s.Config.Name(), s.Config.Nodes, failRate, s.Store, s.logger)
	s.Kernel.Register(report.CollectorAddress, s.Collector)
	s.Kernel.Schedule(s.Config.EndTime, report.CollectorAddress, report.Finalize{})
}

func (s *Simulation) initNodes() error {
	if s.Config.Membership == config.Naive {
		s.Grid = peers.NewGrid(s.Config.Nodes, s.rng)
	}

	s.Nodes = make([]*node.Node, s.Config.Nodes)
	for id := 0; id < s.Config.Nodes; id++ {
		trans := net.NewInmemTransport(s.Kernel, id)

		n, err := node.NewNode(s.Config, id, trans, s.rng, s.ids, s.Roster, s.Grid)
		if err != nil {
			return errors.Wrapf(err, "creating node %d", id)
		}

		s.Kernel.Register(net.NodeAddress(id), n)
		s.Nodes[id] = n
	}

	for _, n := range s.Nodes {
		n.Start()
	}

	s.logger.WithFields(logrus.Fields{
		"nodes":      s.Config.Nodes,
		"broadcast":  s.Config.Broadcast,
		"membership": s.Config.Membership,
		"acks":       s.Config.AcksEnabled(),
	}).Debug("Nodes created")

	return nil
}

// initMiners picks the miners at random. Miners are exempt from churn.
func (s *Simulation) initMiners() {
	all := make([]int, s.Config.Nodes)
	for i := range all {
		all[i] = i
	}

	s.Miners = peers.Sample(s.rng, all, s.Config.MinerCount())
	for _, id := range s.Miners {
		s.Roster.Exempt(id)
		s.Kernel.Schedule(s.Config.Lookahead, net.NodeAddress(id), net.BecomeMiner{})
	}

	s.logger.WithField("miners", s.Miners).Debug("Miners elected")
}

// initTransactions hands the transaction token to a random node.
func (s *Simulation) initTransactions() {
	first, ok := s.Roster.Random(s.rng)
	if !ok {
		s.logger.Debug("No node can create transactions")
		return
	}
	s.Kernel.Schedule(s.Config.TxStart+s.Config.Lookahead, net.NodeAddress(first), net.CreateTransaction{})
}

func (s *Simulation) initChurn() {
	if !s.Config.Churn {
		return
	}
	s.Churn = churn.NewManager(s.Config, s.Roster, s.Kernel, s.rng, s.logger.WithField("prefix", "churn"))
	s.Kernel.Register(churn.ManagerAddress, s.Churn)
	s.Churn.Start()
}

// Run drives the kernel to the end time and returns the collector's summary.
func (s *Simulation) Run() (*report.Summary, error) {
	s.logger.Info("Running simulation")

	err := s.Kernel.Run()

	if s.ownStore {
		if cerr := s.Store.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "closing report archive")
		}
	}
	if err != nil {
		return nil, err
	}

	summary := s.Collector.Summary()
	if summary == nil {
		return nil, errors.New("simulation ended without a summary")
	}

	s.logger.WithFields(logrus.Fields{
		"events":  s.Kernel.Processed(),
		"virtual": s.Kernel.Now(),
	}).Info("Simulation done")

	return summary, nil
}
