package churn

import (
	"math/rand"
	"time"

	"github.com/mosaicnetworks/blocksim/src/config"
	"github.com/mosaicnetworks/blocksim/src/net"
	"github.com/mosaicnetworks/blocksim/src/peers"
	"github.com/mosaicnetworks/blocksim/src/sim"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ManagerKind is the kernel address kind of the churn manager.
const ManagerKind = "churn"

// ManagerAddress ...
var ManagerAddress = sim.Address{Kind: ManagerKind, ID: 0}

// Cycle triggers one churn cycle.
type Cycle struct{}

// Scheduler is the part of the kernel the manager needs.
type Scheduler interface {
	Now() time.Duration
	Schedule(delay time.Duration, addr sim.Address, payload interface{})
}

// Manager is the kernel entity that churns nodes out. Each cycle samples
// int(n * FailRate) nodes from the up set, provided more than that remain,
// and sends each one a ChurnOut after an exponentially distributed delay.
// A node departs from the Roster when it processes its ChurnOut.
type Manager struct {
	roster    *Roster
	scheduler Scheduler
	rng       *rand.Rand

	size      int
	start     time.Duration
	period    time.Duration
	meanDelay time.Duration

	doomed *peers.IDSet
	cycles int

	logger *logrus.Entry
}

// NewManager ...
func NewManager(conf *config.Config,
	roster *Roster,
	scheduler Scheduler,
	rng *rand.Rand,
	logger *logrus.Entry) *Manager {

	return &Manager{
		roster:    roster,
		scheduler: scheduler,
		rng:       rng,
		size:      int(float64(conf.Nodes) * conf.FailRate),
		start:     conf.ChurnStart,
		period:    conf.ChurnPeriod,
		meanDelay: conf.ChurnMeanDelay,
		doomed:    peers.NewIDSet(),
		logger:    logger,
	}
}

// Start arms the first cycle.
func (m *Manager) Start() {
	m.scheduler.Schedule(m.start, ManagerAddress, Cycle{})
}

// Deliver implements sim.Entity.
func (m *Manager) Deliver(payload interface{}) error {
	if _, ok := payload.(Cycle); !ok {
		return errors.Errorf("churn manager: unexpected payload %T", payload)
	}

	m.cycles++

	// nodes already sent a ChurnOut are not picked twice
	candidates := []int{}
	for _, id := range m.roster.Up() {
		if !m.doomed.Contains(id) {
			candidates = append(candidates, id)
		}
	}

	if m.size > 0 && len(candidates) > m.size {
		for _, id := range peers.Sample(m.rng, candidates, m.size) {
			m.doomed.Add(id)
			delay := time.Duration(m.rng.ExpFloat64() * float64(m.meanDelay))
			m.scheduler.Schedule(delay, net.NodeAddress(id), net.ChurnOut{})
		}
		m.logger.WithFields(logrus.Fields{
			"cycle":   m.cycles,
			"victims": m.size,
			"up":      len(candidates),
		}).Debug("Churn cycle")
	}

	if m.period > 0 {
		m.scheduler.Schedule(m.period, ManagerAddress, Cycle{})
	}
	return nil
}

// Cycles is the number of cycles run so far.
func (m *Manager) Cycles() int {
	return m.cycles
}

// Doomed returns the nodes sent a ChurnOut, in the order they were picked.
func (m *Manager) Doomed() []int {
	return m.doomed.Slice()
}
