package peers

import (
	"math/rand"
	"time"

	"github.com/mosaicnetworks/blocksim/src/config"
	"github.com/mosaicnetworks/blocksim/src/net"
	"github.com/sirupsen/logrus"
)

//Naive is the geometric membership of the flood simulations: a node picks a
//random subset of the nodes placed within a given distance, and picks again
//every refresh period.
type Naive struct {
	self     int
	trans    net.Transport
	grid     *Grid
	rng      *rand.Rand
	distance float64
	fanout   int
	period   time.Duration

	view    *IDSet
	evicted *IDSet

	listener Listener
	logger   *logrus.Entry
}

//NewNaive ...
func NewNaive(trans net.Transport,
	conf *config.Config,
	grid *Grid,
	rng *rand.Rand,
	listener Listener,
	logger *logrus.Entry) *Naive {

	return &Naive{
		self:     trans.LocalAddr(),
		trans:    trans,
		grid:     grid,
		rng:      rng,
		distance: conf.Distance,
		fanout:   conf.Fanout(),
		period:   conf.RefreshPeriod,
		view:     NewIDSet(),
		evicted:  NewIDSet(),
		listener: listener,
		logger:   logger,
	}
}

//Start implements the Membership interface
func (n *Naive) Start() {
	n.refresh()
	n.schedule()
}

//Process implements the Membership interface. The naive view is computed
//locally, so there are no messages to handle.
func (n *Naive) Process(msg net.MembershipMessage) {
	n.logger.WithField("from", msg.From()).Debug("Naive membership ignoring message")
}

//Tick implements the Membership interface
func (n *Naive) Tick(timer interface{}) {
	if _, ok := timer.(net.ViewRound); !ok {
		return
	}
	n.refresh()
	n.schedule()
}

func (n *Naive) schedule() {
	if n.period > 0 {
		n.trans.Schedule(net.ViewRound{}, n.period)
	}
}

//refresh draws a new view among the nodes in range, leaving out the ones
//evicted for failing to answer.
func (n *Naive) refresh() {
	candidates := []int{}
	for _, id := range n.grid.Within(n.self, n.distance) {
		if !n.evicted.Contains(id) {
			candidates = append(candidates, id)
		}
	}
	n.view = NewIDSet(Sample(n.rng, candidates, n.fanout)...)

	n.logger.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"view":       n.view.Len(),
	}).Debug("Naive refresh")

	n.listener.ViewChanged(n.view.Slice())
}

//AddCandidate implements the Membership interface
func (n *Naive) AddCandidate(id int) {
	if id == n.self || n.view.Len() >= n.fanout {
		return
	}
	n.evicted.Remove(id)
	if n.view.Add(id) {
		n.listener.ViewChanged(n.view.Slice())
	}
}

//Evict implements the Membership interface
func (n *Naive) Evict(id int) {
	n.evicted.Add(id)
	if n.view.Remove(id) {
		n.listener.PeerDown(id)
		n.listener.ViewChanged(n.view.Slice())
	}
}

//View implements the Membership interface
func (n *Naive) View() []int {
	return n.view.Slice()
}

//Contains implements the Membership interface
func (n *Naive) Contains(id int) bool {
	return n.view.Contains(id)
}

//Reset implements the Membership interface
func (n *Naive) Reset() {
	n.view.Clear()
	n.evicted.Clear()
}
