package broadcast

import (
	"github.com/mosaicnetworks/blocksim/src/net"
	"github.com/mosaicnetworks/blocksim/src/report"
	"github.com/sirupsen/logrus"
)

// Flood is the naive push-announce-pull dissemination: a node holding a new
// payload sends INV to all its neighbors, which REQUEST it if they have not
// got it yet. The round count of a payload grows by one at every relay and
// relays stop at MaxRounds.
type Flood struct {
	self    int
	trans   net.Transport
	conf    Config
	view    View
	deliver DeliverFunc
	cache   *messageCache
	logger  *logrus.Entry
}

// NewFlood ...
func NewFlood(trans net.Transport, conf Config, view View, deliver DeliverFunc, logger *logrus.Entry) *Flood {
	return &Flood{
		self:    trans.LocalAddr(),
		trans:   trans,
		conf:    conf,
		view:    view,
		deliver: deliver,
		cache:   newMessageCache(),
		logger:  logger,
	}
}

// Broadcast implements the Strategy interface.
func (f *Flood) Broadcast(kind net.PayloadKind, id string, data []byte) {
	if f.cache.has(id) {
		return
	}
	f.cache.store(id, kind, data, 0)
	f.sendInv(id)
}

// Deliver implements the Strategy interface.
func (f *Flood) Deliver(msg *net.GossipMessage) {
	switch msg.Type {
	case net.Gossip:
		r := f.cache.get(msg.ID)
		r.gossip++
		if r.held || !f.withinRounds(msg.Round) {
			return
		}
		f.cache.store(msg.ID, msg.Kind, msg.Data, msg.Round)
		f.deliver(msg.Kind, msg.ID, msg.Data)
		f.sendInv(msg.ID)

	case net.Inv:
		r := f.cache.get(msg.ID)
		r.ihave++
		if !r.held {
			f.trans.Send(msg.Sender, &net.GossipMessage{
				Type:   net.Request,
				ID:     msg.ID,
				Sender: f.self,
			}, f.conf.Lookahead)
		}

	case net.Request:
		r := f.cache.get(msg.ID)
		r.graft++
		if r.held {
			f.trans.Send(msg.Sender, &net.GossipMessage{
				Type:   net.Gossip,
				Kind:   r.kind,
				Data:   r.data,
				ID:     msg.ID,
				Round:  r.round + 1,
				Sender: f.self,
			}, f.conf.Lookahead)
		}

	case net.Broadcast:
		f.Broadcast(msg.Kind, msg.ID, msg.Data)

	default:
		f.logger.WithField("type", msg.Type).Debug("Flood ignoring message")
	}
}

func (f *Flood) withinRounds(round int) bool {
	return f.conf.MaxRounds <= 0 || round < f.conf.MaxRounds
}

func (f *Flood) sendInv(id string) {
	for _, p := range f.view.View() {
		if p == f.self {
			continue
		}
		f.trans.Send(p, &net.GossipMessage{
			Type:   net.Inv,
			ID:     id,
			Sender: f.self,
		}, f.conf.Lookahead)
	}
}

// Timeout implements the Strategy interface. Flood arms no timers.
func (f *Flood) Timeout(timer interface{}) {}

// SyncPeers implements the Strategy interface. Flood reads the view at every
// send, so there is nothing to synchronise.
func (f *Flood) SyncPeers(view []int) {}

// Evict implements the Strategy interface.
func (f *Flood) Evict(peer int) {}

// Degree implements the Strategy interface.
func (f *Flood) Degree() int {
	return len(f.view.View())
}

// Has implements the Strategy interface.
func (f *Flood) Has(id string) bool {
	return f.cache.has(id)
}

// Stats implements the Strategy interface.
func (f *Flood) Stats() []report.MessageReport {
	return f.cache.stats()
}

// Reset implements the Strategy interface.
func (f *Flood) Reset() {
	f.cache.reset()
}
