package broadcast

import (
	"github.com/mosaicnetworks/blocksim/src/net"
	"github.com/mosaicnetworks/blocksim/src/peers"
	"github.com/mosaicnetworks/blocksim/src/report"
	"github.com/sirupsen/logrus"
)

type missingEntry struct {
	id    string
	peer  int
	round int
}

type pendingAck struct {
	id    string
	round int
}

// PlumTree is an epidemic broadcast tree. Payloads are pushed along eager
// links and announced along lazy ones. A duplicate delivery prunes the link it
// came through; an announcement whose payload does not show up in time grafts
// the announcing link back into the tree.
//
// With acknowledgements enabled every push expects an ACK (or a PRUNE); a
// peer that stays silent past the deadline is reported as failed.
type PlumTree struct {
	self      int
	trans     net.Transport
	conf      Config
	view      View
	deliver   DeliverFunc
	onFailure LinkFailureFunc

	eager *peers.IDSet
	lazy  *peers.IDSet

	cache   *messageCache
	missing []missingEntry
	armed   map[string]bool
	acks    map[int][]pendingAck

	logger *logrus.Entry
}

// NewPlumTree ...
func NewPlumTree(trans net.Transport,
	conf Config,
	view View,
	deliver DeliverFunc,
	onFailure LinkFailureFunc,
	logger *logrus.Entry) *PlumTree {

	p := &PlumTree{
		self:      trans.LocalAddr(),
		trans:     trans,
		conf:      conf,
		view:      view,
		deliver:   deliver,
		onFailure: onFailure,
		cache:     newMessageCache(),
		logger:    logger,
	}
	p.Reset()
	return p
}

// Broadcast implements the Strategy interface. The payload is stored with
// round 0 and pushed immediately.
func (p *PlumTree) Broadcast(kind net.PayloadKind, id string, data []byte) {
	if p.cache.has(id) {
		return
	}
	p.cache.store(id, kind, data, 0)
	msg := &net.GossipMessage{
		Type:   net.Gossip,
		Kind:   kind,
		Data:   data,
		ID:     id,
		Round:  0,
		Sender: p.self,
	}
	p.eagerPush(msg)
	p.lazyPush(msg)
}

// Deliver implements the Strategy interface.
func (p *PlumTree) Deliver(msg *net.GossipMessage) {
	switch msg.Type {
	case net.Gossip:
		p.onGossip(msg)
	case net.IHave:
		p.onIHave(msg)
	case net.Graft:
		p.onGraft(msg)
	case net.Prune:
		p.clearAck(msg.Sender, msg.ID, msg.Round)
		p.demote(msg.Sender)
	case net.Ack:
		p.clearAck(msg.Sender, msg.ID, msg.Round)
	case net.Broadcast:
		p.Broadcast(msg.Kind, msg.ID, msg.Data)
	default:
		p.logger.WithField("type", msg.Type).Debug("PlumTree ignoring message")
	}
}

func (p *PlumTree) onGossip(msg *net.GossipMessage) {
	r := p.cache.get(msg.ID)
	r.gossip++

	if r.held {
		p.demote(msg.Sender)
		p.send(msg.Sender, &net.GossipMessage{
			Type:   net.Prune,
			ID:     msg.ID,
			Round:  msg.Round,
			Sender: p.self,
		})
		return
	}

	if p.conf.Acks {
		p.sendAck(msg)
	}

	p.cache.store(msg.ID, msg.Kind, msg.Data, msg.Round)
	delete(p.armed, msg.ID)
	p.purgeMissing(func(m missingEntry) bool { return m.id == msg.ID })

	p.deliver(msg.Kind, msg.ID, msg.Data)

	p.eagerPush(msg)
	p.lazyPush(msg)
	p.promote(msg.Sender)
}

func (p *PlumTree) onIHave(msg *net.GossipMessage) {
	if p.conf.Acks {
		p.sendAck(msg)
	}

	r := p.cache.get(msg.ID)
	r.ihave++
	if r.held {
		return
	}

	p.missing = append(p.missing, missingEntry{id: msg.ID, peer: msg.Sender, round: msg.Round})
	if !p.armed[msg.ID] {
		p.armed[msg.ID] = true
		p.trans.Schedule(net.RepairTimeout{ID: msg.ID}, p.conf.repairTimeout())
	}
}

func (p *PlumTree) onGraft(msg *net.GossipMessage) {
	r := p.cache.get(msg.ID)
	r.graft++

	p.promote(msg.Sender)

	if r.held {
		p.send(msg.Sender, &net.GossipMessage{
			Type:   net.Gossip,
			Kind:   r.kind,
			Data:   r.data,
			ID:     msg.ID,
			Round:  msg.Round,
			Sender: p.self,
		})
	}
}

// Timeout implements the Strategy interface.
func (p *PlumTree) Timeout(timer interface{}) {
	switch t := timer.(type) {
	case net.RepairTimeout:
		p.onRepairTimeout(t.ID)
	case net.AckTimeout:
		p.onAckTimeout(t)
	}
}

func (p *PlumTree) onRepairTimeout(id string) {
	if !p.armed[id] {
		return
	}

	pos := -1
	for i, m := range p.missing {
		if m.id == id {
			pos = i
			break
		}
	}
	if pos < 0 {
		// nobody left to ask; a later IHAVE re-arms
		delete(p.armed, id)
		return
	}

	m := p.missing[pos]
	p.missing = append(p.missing[:pos], p.missing[pos+1:]...)

	p.promote(m.peer)
	p.send(m.peer, &net.GossipMessage{
		Type:   net.Graft,
		ID:     id,
		Round:  m.round,
		Sender: p.self,
	})

	p.trans.Schedule(net.RepairTimeout{ID: id}, p.conf.repairRetry())
}

func (p *PlumTree) onAckTimeout(t net.AckTimeout) {
	if !p.clearAck(t.Peer, t.ID, t.Round) {
		return
	}
	delete(p.acks, t.Peer)

	p.logger.WithFields(logrus.Fields{
		"peer":   t.Peer,
		"msg_id": t.ID,
	}).Debug("Ack timeout")

	if p.onFailure != nil {
		p.onFailure(t.Peer)
	}
}

func (p *PlumTree) eagerPush(msg *net.GossipMessage) {
	for _, n := range p.eager.Slice() {
		if n == msg.Sender {
			continue
		}
		out := &net.GossipMessage{
			Type:   net.Gossip,
			Kind:   msg.Kind,
			Data:   msg.Data,
			ID:     msg.ID,
			Round:  msg.Round + 1,
			Sender: p.self,
		}
		p.expectAck(n, msg.ID, msg.Round+1, false)
		p.send(n, out)
	}
}

func (p *PlumTree) lazyPush(msg *net.GossipMessage) {
	for _, n := range p.lazy.Slice() {
		if n == msg.Sender {
			continue
		}
		out := &net.GossipMessage{
			Type:   net.IHave,
			ID:     msg.ID,
			Round:  msg.Round + 1,
			Sender: p.self,
		}
		p.expectAck(n, msg.ID, msg.Round+1, true)
		p.trans.Send(n, out, p.conf.lazyDelay())
	}
}

func (p *PlumTree) send(target int, msg *net.GossipMessage) {
	p.trans.Send(target, msg, p.conf.Lookahead)
}

func (p *PlumTree) sendAck(msg *net.GossipMessage) {
	p.send(msg.Sender, &net.GossipMessage{
		Type:   net.Ack,
		ID:     msg.ID,
		Round:  msg.Round,
		Sender: p.self,
	})
}

func (p *PlumTree) expectAck(peer int, id string, round int, lazy bool) {
	if !p.conf.Acks {
		return
	}
	p.acks[peer] = append(p.acks[peer], pendingAck{id: id, round: round})
	p.trans.Schedule(net.AckTimeout{Peer: peer, ID: id, Round: round}, p.conf.ackTimeout(lazy))
}

// clearAck removes one matching expectation and reports whether there was one.
func (p *PlumTree) clearAck(peer int, id string, round int) bool {
	pending := p.acks[peer]
	for i, a := range pending {
		if a.id == id && a.round == round {
			p.acks[peer] = append(pending[:i], pending[i+1:]...)
			return true
		}
	}
	return false
}

// promote makes peer an eager link, provided it is still a member of the
// view.
func (p *PlumTree) promote(peer int) {
	if peer == p.self {
		return
	}
	p.lazy.Remove(peer)
	if p.view.Contains(peer) {
		p.eager.Add(peer)
	}
}

// demote makes peer a lazy link, provided it is still a member of the view.
func (p *PlumTree) demote(peer int) {
	if peer == p.self {
		return
	}
	p.eager.Remove(peer)
	if p.view.Contains(peer) {
		p.lazy.Add(peer)
	}
}

func (p *PlumTree) purgeMissing(drop func(missingEntry) bool) {
	kept := p.missing[:0]
	for _, m := range p.missing {
		if !drop(m) {
			kept = append(kept, m)
		}
	}
	p.missing = kept
}

// SyncPeers implements the Strategy interface. Lazy links that are still in
// the view stay lazy, every other member becomes eager, and non-members are
// dropped.
func (p *PlumTree) SyncPeers(view []int) {
	members := peers.NewIDSet()
	for _, id := range view {
		if id != p.self {
			members.Add(id)
		}
	}

	lazy := peers.NewIDSet()
	for _, id := range p.lazy.IDs {
		if members.Contains(id) {
			lazy.Add(id)
		}
	}

	eager := peers.NewIDSet()
	for _, id := range p.eager.IDs {
		if members.Contains(id) && !lazy.Contains(id) {
			eager.Add(id)
		}
	}
	for _, id := range members.IDs {
		if !lazy.Contains(id) {
			eager.Add(id)
		}
	}

	p.eager, p.lazy = eager, lazy
}

// Evict implements the Strategy interface.
func (p *PlumTree) Evict(peer int) {
	p.eager.Remove(peer)
	p.lazy.Remove(peer)
	p.purgeMissing(func(m missingEntry) bool { return m.peer == peer })
	delete(p.acks, peer)
}

// Degree implements the Strategy interface.
func (p *PlumTree) Degree() int {
	return p.eager.Len() + p.lazy.Len()
}

// Has implements the Strategy interface.
func (p *PlumTree) Has(id string) bool {
	return p.cache.has(id)
}

// Stats implements the Strategy interface.
func (p *PlumTree) Stats() []report.MessageReport {
	return p.cache.stats()
}

// Eager returns the eager links, in the order they were added.
func (p *PlumTree) Eager() []int {
	return p.eager.Slice()
}

// Lazy returns the lazy links, in the order they were added.
func (p *PlumTree) Lazy() []int {
	return p.lazy.Slice()
}

// Reset implements the Strategy interface.
func (p *PlumTree) Reset() {
	p.eager = peers.NewIDSet()
	p.lazy = peers.NewIDSet()
	p.cache.reset()
	p.missing = []missingEntry{}
	p.armed = make(map[string]bool)
	p.acks = make(map[int][]pendingAck)
}
