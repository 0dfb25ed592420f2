package peers

import (
	"math/rand"
	"time"

	"github.com/mosaicnetworks/blocksim/src/config"
	"github.com/mosaicnetworks/blocksim/src/net"
	"github.com/sirupsen/logrus"
)

// joinSpread is the window over which the nodes send their JOIN requests.
const joinSpread = 10 * time.Second

// Dimple is a shuffle-based peer-sampling protocol with reinforcement. Every
// entry of the partial view carries an age and the path it travelled. A
// periodic shuffle swaps a few entries with the oldest neighbor, and
// reinforcement rounds ask the oldest neighbor to point back at the node.
// Every request expects a response within the configured timeout; a silent
// peer is evicted.
type Dimple struct {
	self  int
	nodes int
	seeds int
	trans net.Transport
	rng   *rand.Rand

	maxView     int
	shuffleSize int
	lookahead   time.Duration
	shuffleTime time.Duration
	timeout     time.Duration

	view    []net.PartialViewEntry
	pending map[int]int

	listener Listener
	logger   *logrus.Entry
}

// NewDimple ...
func NewDimple(trans net.Transport,
	conf *config.Config,
	rng *rand.Rand,
	listener Listener,
	logger *logrus.Entry) *Dimple {

	seeds := conf.Seeds
	if seeds > conf.Nodes {
		seeds = conf.Nodes
	}
	if seeds < 1 {
		seeds = 1
	}

	return &Dimple{
		self:        trans.LocalAddr(),
		nodes:       conf.Nodes,
		seeds:       seeds,
		trans:       trans,
		rng:         rng,
		maxView:     conf.MaxPartialView(),
		shuffleSize: conf.ShuffleSize(),
		lookahead:   conf.Lookahead,
		shuffleTime: conf.ShuffleTime,
		timeout:     conf.DimpleTimeout,
		view:        []net.PartialViewEntry{},
		pending:     make(map[int]int),
		listener:    listener,
		logger:      logger,
	}
}

// Start implements the Membership interface. Seeds know each other and start
// shuffling right away; every other node joins through a seed. Joins are
// staggered by id.
func (d *Dimple) Start() {
	stagger := time.Duration(float64(joinSpread) / float64(d.nodes) * float64(d.self))

	if d.self < d.seeds {
		others := []int{}
		for i := 0; i < d.seeds; i++ {
			if i != d.self {
				others = append(others, i)
			}
		}
		for _, p := range Sample(d.rng, others, len(others)) {
			d.AddCandidate(p)
		}
		d.trans.Schedule(net.ViewRound{}, stagger+time.Second)
		return
	}

	d.trans.Send(d.Contact(), &net.DimpleMessage{
		Type:   net.Join,
		Sender: d.self,
	}, stagger)
}

// Contact is the seed a node joins through.
func (d *Dimple) Contact() int {
	return d.self % d.seeds
}

// Process implements the Membership interface.
func (d *Dimple) Process(msg net.MembershipMessage) {
	m, ok := msg.(*net.DimpleMessage)
	if !ok {
		d.logger.WithField("from", msg.From()).Debug("DIMPLE ignoring message")
		return
	}

	switch m.Type {
	case net.Join:
		d.onJoin(m)
	case net.JoinResponse:
		d.onJoinResponse(m)
	case net.ViewExchangeRequest:
		own := d.subset(nil, d.shuffleSize)
		d.exchange(m.Entries, own)
		d.trans.Send(m.Sender, &net.DimpleMessage{
			Type:    net.ViewExchangeResponse,
			Sender:  d.self,
			Entries: net.CopyEntries(own),
			Sent:    net.CopyEntries(m.Entries),
		}, d.lookahead)
	case net.ViewExchangeResponse:
		d.clearPending(m.Sender)
		d.exchange(m.Entries, m.Sent)
	case net.Reinforcement:
		if q, ok := d.oldest(); ok {
			d.request(q.ID, &net.DimpleMessage{
				Type:      net.ReinforcementInitiate,
				Sender:    d.self,
				Initiator: d.self,
			})
		}
	case net.ReinforcementInitiate:
		evicted, accepted := d.reinforceInitiate(m.Initiator)
		d.trans.Send(m.Sender, &net.DimpleMessage{
			Type:      net.ReinforcementResponse,
			Sender:    d.self,
			Initiator: m.Initiator,
			Evicted:   evicted,
			Accepted:  accepted,
		}, d.lookahead)
	case net.ReinforcementResponse:
		d.clearPending(m.Sender)
		d.reinforceResponse(m.Sender, m.Evicted, m.Accepted)
	}
}

// onJoin answers with the node each entry came through, or the entry itself
// when it has no history.
func (d *Dimple) onJoin(m *net.DimpleMessage) {
	candidates := make([]int, 0, len(d.view))
	for _, e := range d.view {
		if len(e.Visited) >= 2 {
			candidates = append(candidates, e.Visited[len(e.Visited)-2])
		} else {
			candidates = append(candidates, e.ID)
		}
	}
	d.trans.Send(m.Sender, &net.DimpleMessage{
		Type:       net.JoinResponse,
		Sender:     d.self,
		Candidates: candidates,
	}, d.lookahead)
}

func (d *Dimple) onJoinResponse(m *net.DimpleMessage) {
	candidates := make([]int, len(m.Candidates))
	copy(candidates, m.Candidates)
	d.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	for _, c := range candidates {
		if c == d.self {
			continue
		}
		d.request(c, &net.DimpleMessage{
			Type:      net.ReinforcementInitiate,
			Sender:    d.self,
			Initiator: d.self,
		})
	}

	d.trans.Schedule(net.ViewRound{}, d.lookahead*time.Duration(len(candidates)+2))
}

// Tick implements the Membership interface.
func (d *Dimple) Tick(timer interface{}) {
	switch t := timer.(type) {
	case net.ViewRound:
		d.shuffle()
		d.trans.Schedule(net.ViewRound{}, d.shuffleTime)
	case net.ResponseTimeout:
		if d.pending[t.Peer] == 0 {
			return
		}
		d.clearPending(t.Peer)
		d.logger.WithField("peer", t.Peer).Debug("DIMPLE response timeout")
		d.Evict(t.Peer)
	}
}

// shuffle ages the view and exchanges a random subset, plus the node itself,
// with the oldest neighbor. shuffleSize reinforcement rounds run alongside.
func (d *Dimple) shuffle() {
	if len(d.view) == 0 {
		return
	}

	for i := range d.view {
		d.view[i].Age++
	}

	q, _ := d.oldest()
	subset := d.subset(&q.ID, d.shuffleSize-1)
	subset = append(subset, net.PartialViewEntry{
		ID:      d.self,
		Age:     0,
		Visited: []int{d.self},
	})

	d.request(q.ID, &net.DimpleMessage{
		Type:    net.ViewExchangeRequest,
		Sender:  d.self,
		Entries: subset,
	})

	for i := 0; i < d.shuffleSize; i++ {
		d.trans.Schedule(&net.DimpleMessage{
			Type:   net.Reinforcement,
			Sender: d.self,
		}, d.lookahead)
	}
}

// request sends msg to peer and arms a response timeout for it.
func (d *Dimple) request(peer int, msg *net.DimpleMessage) {
	d.pending[peer]++
	d.trans.Schedule(net.ResponseTimeout{Peer: peer}, d.timeout)
	d.trans.Send(peer, msg, d.lookahead)
}

func (d *Dimple) clearPending(peer int) {
	if d.pending[peer] <= 1 {
		delete(d.pending, peer)
		return
	}
	d.pending[peer]--
}

// exchange merges received entries into the view. Known ids and the node
// itself are skipped. While there is room entries are appended; after that
// each one replaces an entry that was part of sent, every such entry being
// replaced at most once.
func (d *Dimple) exchange(received, sent []net.PartialViewEntry) {
	replaceable := NewIDSet()
	for _, e := range sent {
		replaceable.Add(e.ID)
	}

	changed := false
	for _, r := range received {
		if r.ID == d.self || d.index(r.ID) >= 0 {
			continue
		}

		visited := make([]int, len(r.Visited), len(r.Visited)+1)
		copy(visited, r.Visited)
		entry := net.PartialViewEntry{
			ID:      r.ID,
			Age:     0,
			Visited: append(visited, d.self),
		}

		if len(d.view) < d.maxView {
			d.view = append(d.view, entry)
			changed = true
			continue
		}

		for i, e := range d.view {
			if replaceable.Remove(e.ID) {
				d.view[i] = entry
				changed = true
				break
			}
		}
	}

	if changed {
		d.listener.ViewChanged(d.View())
	}
}

// reinforceInitiate inserts id into the view. When the view is full a random
// entry makes room and is returned.
func (d *Dimple) reinforceInitiate(id int) (*net.PartialViewEntry, bool) {
	if id == d.self || d.index(id) >= 0 {
		return nil, false
	}

	entry := net.PartialViewEntry{
		ID:      id,
		Age:     0,
		Visited: []int{id, d.self},
	}

	if len(d.view) < d.maxView {
		d.view = append(d.view, entry)
		d.listener.ViewChanged(d.View())
		return nil, true
	}

	i := d.rng.Intn(len(d.view))
	evicted := d.view[i].Copy()
	d.view[i] = entry
	d.listener.ViewChanged(d.View())
	return &evicted, true
}

// reinforceResponse takes in the entry q gave up for us. It goes into free
// space if there is some, otherwise it replaces q, whose link now points the
// other way. A joiner that was accepted into free space adopts q.
func (d *Dimple) reinforceResponse(q int, evicted *net.PartialViewEntry, accepted bool) {
	if evicted == nil {
		if accepted {
			d.AddCandidate(q)
		}
		return
	}
	if evicted.ID == d.self || d.index(evicted.ID) >= 0 {
		return
	}

	entry := evicted.Copy()
	if len(d.view) < d.maxView {
		d.view = append(d.view, entry)
		d.listener.ViewChanged(d.View())
		return
	}
	if i := d.index(q); i >= 0 {
		d.view[i] = entry
		d.listener.ViewChanged(d.View())
	}
}

// oldest returns the entry with the highest age, the earliest one on ties.
func (d *Dimple) oldest() (net.PartialViewEntry, bool) {
	if len(d.view) == 0 {
		return net.PartialViewEntry{}, false
	}
	best := 0
	for i, e := range d.view {
		if e.Age > d.view[best].Age {
			best = i
		}
	}
	return d.view[best], true
}

// subset returns copies of up to k random entries, leaving out exclude.
func (d *Dimple) subset(exclude *int, k int) []net.PartialViewEntry {
	eligible := []int{}
	for i, e := range d.view {
		if exclude == nil || e.ID != *exclude {
			eligible = append(eligible, i)
		}
	}
	res := []net.PartialViewEntry{}
	for _, i := range Sample(d.rng, eligible, k) {
		res = append(res, d.view[i].Copy())
	}
	return res
}

func (d *Dimple) index(id int) int {
	for i, e := range d.view {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// AddCandidate implements the Membership interface. The id is inserted as a
// direct neighbor when the view has room.
func (d *Dimple) AddCandidate(id int) {
	if id == d.self || d.index(id) >= 0 || len(d.view) >= d.maxView {
		return
	}
	d.view = append(d.view, net.PartialViewEntry{
		ID:      id,
		Age:     0,
		Visited: []int{id, d.self},
	})
	d.listener.ViewChanged(d.View())
}

// Evict implements the Membership interface.
func (d *Dimple) Evict(id int) {
	delete(d.pending, id)
	i := d.index(id)
	if i < 0 {
		return
	}
	d.view = append(d.view[:i], d.view[i+1:]...)
	d.listener.PeerDown(id)
	d.listener.ViewChanged(d.View())
}

// Entries returns a deep copy of the partial view.
func (d *Dimple) Entries() []net.PartialViewEntry {
	return net.CopyEntries(d.view)
}

// MaxView is the partial view bound.
func (d *Dimple) MaxView() int {
	return d.maxView
}

// View implements the Membership interface.
func (d *Dimple) View() []int {
	res := make([]int, len(d.view))
	for i, e := range d.view {
		res[i] = e.ID
	}
	return res
}

// Contains implements the Membership interface.
func (d *Dimple) Contains(id int) bool {
	return d.index(id) >= 0
}

// Reset implements the Membership interface.
func (d *Dimple) Reset() {
	d.view = []net.PartialViewEntry{}
	d.pending = make(map[int]int)
}
