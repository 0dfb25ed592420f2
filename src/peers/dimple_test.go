package peers

import (
	"math/rand"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/mosaicnetworks/blocksim/src/common"
	"github.com/mosaicnetworks/blocksim/src/net"
	"github.com/sirupsen/logrus"
)

// n = 10: maxPartialView = 2 + 12 = 14, shuffleSize = 1.
// n = 100: maxPartialView = 3 + 18 = 21, shuffleSize = 2.
func newTestDimple(t *testing.T, nodes, self int, view ...int) (*Dimple, *fakeTransport, *recordingListener) {
	conf := testConf(t, nodes)
	trans := &fakeTransport{self: self}
	l := &recordingListener{}
	d := NewDimple(trans, conf, rand.New(rand.NewSource(1)), l, common.NewTestEntry(t, logrus.DebugLevel))
	for _, id := range view {
		d.AddCandidate(id)
	}
	trans.clear()
	l.views = nil
	return d, trans, l
}

func fullView(self, size int) []int {
	res := []int{}
	for id := 1; len(res) < size; id++ {
		if id != self {
			res = append(res, id)
		}
	}
	return res
}

func TestDimpleSeedStart(t *testing.T) {
	d, trans, _ := newTestDimple(t, 10, 1)

	d.Start()

	view := d.View()
	sort.Ints(view)
	if !reflect.DeepEqual(view, []int{0, 2}) {
		t.Fatalf("seed 1 should start with the other seeds, got %v", view)
	}
	for _, e := range d.Entries() {
		if !reflect.DeepEqual(e.Visited, []int{e.ID, 1}) {
			t.Fatalf("seed entry %d has path %v", e.ID, e.Visited)
		}
	}
	if len(trans.timers) != 1 || trans.timers[0].delay != 2*time.Second {
		t.Fatalf("seed 1 should shuffle after 2s, got %v", trans.timers)
	}
	if len(trans.sent) != 0 {
		t.Fatalf("seeds do not join, got %v", trans.sent)
	}
}

func TestDimpleJoin(t *testing.T) {
	d, trans, _ := newTestDimple(t, 10, 5)

	d.Start()

	joins := trans.dimple(net.Join)
	if len(joins) != 1 || joins[0].target != 2 || joins[0].delay != 5*time.Second {
		t.Fatalf("node 5 should join through seed 2 after 5s, got %v", trans.sent)
	}
	if len(d.View()) != 0 {
		t.Fatal("a joiner starts with an empty view")
	}

	seed, strans, _ := newTestDimple(t, 10, 2)
	seed.Start()
	strans.clear()

	seed.Process(&net.DimpleMessage{Type: net.Join, Sender: 5})

	resp := strans.dimple(net.JoinResponse)
	if len(resp) != 1 || resp[0].target != 5 {
		t.Fatalf("expected a JOIN_RESPONSE to 5, got %v", strans.sent)
	}
	candidates := resp[0].msg.(*net.DimpleMessage).Candidates
	sort.Ints(candidates)
	if !reflect.DeepEqual(candidates, []int{0, 1}) {
		t.Fatalf("candidates should be the seeds' predecessors, got %v", candidates)
	}

	d.Process(&net.DimpleMessage{
		Type:       net.JoinResponse,
		Sender:     2,
		Candidates: []int{0, 1, 5},
	})

	inits := trans.dimple(net.ReinforcementInitiate)
	if len(inits) != 2 {
		t.Fatalf("expected 2 REINFORCEMENT_INITIATE, got %v", trans.sent)
	}
	for _, o := range inits {
		if o.target == 5 {
			t.Fatal("a node never reinforces with itself")
		}
	}

	var timeouts, rounds int
	for _, o := range trans.timers {
		switch p := o.msg.(type) {
		case net.ResponseTimeout:
			timeouts++
		case net.ViewRound:
			rounds++
			if o.delay != 500*time.Millisecond {
				t.Fatalf("shuffling should start after 5 lookaheads, got %v", o.delay)
			}
		default:
			t.Fatalf("unexpected timer %#v", p)
		}
	}
	if timeouts != 2 || rounds != 1 {
		t.Fatalf("expected 2 response timeouts and 1 round, got %d and %d", timeouts, rounds)
	}
}

func TestDimpleReinforcementFreeSpace(t *testing.T) {
	q, qtrans, _ := newTestDimple(t, 10, 3, 1, 2)

	q.Process(&net.DimpleMessage{Type: net.ReinforcementInitiate, Sender: 7, Initiator: 7})

	if !q.Contains(7) {
		t.Fatal("7 should have been inserted into free space")
	}
	resp := qtrans.dimple(net.ReinforcementResponse)
	if len(resp) != 1 || resp[0].target != 7 {
		t.Fatalf("expected one REINFORCEMENT_RESPONSE to 7, got %v", qtrans.sent)
	}
	m := resp[0].msg.(*net.DimpleMessage)
	if !m.Accepted || m.Evicted != nil {
		t.Fatalf("expected an acceptance without eviction, got %+v", m)
	}

	p, _, _ := newTestDimple(t, 10, 7)
	p.Process(m)
	if !reflect.DeepEqual(p.View(), []int{3}) {
		t.Fatalf("an accepted joiner should adopt its introducer, got %v", p.View())
	}

	// known ids are ignored
	qtrans.clear()
	q.Process(&net.DimpleMessage{Type: net.ReinforcementInitiate, Sender: 1, Initiator: 1})
	m = qtrans.dimple(net.ReinforcementResponse)[0].msg.(*net.DimpleMessage)
	if m.Accepted || len(q.View()) != 3 {
		t.Fatalf("a known initiator should be ignored, got %+v and view %v", m, q.View())
	}
}

func TestDimpleReinforcementFullView(t *testing.T) {
	q, qtrans, _ := newTestDimple(t, 10, 0, fullView(0, 14)...)

	q.Process(&net.DimpleMessage{Type: net.ReinforcementInitiate, Sender: 20, Initiator: 20})

	if len(q.View()) != q.MaxView() || !q.Contains(20) {
		t.Fatalf("20 should replace an entry, got %v", q.View())
	}
	m := qtrans.dimple(net.ReinforcementResponse)[0].msg.(*net.DimpleMessage)
	if m.Evicted == nil || q.Contains(m.Evicted.ID) {
		t.Fatalf("the displaced entry should be returned, got %+v", m)
	}

	// the initiator is full too: the returned entry replaces the introducer
	p, _, _ := newTestDimple(t, 10, 20, fullView(20, 14)...)
	p.Process(&net.DimpleMessage{
		Type:     net.ReinforcementResponse,
		Sender:   3,
		Evicted:  &net.PartialViewEntry{ID: 30, Visited: []int{30, 0}},
		Accepted: true,
	})
	if p.Contains(3) || !p.Contains(30) || len(p.View()) != p.MaxView() {
		t.Fatalf("30 should have replaced 3, got %v", p.View())
	}
}

func TestDimpleExchange(t *testing.T) {
	d, _, l := newTestDimple(t, 10, 0, fullView(0, 14)...)

	received := []net.PartialViewEntry{
		{ID: 20, Visited: []int{20, 9}},
		{ID: 21, Visited: []int{21}},
		{ID: 22, Visited: []int{22}},
		{ID: 2, Visited: []int{2}},
		{ID: 0, Visited: []int{0}},
	}
	sent := []net.PartialViewEntry{{ID: 5}, {ID: 6}}

	d.exchange(received, sent)

	view := d.View()
	if len(view) != d.MaxView() {
		t.Fatalf("view grew beyond its bound: %v", view)
	}
	if d.Contains(5) || d.Contains(6) || !d.Contains(20) || !d.Contains(21) {
		t.Fatalf("20 and 21 should replace 5 and 6, got %v", view)
	}
	if d.Contains(22) {
		t.Fatal("only entries that were sent may be replaced")
	}
	for _, e := range d.Entries() {
		if e.ID == 20 && !reflect.DeepEqual(e.Visited, []int{20, 9, 0}) {
			t.Fatalf("path should be extended with the receiver, got %v", e.Visited)
		}
	}
	if len(l.views) != 1 {
		t.Fatalf("expected one notification, got %d", len(l.views))
	}

	// the caller's entries are not aliased
	received[0].Visited[0] = 99
	for _, e := range d.Entries() {
		if e.ID == 20 && e.Visited[0] != 20 {
			t.Fatal("received entries must be copied")
		}
	}
}

func TestDimpleShuffle(t *testing.T) {
	d, trans, _ := newTestDimple(t, 100, 0, 1, 2, 3)

	d.Tick(net.ViewRound{})

	reqs := trans.dimple(net.ViewExchangeRequest)
	if len(reqs) != 1 || reqs[0].target != 1 {
		t.Fatalf("the oldest entry (1) should be the shuffle target, got %v", trans.sent)
	}
	entries := reqs[0].msg.(*net.DimpleMessage).Entries
	if len(entries) != 2 || entries[1].ID != 0 {
		t.Fatalf("expected one random entry plus self, got %v", entries)
	}
	if entries[0].ID == 1 {
		t.Fatal("the target is never part of the subset")
	}
	for _, e := range d.Entries() {
		if e.Age != 1 {
			t.Fatalf("every entry should have aged, got %+v", e)
		}
	}

	var reinforcements, timeouts, rounds int
	for _, o := range trans.timers {
		switch p := o.msg.(type) {
		case *net.DimpleMessage:
			if p.Type == net.Reinforcement {
				reinforcements++
			}
		case net.ResponseTimeout:
			timeouts++
		case net.ViewRound:
			rounds++
		}
	}
	if reinforcements != 2 || timeouts != 1 || rounds != 1 {
		t.Fatalf("expected 2 reinforcements, 1 timeout, 1 round; got %d, %d, %d",
			reinforcements, timeouts, rounds)
	}
}

func TestDimpleResponseTimeout(t *testing.T) {
	d, trans, l := newTestDimple(t, 100, 0, 1, 2, 3)

	d.Tick(net.ViewRound{})
	d.Process(&net.DimpleMessage{
		Type:    net.ViewExchangeResponse,
		Sender:  1,
		Entries: []net.PartialViewEntry{},
		Sent:    reqEntries(trans),
	})
	d.Tick(net.ResponseTimeout{Peer: 1})
	if !d.Contains(1) {
		t.Fatal("a peer that answered in time should not be evicted")
	}

	d.Tick(net.ViewRound{})
	d.Tick(net.ResponseTimeout{Peer: 1})
	if d.Contains(1) {
		t.Fatal("a silent peer should be evicted")
	}
	if !reflect.DeepEqual(l.down, []int{1}) {
		t.Fatalf("expected PeerDown(1), got %v", l.down)
	}
}

func reqEntries(trans *fakeTransport) []net.PartialViewEntry {
	reqs := trans.dimple(net.ViewExchangeRequest)
	return reqs[len(reqs)-1].msg.(*net.DimpleMessage).Entries
}

func TestDimpleViewBound(t *testing.T) {
	n := 100
	bound := testConf(t, n).MaxPartialView()
	var nodes []*harnessNode

	nodes = runMembership(t, n, 150*time.Second,
		func(trans net.Transport, rng *rand.Rand, l Listener, logger *logrus.Entry) Membership {
			self := trans.LocalAddr()
			l.(*harnessNode).check = func(view []int) {
				if len(view) > bound {
					t.Fatalf("node %d view %v exceeds %d", self, view, bound)
				}
				checkView(t, self, n, view)
			}
			return NewDimple(trans, testConf(t, n), rng, l, logger)
		})

	connected := 0
	for i, h := range nodes {
		checkView(t, i, n, h.m.View())
		if len(h.m.View()) > 0 {
			connected++
		}
	}
	if connected < n*9/10 {
		t.Fatalf("only %d of %d nodes have a non-empty view", connected, n)
	}
}
