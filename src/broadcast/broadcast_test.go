package broadcast

import (
	"testing"
	"time"

	"github.com/mosaicnetworks/blocksim/src/common"
	"github.com/mosaicnetworks/blocksim/src/net"
	"github.com/mosaicnetworks/blocksim/src/peers"
	"github.com/mosaicnetworks/blocksim/src/sim"
	"github.com/sirupsen/logrus"
)

type sent struct {
	target int
	msg    interface{}
	delay  time.Duration
}

// recordingTransport keeps every outgoing message and timer instead of
// scheduling them.
type recordingTransport struct {
	self   int
	sent   []sent
	timers []sent
}

func (r *recordingTransport) LocalAddr() int     { return r.self }
func (r *recordingTransport) Now() time.Duration { return 0 }

func (r *recordingTransport) Send(target int, msg interface{}, delay time.Duration) {
	r.sent = append(r.sent, sent{target, msg, delay})
}

func (r *recordingTransport) Schedule(msg interface{}, delay time.Duration) {
	r.timers = append(r.timers, sent{r.self, msg, delay})
}

func (r *recordingTransport) SendTo(addr sim.Address, msg interface{}, delay time.Duration) {
	r.sent = append(r.sent, sent{addr.ID, msg, delay})
}

func (r *recordingTransport) gossip(typ net.GossipType) []sent {
	res := []sent{}
	for _, s := range r.sent {
		if m, ok := s.msg.(*net.GossipMessage); ok && m.Type == typ {
			res = append(res, s)
		}
	}
	return res
}

func (r *recordingTransport) clear() {
	r.sent = nil
	r.timers = nil
}

type staticView struct {
	*peers.IDSet
}

func (v staticView) View() []int { return v.Slice() }

type delivered struct {
	kind net.PayloadKind
	id   string
}

func testConfig(acks bool) Config {
	return Config{
		Lookahead: 100 * time.Millisecond,
		LazyDelay: 1,
		Acks:      acks,
		AckFactor: 2.5,
	}
}

func newTestPlumTree(t *testing.T, acks bool, view ...int) (*PlumTree, *recordingTransport, *[]delivered, *[]int) {
	trans := &recordingTransport{self: 0}
	got := &[]delivered{}
	failed := &[]int{}
	p := NewPlumTree(trans,
		testConfig(acks),
		staticView{peers.NewIDSet(view...)},
		func(kind net.PayloadKind, id string, data []byte) {
			*got = append(*got, delivered{kind, id})
		},
		func(peer int) {
			*failed = append(*failed, peer)
		},
		common.NewTestEntry(t, logrus.DebugLevel))
	p.SyncPeers(view)
	return p, trans, got, failed
}

func gossipMsg(id string, round, sender int) *net.GossipMessage {
	return &net.GossipMessage{
		Type:   net.Gossip,
		Kind:   net.TransactionPayload,
		Data:   []byte("payload"),
		ID:     id,
		Round:  round,
		Sender: sender,
	}
}

func TestPlumTreeSyncPeers(t *testing.T) {
	p, _, _, _ := newTestPlumTree(t, false, 1, 2, 3)

	if p.Degree() != 3 || len(p.Lazy()) != 0 {
		t.Fatal("every member should start eager")
	}

	p.demote(2)
	p.SyncPeers([]int{0, 2, 3, 4})

	if len(p.Lazy()) != 1 || p.Lazy()[0] != 2 {
		t.Fatalf("2 should stay lazy, got %v", p.Lazy())
	}
	eager := peers.NewIDSet(p.Eager()...)
	if eager.Len() != 2 || !eager.Contains(3) || !eager.Contains(4) {
		t.Fatalf("3 and 4 should be eager, got %v", p.Eager())
	}
	if eager.Contains(0) || eager.Contains(1) {
		t.Fatal("self and non-members must not be peers")
	}
}

func TestPlumTreeFirstGossip(t *testing.T) {
	p, trans, got, _ := newTestPlumTree(t, true, 1, 2, 3)
	p.demote(3)

	p.Deliver(gossipMsg("T-1", 2, 1))

	if len(*got) != 1 || (*got)[0].id != "T-1" {
		t.Fatal("payload should be handed to the node once")
	}
	if !p.Has("T-1") {
		t.Fatal("payload should be held")
	}

	acks := trans.gossip(net.Ack)
	if len(acks) != 1 || acks[0].target != 1 || acks[0].msg.(*net.GossipMessage).Round != 2 {
		t.Fatalf("first GOSSIP should be acknowledged, got %v", acks)
	}

	gossips := trans.gossip(net.Gossip)
	if len(gossips) != 1 || gossips[0].target != 2 {
		t.Fatalf("eager push should go to 2 only, got %v", gossips)
	}
	if gossips[0].msg.(*net.GossipMessage).Round != 3 {
		t.Fatal("eager push should increment the round")
	}

	ihaves := trans.gossip(net.IHave)
	if len(ihaves) != 1 || ihaves[0].target != 3 {
		t.Fatalf("lazy push should go to 3, got %v", ihaves)
	}

	// one ack timer per push
	if len(trans.timers) != 2 {
		t.Fatalf("expected 2 ack timers, got %d", len(trans.timers))
	}
	if trans.timers[0].delay != 250*time.Millisecond {
		t.Fatalf("ack timeout should be 2.5 lookahead, got %v", trans.timers[0].delay)
	}

	stats := p.Stats()
	if len(stats) != 1 || stats[0].Gossip != 1 || stats[0].Round != 2 {
		t.Fatalf("unexpected stats %v", stats)
	}
}

func TestPlumTreeDuplicateGossipPrunes(t *testing.T) {
	p, trans, got, _ := newTestPlumTree(t, false, 1, 2)

	p.Deliver(gossipMsg("T-1", 1, 1))
	trans.clear()
	p.Deliver(gossipMsg("T-1", 1, 2))

	if len(*got) != 1 {
		t.Fatal("duplicates must not reach the node")
	}
	prunes := trans.gossip(net.Prune)
	if len(prunes) != 1 || prunes[0].target != 2 {
		t.Fatalf("duplicate should be answered with PRUNE, got %v", trans.sent)
	}
	if len(p.Lazy()) != 1 || p.Lazy()[0] != 2 {
		t.Fatal("sender of the duplicate should become lazy")
	}
	if p.Stats()[0].Gossip != 2 {
		t.Fatal("both deliveries should be counted")
	}
}

func TestPlumTreePruneDemotes(t *testing.T) {
	p, _, _, _ := newTestPlumTree(t, false, 1, 2)
	p.Deliver(&net.GossipMessage{Type: net.Prune, ID: "x", Sender: 1})
	if len(p.Lazy()) != 1 || p.Lazy()[0] != 1 {
		t.Fatal("PRUNE should demote the sender")
	}

	// non-members are never added
	p.Deliver(&net.GossipMessage{Type: net.Prune, ID: "x", Sender: 9})
	if p.Degree() != 2 {
		t.Fatal("a PRUNE from a non-member must not add a link")
	}
}

func TestPlumTreeRepair(t *testing.T) {
	p, trans, _, _ := newTestPlumTree(t, false, 1, 2, 3)
	p.demote(2)
	p.demote(3)

	ihave := func(sender, round int) {
		p.Deliver(&net.GossipMessage{Type: net.IHave, ID: "B-1", Round: round, Sender: sender})
	}
	ihave(2, 4)
	ihave(3, 5)

	if len(trans.timers) != 1 {
		t.Fatalf("a single repair timer should be armed, got %d", len(trans.timers))
	}
	if trans.timers[0].delay != 100*time.Millisecond {
		t.Fatal("first repair timer should be one lookahead")
	}
	trans.clear()

	p.Timeout(net.RepairTimeout{ID: "B-1"})
	grafts := trans.gossip(net.Graft)
	if len(grafts) != 1 || grafts[0].target != 2 || grafts[0].msg.(*net.GossipMessage).Round != 4 {
		t.Fatalf("earliest advertiser should be grafted, got %v", grafts)
	}
	if len(trans.timers) != 1 || trans.timers[0].delay != 50*time.Millisecond {
		t.Fatal("repair should be retried after half a lookahead")
	}
	if !peers.NewIDSet(p.Eager()...).Contains(2) {
		t.Fatal("grafted peer should be eager")
	}
	trans.clear()

	p.Timeout(net.RepairTimeout{ID: "B-1"})
	grafts = trans.gossip(net.Graft)
	if len(grafts) != 1 || grafts[0].target != 3 {
		t.Fatalf("next advertiser should be grafted, got %v", grafts)
	}
	trans.clear()

	// nobody left: the id is abandoned
	p.Timeout(net.RepairTimeout{ID: "B-1"})
	if len(trans.sent) != 0 || len(trans.timers) != 0 {
		t.Fatal("an abandoned id should not send or re-arm")
	}

	// a later IHAVE re-arms
	ihave(1, 6)
	if len(trans.timers) != 1 {
		t.Fatal("a new IHAVE should re-arm an abandoned id")
	}
}

func TestPlumTreeRepairCancelledByGossip(t *testing.T) {
	p, trans, _, _ := newTestPlumTree(t, false, 1, 2)
	p.demote(2)

	p.Deliver(&net.GossipMessage{Type: net.IHave, ID: "B-1", Round: 1, Sender: 2})
	p.Deliver(gossipMsg("B-1", 1, 1))
	trans.clear()

	p.Timeout(net.RepairTimeout{ID: "B-1"})
	if len(trans.gossip(net.Graft)) != 0 {
		t.Fatal("a stale repair timer must not graft")
	}
}

func TestPlumTreeGraft(t *testing.T) {
	p, trans, _, _ := newTestPlumTree(t, false, 1, 2)
	p.demote(2)
	p.Broadcast(net.BlockPayload, "B-1", []byte("block"))
	trans.clear()

	p.Deliver(&net.GossipMessage{Type: net.Graft, ID: "B-1", Round: 3, Sender: 2})

	gossips := trans.gossip(net.Gossip)
	if len(gossips) != 1 || gossips[0].target != 2 {
		t.Fatalf("GRAFT for a held id should resend it, got %v", trans.sent)
	}
	m := gossips[0].msg.(*net.GossipMessage)
	if m.Round != 3 || m.Kind != net.BlockPayload || string(m.Data) != "block" {
		t.Fatalf("unexpected resend %+v", m)
	}
	if len(p.Lazy()) != 0 || p.Degree() != 2 {
		t.Fatal("grafting peer should become eager")
	}
	if p.Stats()[0].Graft != 1 {
		t.Fatal("GRAFT should be counted")
	}
}

func TestPlumTreeAckTimeout(t *testing.T) {
	p, trans, _, failed := newTestPlumTree(t, true, 1, 2)

	p.Broadcast(net.TransactionPayload, "T-1", []byte("tx"))
	if len(trans.timers) != 2 {
		t.Fatalf("expected 2 ack timers, got %d", len(trans.timers))
	}

	// 1 acknowledges, 2 does not
	p.Deliver(&net.GossipMessage{Type: net.Ack, ID: "T-1", Round: 1, Sender: 1})

	for _, timer := range trans.timers {
		p.Timeout(timer.msg)
	}
	if len(*failed) != 1 || (*failed)[0] != 2 {
		t.Fatalf("only 2 should be reported failed, got %v", *failed)
	}

	// firing again is harmless
	p.Timeout(trans.timers[1].msg)
	if len(*failed) != 1 {
		t.Fatal("a cleared expectation must not fire twice")
	}
}

func TestPlumTreeEvict(t *testing.T) {
	p, trans, _, _ := newTestPlumTree(t, false, 1, 2)
	p.Deliver(&net.GossipMessage{Type: net.IHave, ID: "B-1", Round: 1, Sender: 2})
	p.Evict(2)
	trans.clear()

	if p.Degree() != 1 {
		t.Fatal("evicted peer should be gone")
	}
	p.Timeout(net.RepairTimeout{ID: "B-1"})
	if len(trans.gossip(net.Graft)) != 0 {
		t.Fatal("evicted advertisers must not be grafted")
	}
}

func TestPlumTreeReset(t *testing.T) {
	p, _, _, _ := newTestPlumTree(t, false, 1, 2)
	p.Broadcast(net.BlockPayload, "B-1", nil)
	p.Reset()
	if p.Has("B-1") || p.Degree() != 0 || len(p.Stats()) != 0 {
		t.Fatal("reset should clear everything")
	}
}

func TestFlood(t *testing.T) {
	trans := &recordingTransport{self: 0}
	got := []delivered{}
	conf := testConfig(false)
	conf.MaxRounds = 3
	f := NewFlood(trans, conf, staticView{peers.NewIDSet(1, 2)},
		func(kind net.PayloadKind, id string, data []byte) {
			got = append(got, delivered{kind, id})
		},
		common.NewTestEntry(t, logrus.DebugLevel))

	// INV for an unknown id is answered with REQUEST
	f.Deliver(&net.GossipMessage{Type: net.Inv, ID: "T-1", Sender: 1})
	reqs := trans.gossip(net.Request)
	if len(reqs) != 1 || reqs[0].target != 1 {
		t.Fatalf("expected a REQUEST to 1, got %v", trans.sent)
	}
	trans.clear()

	// first GOSSIP is stored, delivered and announced
	f.Deliver(gossipMsg("T-1", 2, 1))
	if len(got) != 1 || !f.Has("T-1") {
		t.Fatal("first GOSSIP should be delivered")
	}
	if len(trans.gossip(net.Inv)) != 2 {
		t.Fatalf("INV should go to every neighbor, got %v", trans.sent)
	}
	trans.clear()

	// REQUEST for a held id relays it with round+1
	f.Deliver(&net.GossipMessage{Type: net.Request, ID: "T-1", Sender: 2})
	gossips := trans.gossip(net.Gossip)
	if len(gossips) != 1 || gossips[0].msg.(*net.GossipMessage).Round != 3 {
		t.Fatalf("expected a relay with round 3, got %v", trans.sent)
	}
	trans.clear()

	// duplicates and INV for held ids are only counted
	f.Deliver(gossipMsg("T-1", 2, 2))
	f.Deliver(&net.GossipMessage{Type: net.Inv, ID: "T-1", Sender: 2})
	if len(trans.sent) != 0 || len(got) != 1 {
		t.Fatal("nothing should happen for a held id")
	}

	// the round cap stops relays
	f.Deliver(gossipMsg("T-2", 3, 1))
	if f.Has("T-2") {
		t.Fatal("payloads at the round cap must not be stored")
	}

	stats := f.Stats()
	if len(stats) != 1 {
		t.Fatalf("only held ids are reported, got %v", stats)
	}
	s := stats[0]
	if s.Gossip != 2 || s.IHave != 2 || s.Graft != 1 || s.Round != 2 {
		t.Fatalf("unexpected counters %+v", s)
	}
	if f.Degree() != 2 {
		t.Fatal("flood degree is the view size")
	}
}
