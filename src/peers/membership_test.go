package peers

import (
	"math/rand"
	"testing"
	"time"

	"github.com/mosaicnetworks/blocksim/src/common"
	"github.com/mosaicnetworks/blocksim/src/config"
	"github.com/mosaicnetworks/blocksim/src/net"
	"github.com/mosaicnetworks/blocksim/src/sim"
	"github.com/sirupsen/logrus"
)

type outgoing struct {
	target int
	msg    interface{}
	delay  time.Duration
}

// fakeTransport records what a membership sends instead of scheduling it.
type fakeTransport struct {
	self   int
	now    time.Duration
	sent   []outgoing
	timers []outgoing
}

func (f *fakeTransport) LocalAddr() int     { return f.self }
func (f *fakeTransport) Now() time.Duration { return f.now }

func (f *fakeTransport) Send(target int, msg interface{}, delay time.Duration) {
	f.sent = append(f.sent, outgoing{target, msg, delay})
}

func (f *fakeTransport) Schedule(msg interface{}, delay time.Duration) {
	f.timers = append(f.timers, outgoing{f.self, msg, delay})
}

func (f *fakeTransport) SendTo(addr sim.Address, msg interface{}, delay time.Duration) {
	f.sent = append(f.sent, outgoing{addr.ID, msg, delay})
}

func (f *fakeTransport) clear() {
	f.sent = nil
	f.timers = nil
}

func (f *fakeTransport) brahms(t net.BrahmsType) []outgoing {
	res := []outgoing{}
	for _, o := range f.sent {
		if m, ok := o.msg.(*net.BrahmsMessage); ok && m.Type == t {
			res = append(res, o)
		}
	}
	return res
}

func (f *fakeTransport) dimple(t net.DimpleType) []outgoing {
	res := []outgoing{}
	for _, o := range f.sent {
		if m, ok := o.msg.(*net.DimpleMessage); ok && m.Type == t {
			res = append(res, o)
		}
	}
	return res
}

// recordingListener keeps every notification and optionally checks each new
// view.
type recordingListener struct {
	views [][]int
	down  []int
	check func(view []int)
}

func (r *recordingListener) ViewChanged(view []int) {
	r.views = append(r.views, view)
	if r.check != nil {
		r.check(view)
	}
}

func (r *recordingListener) PeerDown(id int) {
	r.down = append(r.down, id)
}

func (r *recordingListener) last() []int {
	if len(r.views) == 0 {
		return nil
	}
	return r.views[len(r.views)-1]
}

func testConf(t *testing.T, nodes int) *config.Config {
	conf := config.NewTestConfig(t, logrus.DebugLevel)
	conf.Nodes = nodes
	return conf
}

// harnessNode is a bare kernel entity driving a single Membership.
type harnessNode struct {
	recordingListener
	m Membership
}

func (h *harnessNode) Deliver(payload interface{}) error {
	if msg, ok := payload.(net.MembershipMessage); ok {
		h.m.Process(msg)
		return nil
	}
	h.m.Tick(payload)
	return nil
}

type membershipFactory func(trans net.Transport, rng *rand.Rand, l Listener, logger *logrus.Entry) Membership

// runMembership wires n nodes running the same membership protocol on a
// kernel and runs it until end.
func runMembership(t *testing.T, n int, end time.Duration, factory membershipFactory) []*harnessNode {
	logger := common.NewTestEntry(t, logrus.InfoLevel)
	kernel := sim.NewKernel(end, config.DefaultMinDelay, logger)
	rng := rand.New(rand.NewSource(7))

	nodes := make([]*harnessNode, n)
	for i := 0; i < n; i++ {
		h := &harnessNode{}
		trans := net.NewInmemTransport(kernel, i)
		h.m = factory(trans, rng, h, logger.WithField("node", i))
		kernel.Register(net.NodeAddress(i), h)
		nodes[i] = h
	}
	for _, h := range nodes {
		h.m.Start()
	}

	if err := kernel.Run(); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return nodes
}

func checkView(t *testing.T, self, n int, view []int) {
	seen := map[int]bool{}
	for _, id := range view {
		if id == self {
			t.Fatalf("node %d has itself in its view %v", self, view)
		}
		if id < 0 || id >= n {
			t.Fatalf("node %d has unknown id %d in its view", self, id)
		}
		if seen[id] {
			t.Fatalf("node %d has %d twice in its view %v", self, id, view)
		}
		seen[id] = true
	}
}

func TestGridPlacement(t *testing.T) {
	n := 50
	g := NewGrid(n, rand.New(rand.NewSource(1)))

	if g.Len() != n {
		t.Fatalf("expected %d positions, got %d", n, g.Len())
	}

	// ceil(sqrt(50)) = 8 columns
	for i := 0; i < n; i++ {
		p := g.Position(i)
		cx := gridMargin + float64(i%8)*gridSpacing
		cy := gridMargin + float64(i/8)*gridSpacing
		if p.X < cx-gridJitter || p.X > cx+gridJitter || p.Y < cy-gridJitter || p.Y > cy+gridJitter {
			t.Fatalf("node %d placed at %v, too far from (%v, %v)", i, p, cx, cy)
		}
	}

	for i := 0; i < n; i++ {
		expected := []int{}
		for j := 0; j < n; j++ {
			if j != i && g.Distance(i, j) < 100 {
				expected = append(expected, j)
			}
		}
		got := g.Within(i, 100)
		if len(got) != len(expected) {
			t.Fatalf("node %d: Within returned %v, brute force %v", i, got, expected)
		}
		for k := range got {
			if got[k] != expected[k] {
				t.Fatalf("node %d: Within returned %v, brute force %v", i, got, expected)
			}
		}
	}
}

func TestNaiveRefresh(t *testing.T) {
	conf := testConf(t, 100)
	conf.FanoutOverride = 3
	rng := rand.New(rand.NewSource(3))
	grid := NewGrid(conf.Nodes, rng)

	trans := &fakeTransport{self: 44}
	l := &recordingListener{}
	n := NewNaive(trans, conf, grid, rng, l, common.NewTestEntry(t, logrus.DebugLevel))

	n.Start()

	view := n.View()
	inRange := NewIDSet(grid.Within(44, conf.Distance)...)
	expected := 3
	if inRange.Len() < expected {
		expected = inRange.Len()
	}
	if expected == 0 || len(view) != expected {
		t.Fatalf("expected a view of %d, got %v", expected, view)
	}
	for _, id := range view {
		if !inRange.Contains(id) {
			t.Fatalf("%d is out of range", id)
		}
	}
	if len(trans.timers) != 1 || trans.timers[0].delay != conf.RefreshPeriod {
		t.Fatalf("expected a refresh armed after %v, got %v", conf.RefreshPeriod, trans.timers)
	}
	if len(l.views) != 1 {
		t.Fatalf("expected one notification, got %d", len(l.views))
	}

	evicted := view[0]
	n.Evict(evicted)
	if n.Contains(evicted) || len(l.down) != 1 || l.down[0] != evicted {
		t.Fatalf("%d should have been evicted", evicted)
	}

	for i := 0; i < 10; i++ {
		n.Tick(net.ViewRound{})
		if n.Contains(evicted) {
			t.Fatalf("refresh picked evicted node %d again", evicted)
		}
	}

	n.Process(&net.BrahmsMessage{Type: net.Push, Sender: 1})
	if len(trans.sent) != 0 {
		t.Fatal("naive membership should never send")
	}
}

func TestSamplerMinWise(t *testing.T) {
	a := NewSampler(42)
	b := NewSampler(42)

	if _, ok := a.Sample(); ok {
		t.Fatal("a new sampler should be empty")
	}

	for _, id := range []int{5, 3, 9, 1, 7} {
		a.Next(id)
	}
	for _, id := range []int{7, 7, 1, 9, 9, 9, 3, 5, 5} {
		b.Next(id)
	}

	qa, _ := a.Sample()
	qb, _ := b.Sample()
	if qa != qb {
		t.Fatalf("samplers with the same key disagree: %d vs %d", qa, qb)
	}

	a.Init(43)
	if _, ok := a.Sample(); ok {
		t.Fatal("Init should empty the sampler")
	}
}
