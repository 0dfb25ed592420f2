package churn

import (
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/mosaicnetworks/blocksim/src/common"
	"github.com/mosaicnetworks/blocksim/src/config"
	"github.com/mosaicnetworks/blocksim/src/net"
	"github.com/mosaicnetworks/blocksim/src/sim"
	"github.com/sirupsen/logrus"
)

type churnedNode struct {
	id     int
	roster *Roster
	at     []time.Duration
	k      *sim.Kernel
}

func (n *churnedNode) Deliver(payload interface{}) error {
	if _, ok := payload.(net.ChurnOut); ok {
		n.roster.Depart(n.id)
		n.at = append(n.at, n.k.Now())
	}
	return nil
}

func TestRoster(t *testing.T) {
	r := NewRoster(5)
	r.Exempt(1)

	if !reflect.DeepEqual(r.Up(), []int{0, 2, 3, 4}) {
		t.Fatalf("exempt nodes are not up, got %v", r.Up())
	}
	if !r.IsActive(1) || !r.IsExempt(1) {
		t.Fatal("an exempt node stays active")
	}

	if !r.Depart(3) || r.Depart(3) {
		t.Fatal("Depart should report the transition once")
	}
	if r.IsActive(3) {
		t.Fatal("3 should be inactive")
	}
	if !reflect.DeepEqual(r.Up(), []int{0, 2, 4}) {
		t.Fatalf("unexpected up set %v", r.Up())
	}
	if len(r.Active()) != 4 || r.Nodes() != 5 {
		t.Fatalf("unexpected active set %v", r.Active())
	}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		id, ok := r.Random(rng)
		if !ok || id == 1 || id == 3 {
			t.Fatalf("Random returned %d", id)
		}
	}

	empty := NewRoster(1)
	empty.Exempt(0)
	if _, ok := empty.Random(rng); ok {
		t.Fatal("Random on an empty up set should fail")
	}
}

func runManager(t *testing.T, conf *config.Config, exempt ...int) (*Manager, *Roster, []*churnedNode) {
	logger := common.NewTestEntry(t, logrus.DebugLevel)
	k := sim.NewKernel(conf.EndTime, conf.MinDelay, logger)
	roster := NewRoster(conf.Nodes)
	for _, id := range exempt {
		roster.Exempt(id)
	}

	nodes := make([]*churnedNode, conf.Nodes)
	for i := range nodes {
		nodes[i] = &churnedNode{id: i, roster: roster, k: k}
		k.Register(net.NodeAddress(i), nodes[i])
	}

	m := NewManager(conf, roster, k, rand.New(rand.NewSource(5)), logger)
	k.Register(ManagerAddress, m)
	m.Start()

	if err := k.Run(); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return m, roster, nodes
}

func TestManagerSingleCycle(t *testing.T) {
	conf := config.NewTestConfig(t, logrus.DebugLevel)
	conf.Nodes = 20
	conf.FailRate = 0.25
	conf.EndTime = 10000 * time.Second

	m, roster, nodes := runManager(t, conf, 0, 1)

	if m.Cycles() != 1 {
		t.Fatalf("expected a single cycle, got %d", m.Cycles())
	}
	if len(m.Doomed()) != 5 || len(roster.Active()) != 15 {
		t.Fatalf("expected 5 departures, got %v", m.Doomed())
	}
	for _, id := range m.Doomed() {
		if id == 0 || id == 1 {
			t.Fatalf("exempt node %d was churned", id)
		}
		if len(nodes[id].at) != 1 || nodes[id].at[0] < conf.ChurnStart {
			t.Fatalf("node %d churned at %v", id, nodes[id].at)
		}
	}
}

func TestManagerPeriodic(t *testing.T) {
	conf := config.NewTestConfig(t, logrus.DebugLevel)
	conf.Nodes = 20
	conf.FailRate = 0.25
	conf.ChurnPeriod = 100 * time.Second
	conf.EndTime = 450 * time.Second
	conf.ChurnMeanDelay = time.Millisecond

	m, _, _ := runManager(t, conf, 0, 1)

	// cycles at 100, 200, 300 and 400s; 18 up nodes leave room for three
	if m.Cycles() != 4 {
		t.Fatalf("expected 4 cycles, got %d", m.Cycles())
	}
	if len(m.Doomed()) != 15 {
		t.Fatalf("expected 15 victims, got %d", len(m.Doomed()))
	}
}

func TestManagerRejectsUnknownPayload(t *testing.T) {
	conf := config.NewTestConfig(t, logrus.DebugLevel)
	m := NewManager(conf, NewRoster(2), sim.NewKernel(time.Second, 0, common.NewTestEntry(t, logrus.DebugLevel)),
		rand.New(rand.NewSource(1)), common.NewTestEntry(t, logrus.DebugLevel))
	if err := m.Deliver("bogus"); err == nil {
		t.Fatal("expected an error")
	}
}
