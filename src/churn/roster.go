package churn

import (
	"math/rand"

	"github.com/mosaicnetworks/blocksim/src/peers"
)

// Roster tracks the liveness of every node of a simulation.
type Roster struct {
	nodes  int
	active *peers.IDSet
	exempt *peers.IDSet
}

// NewRoster returns a roster where nodes 0..n-1 are all up.
func NewRoster(n int) *Roster {
	r := &Roster{
		nodes:  n,
		active: peers.NewIDSet(),
		exempt: peers.NewIDSet(),
	}
	for i := 0; i < n; i++ {
		r.active.Add(i)
	}
	return r
}

// Nodes is the total number of nodes, departed ones included.
func (r *Roster) Nodes() int {
	return r.nodes
}

// Exempt removes id from the up set without deactivating it.
func (r *Roster) Exempt(id int) {
	r.exempt.Add(id)
}

// IsExempt ...
func (r *Roster) IsExempt(id int) bool {
	return r.exempt.Contains(id)
}

// Depart marks id as gone for good. It reports false if it already was.
func (r *Roster) Depart(id int) bool {
	return r.active.Remove(id)
}

// IsActive ...
func (r *Roster) IsActive(id int) bool {
	return r.active.Contains(id)
}

// Active returns the active nodes, exempt ones included.
func (r *Roster) Active() []int {
	return r.active.Slice()
}

// Up returns the active nodes that are not exempt, in increasing order.
func (r *Roster) Up() []int {
	res := []int{}
	for _, id := range r.active.Sorted() {
		if !r.exempt.Contains(id) {
			res = append(res, id)
		}
	}
	return res
}

// Random picks a node of the up set, and false if the set is empty.
func (r *Roster) Random(rng *rand.Rand) (int, bool) {
	up := r.Up()
	if len(up) == 0 {
		return 0, false
	}
	return up[rng.Intn(len(up))], true
}
