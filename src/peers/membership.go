package peers

import (
	"github.com/mosaicnetworks/blocksim/src/net"
)

// Membership is a peer-sampling service. It owns the node's view of the
// network and is driven by the node: membership messages go to Process, view
// timers to Tick.
type Membership interface {
	// Start installs the bootstrap view and arms the first periodic round.
	Start()
	// Process handles a membership message.
	Process(msg net.MembershipMessage)
	// Tick handles ViewRound and ResponseTimeout payloads.
	Tick(timer interface{})
	// AddCandidate inserts id into the view when the protocol has room for it.
	AddCandidate(id int)
	// Evict removes id from the view.
	Evict(id int)
	// View returns a copy of the current view.
	View() []int
	// Contains reports whether id is in the view.
	Contains(id int) bool
	// Reset clears all state.
	Reset()
}

// Listener is notified of every change a Membership makes to its view.
type Listener interface {
	// ViewChanged is called with the new view after every mutation.
	ViewChanged(view []int)
	// PeerDown is called when a peer is evicted, before ViewChanged.
	PeerDown(id int)
}
