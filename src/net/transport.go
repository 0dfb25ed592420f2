package net

import (
	"time"

	"github.com/mosaicnetworks/blocksim/src/sim"
)

// NodeKind is the kernel address kind of protocol nodes.
const NodeKind = "node"

// NodeAddress ...
func NodeAddress(id int) sim.Address {
	return sim.Address{Kind: NodeKind, ID: id}
}

// Transport is what a node uses to talk to the rest of the simulation. Every
// method is fire-and-forget; replies come back as separate deliveries.
type Transport interface {

	// LocalAddr is the id of the node owning the transport.
	LocalAddr() int

	// Now is the current virtual time.
	Now() time.Duration

	// Send delivers msg to node target after delay.
	Send(target int, msg interface{}, delay time.Duration)

	// Schedule delivers msg back to the local node after delay. It is how
	// timers are armed.
	Schedule(msg interface{}, delay time.Duration)

	// SendTo delivers msg to an arbitrary entity, e.g. the report collector.
	SendTo(addr sim.Address, msg interface{}, delay time.Duration)
}
