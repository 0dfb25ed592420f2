package net

import (
	"time"

	"github.com/mosaicnetworks/blocksim/src/sim"
)

// InmemTransport implements the Transport interface on top of the simulation
// kernel, so that messages take virtual time instead of going over a network.
type InmemTransport struct {
	kernel    *sim.Kernel
	localAddr int
	sent      uint64
}

// NewInmemTransport is used to initialize a new transport for node id.
func NewInmemTransport(kernel *sim.Kernel, id int) *InmemTransport {
	return &InmemTransport{
		kernel:    kernel,
		localAddr: id,
	}
}

// LocalAddr implements the Transport interface.
func (i *InmemTransport) LocalAddr() int {
	return i.localAddr
}

// Now implements the Transport interface.
func (i *InmemTransport) Now() time.Duration {
	return i.kernel.Now()
}

// Send implements the Transport interface.
func (i *InmemTransport) Send(target int, msg interface{}, delay time.Duration) {
	i.sent++
	i.kernel.Schedule(delay, NodeAddress(target), msg)
}

// Schedule implements the Transport interface.
func (i *InmemTransport) Schedule(msg interface{}, delay time.Duration) {
	i.kernel.Schedule(delay, NodeAddress(i.localAddr), msg)
}

// SendTo implements the Transport interface.
func (i *InmemTransport) SendTo(addr sim.Address, msg interface{}, delay time.Duration) {
	i.kernel.Schedule(delay, addr, msg)
}

// Sent is the number of messages sent to other nodes.
func (i *InmemTransport) Sent() uint64 {
	return i.sent
}
