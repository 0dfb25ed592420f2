package sim

import (
	"container/heap"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Address identifies an entity: a node, the churn manager, the collector...
type Address struct {
	Kind string
	ID   int
}

func (a Address) String() string {
	return fmt.Sprintf("%s[%d]", a.Kind, a.ID)
}

// Entity is anything the kernel can deliver payloads to. An error returned by
// Deliver aborts the run.
type Entity interface {
	Deliver(payload interface{}) error
}

// UnknownEntityError is returned by Run when an event targets an address that
// was never registered.
type UnknownEntityError struct {
	Address Address
}

func (e UnknownEntityError) Error() string {
	return fmt.Sprintf("no entity registered at %s", e.Address)
}

// IsUnknownEntity ...
func IsUnknownEntity(err error) bool {
	_, ok := err.(UnknownEntityError)
	return ok
}

type event struct {
	at      time.Duration
	seq     uint64
	target  Address
	payload interface{}
}

type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].at == q[j].at {
		return q[i].seq < q[j].seq
	}
	return q[i].at < q[j].at
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x interface{}) { *q = append(*q, x.(*event)) }

func (q *eventQueue) Pop() interface{} {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

// Kernel owns the virtual clock and the event queue.
type Kernel struct {
	now      time.Duration
	end      time.Duration
	minDelay time.Duration
	seq      uint64
	queue    eventQueue
	entities map[Address]Entity

	processed uint64
	onAdvance func(now time.Duration)

	logger *logrus.Entry
}

// NewKernel returns a kernel that stops at end and raises every delay below
// minDelay to minDelay.
func NewKernel(end, minDelay time.Duration, logger *logrus.Entry) *Kernel {
	return &Kernel{
		end:      end,
		minDelay: minDelay,
		queue:    eventQueue{},
		entities: make(map[Address]Entity),
		logger:   logger,
	}
}

// Register binds an entity to an address, replacing any previous one.
func (k *Kernel) Register(addr Address, e Entity) {
	k.entities[addr] = e
}

// Now returns the current virtual time.
func (k *Kernel) Now() time.Duration {
	return k.now
}

// End ...
func (k *Kernel) End() time.Duration {
	return k.end
}

// Pending is the number of queued events.
func (k *Kernel) Pending() int {
	return len(k.queue)
}

// Processed is the number of delivered events.
func (k *Kernel) Processed() uint64 {
	return k.processed
}

// OnAdvance installs an observer called every time the clock moves forward.
func (k *Kernel) OnAdvance(f func(now time.Duration)) {
	k.onAdvance = f
}

// Schedule queues payload for delivery to addr after delay. Events that would
// fire after the end time are dropped.
func (k *Kernel) Schedule(delay time.Duration, addr Address, payload interface{}) {
	if delay < k.minDelay {
		delay = k.minDelay
	}
	at := k.now + delay
	if at > k.end {
		return
	}
	k.seq++
	heap.Push(&k.queue, &event{
		at:      at,
		seq:     k.seq,
		target:  addr,
		payload: payload,
	})
}

// Run delivers events until the queue is empty. The first error, either an
// UnknownEntityError or one returned by an entity, stops the run and is
// returned as is.
func (k *Kernel) Run() error {
	for len(k.queue) > 0 {
		ev := heap.Pop(&k.queue).(*event)

		if ev.at > k.now {
			k.now = ev.at
			if k.onAdvance != nil {
				k.onAdvance(k.now)
			}
		}

		entity, ok := k.entities[ev.target]
		if !ok {
			return UnknownEntityError{Address: ev.target}
		}

		k.processed++
		if err := entity.Deliver(ev.payload); err != nil {
			return err
		}
	}

	k.logger.WithFields(logrus.Fields{
		"now":    k.now,
		"events": k.processed,
	}).Debug("Kernel drained")

	return nil
}
