package broadcast

import (
	"time"

	"github.com/mosaicnetworks/blocksim/src/config"
	"github.com/mosaicnetworks/blocksim/src/net"
	"github.com/mosaicnetworks/blocksim/src/report"
)

// Strategy is a dissemination protocol. A node owns exactly one and routes to
// it every GossipMessage and every broadcast timer it receives.
type Strategy interface {
	// Broadcast starts disseminating a payload produced locally.
	Broadcast(kind net.PayloadKind, id string, data []byte)
	// Deliver handles a GossipMessage.
	Deliver(msg *net.GossipMessage)
	// Timeout handles RepairTimeout and AckTimeout payloads.
	Timeout(timer interface{})
	// SyncPeers aligns the peer sets with a new membership view.
	SyncPeers(view []int)
	// Evict forgets a peer and every bookkeeping entry about it.
	Evict(peer int)
	// Degree is the number of peers payloads are currently pushed to.
	Degree() int
	// Has reports whether the payload id has been delivered.
	Has(id string) bool
	// Stats reports the held payloads, sorted by id.
	Stats() []report.MessageReport
	// Reset clears all state.
	Reset()
}

// View is the part of a membership service the broadcast layer reads.
type View interface {
	View() []int
	Contains(id int) bool
}

// DeliverFunc hands a payload to the node the first time it is delivered.
type DeliverFunc func(kind net.PayloadKind, id string, data []byte)

// LinkFailureFunc reports a peer that did not acknowledge in time.
type LinkFailureFunc func(peer int)

// Config holds the timing parameters shared by the strategies.
type Config struct {
	Lookahead time.Duration
	MaxRounds int
	LazyDelay float64
	Acks      bool
	AckFactor float64
}

// NewConfig extracts the broadcast parameters from a simulation config.
func NewConfig(conf *config.Config) Config {
	return Config{
		Lookahead: conf.Lookahead,
		MaxRounds: conf.MaxRounds,
		LazyDelay: conf.LazyDelay,
		Acks:      conf.AcksEnabled(),
		AckFactor: conf.AckFactor,
	}
}

func (c Config) lazyDelay() time.Duration {
	return time.Duration(float64(c.Lookahead) * c.LazyDelay)
}

func (c Config) repairTimeout() time.Duration {
	return c.Lookahead
}

func (c Config) repairRetry() time.Duration {
	return c.Lookahead / 2
}

func (c Config) ackTimeout(lazy bool) time.Duration {
	d := float64(c.Lookahead) * c.AckFactor
	if lazy {
		d *= c.LazyDelay
	}
	return time.Duration(d)
}
