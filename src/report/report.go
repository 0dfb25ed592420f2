package report

import (
	"github.com/mosaicnetworks/blocksim/src/common"
	"github.com/mosaicnetworks/blocksim/src/sim"
)

// CollectorKind is the kernel address kind of the collector.
const CollectorKind = "collector"

// CollectorAddress is where nodes send their reports.
var CollectorAddress = sim.Address{Kind: CollectorKind, ID: 0}

// MessageReport is what a node knows about one disseminated payload. In flood
// mode IHave counts INV announcements and Graft counts REQUESTs served.
type MessageReport struct {
	ID     string
	Round  int
	Gossip int
	IHave  int
	Graft  int
}

// NodeReport is sent by every node to the collector shortly before the end of
// a run.
type NodeReport struct {
	Node             int
	Messages         []MessageReport
	Degree           int
	TransactionsMade int
	Chain            []string
	Miner            bool
	Active           bool
}

// Marshal ...
func (r *NodeReport) Marshal() ([]byte, error) {
	return common.Encode(r)
}

// Unmarshal ...
func (r *NodeReport) Unmarshal(data []byte) error {
	return common.Decode(data, r)
}

// Finalize tells the collector that every report is in.
type Finalize struct{}
