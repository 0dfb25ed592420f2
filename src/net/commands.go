package net

// PayloadKind says how the Data of a GossipMessage must be decoded.
type PayloadKind int

const (
	// NoPayload is used by control messages (IHAVE, GRAFT, PRUNE, ACK, INV,
	// REQUEST).
	NoPayload PayloadKind = iota
	// BlockPayload carries an encoded blockchain.Block.
	BlockPayload
	// TransactionPayload carries an encoded blockchain.Transaction.
	TransactionPayload
)

func (k PayloadKind) String() string {
	switch k {
	case BlockPayload:
		return "BLOCK"
	case TransactionPayload:
		return "TRX"
	default:
		return ""
	}
}

// GossipType enumerates the dissemination messages of both broadcast
// strategies.
type GossipType int

const (
	// Gossip carries a payload. In flood mode it is also the relay.
	Gossip GossipType = iota
	// IHave announces a payload id to a lazy peer.
	IHave
	// Graft asks an advertiser for a missing payload and turns the link eager.
	Graft
	// Prune turns a link lazy after a duplicate delivery.
	Prune
	// Ack acknowledges an IHAVE or a first GOSSIP.
	Ack
	// Broadcast is a node handing a fresh payload to its own broadcast layer.
	Broadcast
	// Inv announces a payload id to flood neighbors.
	Inv
	// Request pulls an announced payload in flood mode.
	Request
)

func (t GossipType) String() string {
	switch t {
	case Gossip:
		return "GOSSIP"
	case IHave:
		return "IHAVE"
	case Graft:
		return "GRAFT"
	case Prune:
		return "PRUNE"
	case Ack:
		return "ACK"
	case Broadcast:
		return "BROADCAST"
	case Inv:
		return "INV"
	case Request:
		return "REQUEST"
	default:
		return "UNKNOWN"
	}
}

// GossipMessage is the single message type of the broadcast layer. Data is
// never mutated once a message is sent, so it can be shared between
// receivers.
type GossipMessage struct {
	Type   GossipType
	Kind   PayloadKind
	Data   []byte
	ID     string
	Round  int
	Sender int
}

// MembershipMessage is implemented by the messages of the peer-sampling
// protocols only.
type MembershipMessage interface {
	From() int
	membership()
}

// BrahmsType ...
type BrahmsType int

const (
	// Push advertises the sender's id.
	Push BrahmsType = iota
	// Pull asks for the receiver's view.
	Pull
	// PullReply carries the replier's view.
	PullReply
)

// BrahmsMessage ...
type BrahmsMessage struct {
	Type   BrahmsType
	View   []int
	Sender int
}

// From implements MembershipMessage.
func (m *BrahmsMessage) From() int { return m.Sender }

func (m *BrahmsMessage) membership() {}

// DimpleType ...
type DimpleType int

const (
	// Join is sent by a newcomer to a seed.
	Join DimpleType = iota
	// JoinResponse carries the seed's introduction candidates.
	JoinResponse
	// ViewExchangeRequest carries the initiator's shuffle subset.
	ViewExchangeRequest
	// ViewExchangeResponse carries the target's subset and echoes the
	// initiator's.
	ViewExchangeResponse
	// Reinforcement is a self-message starting one reinforcement round.
	Reinforcement
	// ReinforcementInitiate asks the receiver to insert the initiator.
	ReinforcementInitiate
	// ReinforcementResponse returns the entry evicted to make room, if any.
	ReinforcementResponse
)

func (t DimpleType) String() string {
	switch t {
	case Join:
		return "JOIN"
	case JoinResponse:
		return "JOIN_RESPONSE"
	case ViewExchangeRequest:
		return "VIEW_EXCHANGE_REQUEST"
	case ViewExchangeResponse:
		return "VIEW_EXCHANGE_RESPONSE"
	case Reinforcement:
		return "REINFORCEMENT"
	case ReinforcementInitiate:
		return "REINFORCEMENT_INITIATE"
	case ReinforcementResponse:
		return "REINFORCEMENT_RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// PartialViewEntry is a DIMPLE neighbor together with its age and the path of
// nodes it travelled through.
type PartialViewEntry struct {
	ID      int
	Age     int
	Visited []int
}

// Copy returns a deep copy. Entries are always copied when they leave a node.
func (e PartialViewEntry) Copy() PartialViewEntry {
	visited := make([]int, len(e.Visited))
	copy(visited, e.Visited)
	return PartialViewEntry{ID: e.ID, Age: e.Age, Visited: visited}
}

// CopyEntries deep-copies a slice of entries.
func CopyEntries(entries []PartialViewEntry) []PartialViewEntry {
	res := make([]PartialViewEntry, len(entries))
	for i, e := range entries {
		res[i] = e.Copy()
	}
	return res
}

// DimpleMessage ...
type DimpleMessage struct {
	Type   DimpleType
	Sender int

	// Entries is the subset offered in a view exchange.
	Entries []PartialViewEntry

	// Sent echoes, in a ViewExchangeResponse, the subset the initiator
	// offered, so that it knows which of its entries may be replaced.
	Sent []PartialViewEntry

	// Candidates are the introduction targets of a JoinResponse.
	Candidates []int

	// Initiator is the node asking to be inserted by ReinforcementInitiate.
	Initiator int

	// Evicted is the entry a ReinforcementInitiate displaced, nil when the
	// initiator was inserted into free space or ignored.
	Evicted *PartialViewEntry

	// Accepted reports whether the initiator was inserted.
	Accepted bool
}

// From implements MembershipMessage.
func (m *DimpleMessage) From() int { return m.Sender }

func (m *DimpleMessage) membership() {}
