package net

// Self-addressed payloads. Nothing is ever cancelled: when one of these fires
// its handler checks whether it still applies.

// RepairTimeout fires when an announced payload has not arrived yet.
type RepairTimeout struct {
	ID string
}

// AckTimeout fires when a GOSSIP or IHAVE sent to Peer may still be
// unacknowledged.
type AckTimeout struct {
	Peer  int
	ID    string
	Round int
}

// MineTimeout ends the simulated proof-of-work latency of mining attempt
// Attempt. It is stale if mining was interrupted or restarted meanwhile.
type MineTimeout struct {
	Attempt int
}

// ViewRound triggers a periodic membership step: a naive refresh, a Brahms
// round, or a DIMPLE shuffle.
type ViewRound struct{}

// ResponseTimeout fires when a DIMPLE request to Peer may still be pending.
type ResponseTimeout struct {
	Peer int
}

// CreateTransaction hands the transaction token to a node.
type CreateTransaction struct{}

// BecomeMiner turns a node into a miner.
type BecomeMiner struct{}

// ChurnOut makes a node leave the network for good.
type ChurnOut struct{}

// TriggerReport asks a node for its end-of-run report.
type TriggerReport struct{}
