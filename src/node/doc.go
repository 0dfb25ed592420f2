// Package node implements the reactive component of a blocksim node.
//
// A Node is a kernel entity. It owns a Core, which keeps the blockchain and
// runs the mining state machine, a peers.Membership, which decides who the
// node talks to, and a broadcast.Strategy, which disseminates blocks and
// transactions over the membership view. Deliver routes every payload the
// kernel hands it:
//
//  GossipMessage              broadcast strategy
//  BrahmsMessage/DimpleMessage membership
//  RepairTimeout/AckTimeout   broadcast strategy
//  ViewRound/ResponseTimeout  membership
//  MineTimeout                end of a mining attempt
//  BecomeMiner, ChurnOut      role and liveness changes
//  CreateTransaction          the transaction token
//  TriggerReport              end-of-run report to the collector
//
// Anything else is an UnknownPayloadError, which aborts the run.
//
// Feedback loops
//
// Membership changes flow into the broadcast layer through the
// peers.Listener methods: ViewChanged resynchronizes the eager and lazy peer
// sets and PeerDown purges the bookkeeping about an evicted peer. In the
// other direction, an acknowledgement timeout in the broadcast layer evicts
// the silent peer from the membership view, on this side of the link only.
//
// Liveness is not stored in the node: it asks the churn.Roster. A departed
// node has cleared its chain, mempool, broadcast and membership state and
// ignores every message and timer, except that it still passes the
// transaction token on and still sends its (empty) report.
package node
