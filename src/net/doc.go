// Package net defines the messages exchanged between simulated nodes and the
// Transport they are sent through.
//
// Messages form closed families: GossipMessage for the broadcast layer,
// BrahmsMessage and DimpleMessage (the MembershipMessage union) for peer
// sampling, and a set of self-addressed timer payloads. Views always travel as
// typed []int slices.
//
// InmemTransport is the only Transport: it schedules every message on the
// simulation kernel with the requested virtual delay.
package net
