// Package churn models nodes leaving the network.
//
// The Roster is the only record of who is still up: the churn Manager picks
// its victims from it, the transaction generator hands its token to nodes
// drawn from it, and nodes ask it whether they are still active. Miners are
// exempt from churn and transaction generation but remain active.
package churn
