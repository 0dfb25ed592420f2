// Package peers implements the membership services that decide which nodes a
// blocksim node talks to.
//
// A Membership owns a node's view: the set of peer ids the broadcast layer
// may push payloads to. Every time the view changes the Membership notifies
// its Listener, normally the node itself, which then resynchronizes its
// broadcast peer sets. Three strategies are available:
//
//  Naive   a random subset of the nodes placed within a given distance on a
//          jittered Grid, drawn again every refresh period.
//  Brahms  push/pull gossip of ids whose output is mixed with min-wise
//          Samplers; a round that receives too many pushes keeps the old
//          view.
//  Dimple  shuffles of aged entries with the oldest neighbor, plus
//          reinforcement rounds that ask neighbors to point back. Requests
//          that stay unanswered evict the peer.
//
// IDSet is the insertion-ordered set used for views and buffers throughout
// the simulator; its iteration order only depends on the operations applied
// to it, which keeps runs reproducible for a given seed.
package peers
