// Package simulation assembles and runs a blocksim network.
//
// Init builds, in order: the kernel and the churn.Roster, the report store
// (in-memory, or badger when Config.Store is set), the report.Collector with
// its Finalize event at the end time, one node.Node per id (plus the
// placement grid for the naive membership), the miners, the transaction
// token and, when churn is enabled, the churn.Manager. Run then drives the
// kernel and returns the Summary the collector produced.
//
// Every random decision of a run comes from one *rand.Rand seeded with
// Config.Seed, message ids included, so two runs of the same configuration
// produce identical summaries.
package simulation
