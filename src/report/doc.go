// Package report gathers the end-of-run measurements of a simulation.
//
// Shortly before the end time every node sends a NodeReport to the Collector:
// the payloads it holds with their hop count and message counters, its overlay
// degree, and its chain. The Collector turns them into a Summary:
//
//  reliability  holders / (n(1-f)) * 100          per payload
//  latency      max hop count                     per payload
//  RMR          gossip / (holders - 1) - 1         per payload
//
// plus averages, degree and chain statistics. Summaries and reports can be
// archived in a Store, either in memory or in a badger database.
package report
