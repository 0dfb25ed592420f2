// Package config defines the configuration of a blocksim run.
//
// Regardless of how a simulation is started, directly from Go code or from
// the command line, it uses the Config object defined in this package to
// store and forward configuration options. The command line tool binds its
// flags into viper and additionally looks for a blocksim.toml (or .yaml,
// .json) file in Config.DataDir.
//
// A few parameters are derived from the network size rather than set
// directly; they follow the formulas of the protocols they belong to:
//
//  Fanout()          floor(log10 n + 1) * 6                naive membership
//  BrahmsViewSize()  ceil(log10 n) + c                     Brahms l1 = l2
//  ShuffleSize()     max(1, floor(log10 n))                DIMPLE
//  MaxPartialView()  (ceil(log10 n) + 1) + ceil(log10 n + 1) * 6
package config
