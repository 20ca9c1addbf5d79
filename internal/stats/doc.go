// Package stats collects per-command and aggregate dispatch statistics.
//
// The Collector is the single owner of all counters. Dispatch goroutines
// record outcomes concurrently; readers (health reporters, the stats
// command, the monitor API) only ever see copied snapshots.
package stats
