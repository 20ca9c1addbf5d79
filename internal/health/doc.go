// Package health provides the pollable health checks exposed by the
// monitor endpoints.
//
// Three reporters cover the core's health surface: bot (lifecycle state),
// connection (live gateway state and latency), and memory (live process
// heap usage against a configured threshold). All checks are pure reads
// performed at query time; nothing is cached and nothing is pushed.
package health
