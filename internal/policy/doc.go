// Package policy provides the retry and circuit-breaking strategy applied
// to gateway transport calls.
//
// The lifecycle coordinator depends only on a small Execute interface, so
// the bounded exponential-backoff retry (cenkalti/backoff) and the
// consecutive-failure circuit breaker (sony/gobreaker) live here as an
// injectable collaborator rather than being hard-coded into the
// coordinator.
package policy
