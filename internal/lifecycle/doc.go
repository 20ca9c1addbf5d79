// Package lifecycle owns start/stop sequencing for the bot core.
//
// The Coordinator is the single driver of lifecycle transitions: external
// calls (Start, Stop) and gateway connection events (ready, disconnected)
// all funnel through it, which keeps the "unexpected disconnect" and
// "graceful stop" paths from racing each other. Gateway transport calls are
// wrapped in an injected TransportPolicy (retry plus circuit breaker in
// production, deterministic no-ops in tests).
//
// Command registration is gated on the running state: WaitUntilReady blocks
// until the gateway signals ready, bounded by a hard ceiling, and
// RegisterCommands refuses to run earlier.
//
// An unexpected disconnect while running is tolerated for a configurable
// grace period before being declared fatal; a zero grace period makes it
// immediately fatal. Fatal faults move the tracker to the error state and
// request a hosting-level shutdown exactly once.
package lifecycle
