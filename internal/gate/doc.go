// Package gate provides bounded admission control for command dispatch.
//
// A Gate holds a fixed number of permits backed by a weighted semaphore.
// Acquire waits a short, configurable window for a free permit and then
// fails with ErrRejected: under sustained overload, excess requests fail
// fast with a user-visible "overloaded" signal instead of accumulating an
// unbounded backlog.
package gate
