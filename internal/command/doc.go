// Package command defines the command handler capability and the registry
// that owns registered handlers.
//
// A Handler executes one command against an immutable Request and signals
// domain failures by wrapping the package sentinels ErrPrecondition and
// ErrBadArguments. The Registry maps command names to handlers, is populated
// once during wiring, and is sealed before dispatch begins; after sealing it
// serves concurrent lock-free-ish lookups and can push the full command set
// to the platform through a gateway.CommandRegistrar.
package command
