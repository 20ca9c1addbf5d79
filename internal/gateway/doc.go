// Package gateway defines the boundary to the external gateway collaborator:
// the component that owns the persistent connection to the remote messaging
// platform.
//
// The core never speaks the wire protocol. It consumes typed events pushed
// over channels (InteractionEvent for inbound commands, ConnectionEvent for
// connection state changes) and calls back through narrow interfaces:
//
//   - Session: open/close the connection, read live latency and counts
//   - CommandRegistrar: bulk-overwrite registered commands (global or guild)
//   - Interaction: respond to one inbound interaction through its own handle
//
// Modelling the collaborator's callbacks as channel-delivered events keeps
// ordering observable in tests and avoids re-entrant callback chains.
package gateway
