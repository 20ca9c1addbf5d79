// ABOUTME: Boundary types and interfaces for the external gateway collaborator
// ABOUTME: Typed events and handles; the wire protocol lives entirely behind these interfaces

package gateway

import (
	"context"
	"time"
)

// ConnState is the connection state reported by the gateway collaborator.
type ConnState int

const (
	ConnDisconnected ConnState = iota
	ConnConnecting
	ConnConnected
	ConnDisconnecting
	// ConnReady means the session is logged in and the platform has signalled
	// readiness; interactions may start arriving.
	ConnReady
)

// String returns a human-readable representation of the connection state.
func (s ConnState) String() string {
	switch s {
	case ConnDisconnected:
		return "disconnected"
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	case ConnDisconnecting:
		return "disconnecting"
	case ConnReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Session is the persistent connection to the remote platform. A single
// Session instance is shared process-wide: only the lifecycle coordinator
// calls Open and Close, while everything else performs read operations.
type Session interface {
	// Open logs in and connects. Blocks until the connection is established
	// or ctx is done; the ready signal arrives later as a ConnectionEvent.
	Open(ctx context.Context) error

	// Close logs out and disconnects.
	Close(ctx context.Context) error

	// State reports the current connection state.
	State() ConnState

	// Latency reports the current gateway round-trip latency.
	Latency() time.Duration

	// GuildCount reports the number of groups the bot is currently joined to.
	GuildCount() int

	// UserCount reports the number of users visible to the bot.
	UserCount() int
}

// CommandRegistrar is the bulk command-registration surface of the platform.
type CommandRegistrar interface {
	OverwriteGlobalCommands(ctx context.Context, commands []CommandDefinition) error
	OverwriteGuildCommands(ctx context.Context, guildID string, commands []CommandDefinition) error
}

// CommandDefinition is the platform-facing description of one command.
type CommandDefinition struct {
	Name        string
	Description string
}

// Response is a reply to an interaction.
type Response struct {
	Content string
	// Ephemeral makes the reply visible only to the invoking user.
	Ephemeral bool
}

// Interaction is the handle for one inbound interaction. All replies go
// through the originating handle; the dispatcher never acquires a second
// shared handle to respond.
type Interaction interface {
	// Respond sends an immediate reply.
	Respond(ctx context.Context, resp Response) error

	// Defer acknowledges the interaction so a Followup can arrive later.
	Defer(ctx context.Context, ephemeral bool) error

	// Followup sends a reply after a Defer.
	Followup(ctx context.Context, resp Response) error
}

// InteractionEvent is one inbound interaction pushed by the collaborator.
// The value is created by the collaborator, consumed once by the dispatcher,
// and never mutated.
type InteractionEvent struct {
	Command     string
	UserID      string
	GuildID     string
	Interaction Interaction
	// Options is the raw parsed argument payload, opaque to the core.
	Options map[string]any
}

// ConnectionEvent is a connection state change pushed by the collaborator.
type ConnectionEvent struct {
	State ConnState
	Err   error
	At    time.Time
}
