// ABOUTME: Command handler capability and the immutable interaction request value
// ABOUTME: Handlers signal domain failures via sentinel error wrapping

package command

import (
	"context"
	"errors"

	"github.com/2389/coven-bot/internal/gateway"
)

// Handler failure kinds. Handlers wrap these sentinels to classify domain
// failures; any other error is treated as a handler fault.
var (
	// ErrPrecondition indicates a permission or precondition check failed.
	ErrPrecondition = errors.New("precondition failed")

	// ErrBadArguments indicates handler-side input validation failed.
	ErrBadArguments = errors.New("bad arguments")
)

// Request is one inbound interaction, created by the gateway collaborator
// and consumed exactly once by the dispatcher. Fields are never mutated
// after construction.
type Request struct {
	// RequestID correlates log lines across the dispatch pipeline.
	RequestID string

	// Command is the invoked command name.
	Command string

	// UserID identifies the invoking user.
	UserID string

	// GuildID identifies the originating group, empty for direct messages.
	GuildID string

	// Interaction is the handle all replies for this request go through.
	Interaction gateway.Interaction

	// Options is the raw argument payload, opaque to the dispatcher.
	Options map[string]any
}

// Handler executes one registered command.
//
// A nil return means the handler succeeded and has already emitted its own
// response through req.Interaction. An error wrapping ErrPrecondition or
// ErrBadArguments is a domain failure mapped to a fixed user-facing message;
// anything else is logged and reported as an unexpected error. Handlers are
// stateless between invocations except through injected dependencies, and
// must honor ctx cancellation: the dispatcher cancels ctx when the command
// deadline elapses.
type Handler interface {
	Execute(ctx context.Context, req *Request) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, req *Request) error

// Execute implements Handler.
func (f HandlerFunc) Execute(ctx context.Context, req *Request) error {
	return f(ctx, req)
}

// Metadata describes a command for platform registration.
type Metadata struct {
	Description string
}
