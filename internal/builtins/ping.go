// ABOUTME: The ping command, a round-trip latency probe
// ABOUTME: Replies with the session's current gateway latency

package builtins

import (
	"context"
	"fmt"

	"github.com/2389/coven-bot/internal/command"
	"github.com/2389/coven-bot/internal/gateway"
)

// Ping replies with the current gateway round-trip latency. Useful as a
// liveness probe from inside the chat platform itself.
type Ping struct {
	session gateway.Session
}

// NewPing creates the ping command backed by the given session.
func NewPing(session gateway.Session) *Ping {
	return &Ping{session: session}
}

// Metadata describes the command for platform registration.
func (p *Ping) Metadata() command.Metadata {
	return command.Metadata{Description: "Check bot responsiveness and gateway latency"}
}

// Execute implements command.Handler.
func (p *Ping) Execute(ctx context.Context, req *command.Request) error {
	latency := p.session.Latency()
	return req.Interaction.Respond(ctx, gateway.Response{
		Content: fmt.Sprintf("Pong! Gateway latency: %s", latency.Round(latencyPrecision)),
	})
}
