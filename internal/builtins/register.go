// ABOUTME: Registers the built-in commands into a command registry
// ABOUTME: Called once by the bot during construction, before the registry is sealed

package builtins

import (
	"fmt"

	"github.com/2389/coven-bot/internal/command"
	"github.com/2389/coven-bot/internal/gateway"
	"github.com/2389/coven-bot/internal/stats"
)

// Register adds the built-in commands to the registry. The registry must
// not be sealed yet.
func Register(registry *command.Registry, session gateway.Session, collector *stats.Collector) error {
	ping := NewPing(session)
	if err := registry.Register("ping", ping, ping.Metadata()); err != nil {
		return fmt.Errorf("registering ping: %w", err)
	}

	statsCmd := NewStats(session, collector)
	if err := registry.Register("stats", statsCmd, statsCmd.Metadata()); err != nil {
		return fmt.Errorf("registering stats: %w", err)
	}

	return nil
}
