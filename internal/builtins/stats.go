// ABOUTME: The stats command, an in-chat view of bot runtime statistics
// ABOUTME: Reads live counters, session gauges, and heap usage at invocation time

package builtins

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/2389/coven-bot/internal/command"
	"github.com/2389/coven-bot/internal/gateway"
	"github.com/2389/coven-bot/internal/stats"
)

const latencyPrecision = time.Millisecond

// Stats replies with a snapshot of the bot's runtime statistics: uptime,
// command counters, session gauges, and heap usage. Everything is read at
// invocation time so repeated calls observe live values.
type Stats struct {
	session   gateway.Session
	collector *stats.Collector
}

// NewStats creates the stats command reading from the given session and collector.
func NewStats(session gateway.Session, collector *stats.Collector) *Stats {
	return &Stats{session: session, collector: collector}
}

// Metadata describes the command for platform registration.
func (s *Stats) Metadata() command.Metadata {
	return command.Metadata{Description: "Show bot runtime statistics"}
}

// Execute implements command.Handler.
func (s *Stats) Execute(ctx context.Context, req *command.Request) error {
	snap := s.collector.Snapshot()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	var b strings.Builder
	fmt.Fprintf(&b, "Uptime: %s\n", formatUptime(s.collector.Uptime()))
	fmt.Fprintf(&b, "Commands executed: %d (failed: %d, timed out: %d)\n",
		snap.Executed, snap.Failed, snap.TimedOut)
	fmt.Fprintf(&b, "Guilds: %d, users: %d\n", s.session.GuildCount(), s.session.UserCount())
	fmt.Fprintf(&b, "Gateway latency: %s\n", s.session.Latency().Round(latencyPrecision))
	fmt.Fprintf(&b, "Heap: %d MB\n", mem.HeapAlloc/(1024*1024))

	if len(snap.PerCommand) > 0 {
		b.WriteString("Per command:\n")
		for _, name := range sortedNames(snap.PerCommand) {
			fmt.Fprintf(&b, "  %s: %d\n", name, snap.PerCommand[name])
		}
	}

	return req.Interaction.Respond(ctx, gateway.Response{
		Content:   b.String(),
		Ephemeral: true,
	})
}

// formatUptime renders a duration as whole days/hours/minutes/seconds.
func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	seconds := d - minutes*time.Minute

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds/time.Second)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds/time.Second)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds/time.Second)
}

func sortedNames(m map[string]uint64) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
