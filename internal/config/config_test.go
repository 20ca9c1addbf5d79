// ABOUTME: Tests for configuration parsing, defaults, env expansion, and range validation.
// ABOUTME: Table-driven over the recognized ranges from the configuration surface.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
bot:
  token: abc123
server:
  http_addr: 127.0.0.1:8080
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, DefaultConcurrent, cfg.Commands.MaxConcurrent)
	assert.Equal(t, DefaultTimeout, cfg.Commands.Timeout)
	assert.Equal(t, DefaultGateWait, cfg.Commands.GateWait)
	assert.Equal(t, DefaultMemoryMB, cfg.Health.MemoryThresholdMB)
	assert.Equal(t, DefaultReadyTimeout, cfg.Connection.ReadyTimeout)
	assert.Equal(t, DefaultDisconnectGrace, cfg.Connection.DisconnectGrace)
	assert.Equal(t, DefaultLatencyThreshold, cfg.Connection.LatencyThreshold)
	assert.Equal(t, DefaultRetryAttempts, cfg.Connection.Retry.MaxAttempts)
	assert.Equal(t, DefaultRetryBaseDelay, cfg.Connection.Retry.BaseDelay)
	assert.Equal(t, DefaultBreakerThreshold, cfg.Connection.Breaker.FailureThreshold)
	assert.Equal(t, DefaultBreakerCooldown, cfg.Connection.Breaker.Cooldown)
	assert.Equal(t, RegistrationGlobal, cfg.Bot.Registration.Mode)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(`
bot:
  token: abc123
  registration:
    mode: guild
    guild_id: "9876"
commands:
  max_concurrent: 25
  timeout: 45s
  gate_wait: 2s
connection:
  ready_timeout: 90s
  disconnect_grace: 10s
  latency_threshold: 500ms
  retry:
    max_attempts: 3
    base_delay: 250ms
  breaker:
    failure_threshold: 4
    cooldown: 1m
health:
  memory_threshold_mb: 1024
server:
  http_addr: 127.0.0.1:8080
  grpc_addr: 127.0.0.1:9090
auth:
  jwt_secret: sekrit
logging:
  level: debug
  format: json
`))
	require.NoError(t, err)

	assert.Equal(t, "guild", cfg.Bot.Registration.Mode)
	assert.Equal(t, "9876", cfg.Bot.Registration.GuildID)
	assert.Equal(t, 25, cfg.Commands.MaxConcurrent)
	assert.Equal(t, 45*time.Second, cfg.Commands.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Commands.GateWait)
	assert.Equal(t, 90*time.Second, cfg.Connection.ReadyTimeout)
	assert.Equal(t, 10*time.Second, cfg.Connection.DisconnectGrace)
	assert.Equal(t, 500*time.Millisecond, cfg.Connection.LatencyThreshold)
	assert.Equal(t, 3, cfg.Connection.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Connection.Retry.BaseDelay)
	assert.Equal(t, 4, cfg.Connection.Breaker.FailureThreshold)
	assert.Equal(t, time.Minute, cfg.Connection.Breaker.Cooldown)
	assert.Equal(t, 1024, cfg.Health.MemoryThresholdMB)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.GRPCAddr)
	assert.Equal(t, "sekrit", cfg.Auth.JWTSecret)
}

func TestParse_ExplicitZeroGrace(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML + `
connection:
  disconnect_grace: 0s
`))
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.Connection.DisconnectGrace,
		"explicit 0s must not be replaced by the default grace")
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("COVEN_BOT_TOKEN", "env-token")

	cfg, err := Parse([]byte(`
bot:
  token: ${COVEN_BOT_TOKEN}
server:
  http_addr: 127.0.0.1:8080
`))
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Bot.Token)
}

func TestParse_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing token", `
server:
  http_addr: 127.0.0.1:8080
`, "bot.token"},
		{"concurrency too high", minimalYAML + `
commands:
  max_concurrent: 101
`, "max_concurrent"},
		{"concurrency negative", minimalYAML + `
commands:
  max_concurrent: -1
`, "max_concurrent"},
		{"timeout too long", minimalYAML + `
commands:
  timeout: 301s
`, "commands.timeout"},
		{"timeout too short", minimalYAML + `
commands:
  timeout: 500ms
`, "commands.timeout"},
		{"memory threshold too low", minimalYAML + `
health:
  memory_threshold_mb: 50
`, "memory_threshold_mb"},
		{"memory threshold too high", minimalYAML + `
health:
  memory_threshold_mb: 20000
`, "memory_threshold_mb"},
		{"bad registration mode", `
bot:
  token: abc123
  registration:
    mode: everywhere
server:
  http_addr: 127.0.0.1:8080
`, "registration.mode"},
		{"guild mode without id", `
bot:
  token: abc123
  registration:
    mode: guild
server:
  http_addr: 127.0.0.1:8080
`, "guild_id"},
		{"missing http addr", `
bot:
  token: abc123
`, "http_addr"},
		{"tailscale without hostname", `
bot:
  token: abc123
tailscale:
  enabled: true
`, "hostname"},
		{"bad duration", minimalYAML + `
commands:
  timeout: thirty
`, "parsing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "abc123", cfg.Bot.Token)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}
