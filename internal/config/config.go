// ABOUTME: Configuration loading and parsing for coven-bot
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Registration modes
const (
	RegistrationGlobal = "global"
	RegistrationGuild  = "guild"
)

// Config represents the complete coven-bot configuration
type Config struct {
	Bot        BotConfig        `yaml:"bot"`
	Commands   CommandsConfig   `yaml:"commands"`
	Connection ConnectionConfig `yaml:"connection"`
	Health     HealthConfig     `yaml:"health"`
	Server     ServerConfig     `yaml:"server"`
	Tailscale  TailscaleConfig  `yaml:"tailscale"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// BotConfig holds platform credentials and command registration targeting
type BotConfig struct {
	Token        string             `yaml:"token"`
	Registration RegistrationConfig `yaml:"registration"`
}

// RegistrationConfig selects where the command set is registered.
// Exactly one mode is used per deployment.
type RegistrationConfig struct {
	Mode    string `yaml:"mode"` // "global" or "guild"
	GuildID string `yaml:"guild_id"`
}

// CommandsConfig holds dispatch limits
type CommandsConfig struct {
	MaxConcurrent int `yaml:"max_concurrent"`

	Timeout  time.Duration `yaml:"-"`
	GateWait time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	TimeoutRaw  string `yaml:"timeout"`
	GateWaitRaw string `yaml:"gate_wait"`
}

// ConnectionConfig holds gateway connection behavior
type ConnectionConfig struct {
	Retry   RetryConfig   `yaml:"retry"`
	Breaker BreakerConfig `yaml:"breaker"`

	ReadyTimeout     time.Duration `yaml:"-"`
	DisconnectGrace  time.Duration `yaml:"-"`
	LatencyThreshold time.Duration `yaml:"-"`

	ReadyTimeoutRaw     string `yaml:"ready_timeout"`
	DisconnectGraceRaw  string `yaml:"disconnect_grace"`
	LatencyThresholdRaw string `yaml:"latency_threshold"`

	// disconnectGraceSet distinguishes "absent" from an explicit "0s"
	disconnectGraceSet bool
}

// RetryConfig holds retry policy settings for gateway transport calls
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`

	BaseDelay    time.Duration `yaml:"-"`
	BaseDelayRaw string        `yaml:"base_delay"`
}

// BreakerConfig holds circuit breaker settings for gateway transport calls
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold"`

	Cooldown    time.Duration `yaml:"-"`
	CooldownRaw string        `yaml:"cooldown"`
}

// HealthConfig holds health reporter thresholds
type HealthConfig struct {
	MemoryThresholdMB int `yaml:"memory_threshold_mb"`
}

// ServerConfig holds monitor server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration for the monitor
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
	HTTPS     bool   `yaml:"https"`  // Serve with Tailscale-provisioned certs
	Funnel    bool   `yaml:"funnel"` // Enable public Funnel (implies HTTPS)
}

// AuthConfig holds monitor API authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Recognized ranges and defaults for the dispatch and health settings.
const (
	MinConcurrent = 1
	MaxConcurrent = 100
	MinTimeout    = time.Second
	MaxTimeout    = 300 * time.Second
	MinMemoryMB   = 100
	MaxMemoryMB   = 10000

	DefaultConcurrent       = 10
	DefaultTimeout          = 30 * time.Second
	DefaultGateWait         = time.Second
	DefaultMemoryMB         = 512
	DefaultReadyTimeout     = 2 * time.Minute
	DefaultDisconnectGrace  = 30 * time.Second
	DefaultLatencyThreshold = time.Second
	DefaultRetryAttempts    = 5
	DefaultRetryBaseDelay   = 500 * time.Millisecond
	DefaultBreakerThreshold = 5
	DefaultBreakerCooldown  = 30 * time.Second
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values and defaults applied
// before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse parses raw YAML configuration bytes.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		raw  string
		dst  *time.Duration
		name string
	}{
		{cfg.Commands.TimeoutRaw, &cfg.Commands.Timeout, "commands.timeout"},
		{cfg.Commands.GateWaitRaw, &cfg.Commands.GateWait, "commands.gate_wait"},
		{cfg.Connection.ReadyTimeoutRaw, &cfg.Connection.ReadyTimeout, "connection.ready_timeout"},
		{cfg.Connection.LatencyThresholdRaw, &cfg.Connection.LatencyThreshold, "connection.latency_threshold"},
		{cfg.Connection.Retry.BaseDelayRaw, &cfg.Connection.Retry.BaseDelay, "connection.retry.base_delay"},
		{cfg.Connection.Breaker.CooldownRaw, &cfg.Connection.Breaker.Cooldown, "connection.breaker.cooldown"},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	// disconnect_grace distinguishes an explicit "0s" (disconnects
	// immediately fatal) from the field being absent (default grace).
	if cfg.Connection.DisconnectGraceRaw != "" {
		d, err := time.ParseDuration(cfg.Connection.DisconnectGraceRaw)
		if err != nil {
			return fmt.Errorf("parsing connection.disconnect_grace %q: %w", cfg.Connection.DisconnectGraceRaw, err)
		}
		cfg.Connection.DisconnectGrace = d
		cfg.Connection.disconnectGraceSet = true
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Commands.MaxConcurrent == 0 {
		c.Commands.MaxConcurrent = DefaultConcurrent
	}
	if c.Commands.Timeout == 0 {
		c.Commands.Timeout = DefaultTimeout
	}
	if c.Commands.GateWait == 0 {
		c.Commands.GateWait = DefaultGateWait
	}
	if c.Connection.ReadyTimeout == 0 {
		c.Connection.ReadyTimeout = DefaultReadyTimeout
	}
	if !c.Connection.disconnectGraceSet {
		c.Connection.DisconnectGrace = DefaultDisconnectGrace
	}
	if c.Connection.LatencyThreshold == 0 {
		c.Connection.LatencyThreshold = DefaultLatencyThreshold
	}
	if c.Connection.Retry.MaxAttempts == 0 {
		c.Connection.Retry.MaxAttempts = DefaultRetryAttempts
	}
	if c.Connection.Retry.BaseDelay == 0 {
		c.Connection.Retry.BaseDelay = DefaultRetryBaseDelay
	}
	if c.Connection.Breaker.FailureThreshold == 0 {
		c.Connection.Breaker.FailureThreshold = DefaultBreakerThreshold
	}
	if c.Connection.Breaker.Cooldown == 0 {
		c.Connection.Breaker.Cooldown = DefaultBreakerCooldown
	}
	if c.Health.MemoryThresholdMB == 0 {
		c.Health.MemoryThresholdMB = DefaultMemoryMB
	}
	if c.Bot.Registration.Mode == "" {
		c.Bot.Registration.Mode = RegistrationGlobal
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks that all required configuration fields are present and
// within their recognized ranges.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return fmt.Errorf("bot.token is required")
	}

	switch c.Bot.Registration.Mode {
	case RegistrationGlobal:
	case RegistrationGuild:
		if c.Bot.Registration.GuildID == "" {
			return fmt.Errorf("bot.registration.guild_id is required when mode is %q", RegistrationGuild)
		}
	default:
		return fmt.Errorf("bot.registration.mode must be %q or %q, got %q",
			RegistrationGlobal, RegistrationGuild, c.Bot.Registration.Mode)
	}

	if c.Commands.MaxConcurrent < MinConcurrent || c.Commands.MaxConcurrent > MaxConcurrent {
		return fmt.Errorf("commands.max_concurrent must be between %d and %d, got %d",
			MinConcurrent, MaxConcurrent, c.Commands.MaxConcurrent)
	}
	if c.Commands.Timeout < MinTimeout || c.Commands.Timeout > MaxTimeout {
		return fmt.Errorf("commands.timeout must be between %s and %s, got %s",
			MinTimeout, MaxTimeout, c.Commands.Timeout)
	}
	if c.Health.MemoryThresholdMB < MinMemoryMB || c.Health.MemoryThresholdMB > MaxMemoryMB {
		return fmt.Errorf("health.memory_threshold_mb must be between %d and %d, got %d",
			MinMemoryMB, MaxMemoryMB, c.Health.MemoryThresholdMB)
	}
	if c.Connection.DisconnectGrace < 0 {
		return fmt.Errorf("connection.disconnect_grace must not be negative")
	}

	// Monitor addresses are required unless Tailscale carries the listeners
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	return nil
}
