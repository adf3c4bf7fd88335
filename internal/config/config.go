// Package config handles configuration loading using viper.
package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level static configuration. Maps to the `coopad:`
// root key in YAML. Immutable after Load.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Security SecurityConfig `mapstructure:"security"`
	Session  SessionConfig  `mapstructure:"session"`
	Client   ClientConfig   `mapstructure:"client"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig contains host transport settings.
type ServerConfig struct {
	BindIP string `mapstructure:"bind_ip"` // empty = all interfaces
	Port   int    `mapstructure:"port"`
	// PIDFile, when set, is written by the serve command.
	PIDFile string `mapstructure:"pid_file"`
}

// SecurityConfig contains the admission engine settings.
type SecurityConfig struct {
	RateLimitMax       float64       `mapstructure:"rate_limit_max"`       // packets/s per client
	RateLimitBurst     int           `mapstructure:"rate_limit_burst"`     // bucket capacity
	IPRateLimitMax     float64       `mapstructure:"ip_rate_limit_max"`    // packets/s per address
	MaxClientsPerIP    int           `mapstructure:"max_clients_per_ip"`
	AutoBlockThreshold int           `mapstructure:"auto_block_threshold"` // violations before auto-block
	BlockDuration      time.Duration `mapstructure:"block_duration"`
	MaxTimestampAge    time.Duration `mapstructure:"max_timestamp_age"`
	MaxTimestampFuture time.Duration `mapstructure:"max_timestamp_future"`
	EnableWhitelist    bool          `mapstructure:"enable_whitelist"`
	WhitelistIPs       []string      `mapstructure:"whitelist_ips"`
	CleanupInterval    time.Duration `mapstructure:"cleanup_interval"`
	ClientRetention    time.Duration `mapstructure:"client_retention"`
}

// SessionConfig contains slot/ownership settings.
type SessionConfig struct {
	OwnershipTimeout time.Duration `mapstructure:"ownership_timeout"`
	CoopEnabled      bool          `mapstructure:"coop_enabled"`
	MaxSlots         int           `mapstructure:"max_slots"` // 1 or 4
}

// ClientConfig contains sender-side settings, used by the client command.
type ClientConfig struct {
	Target       string `mapstructure:"target"`         // host:port
	UpdateRateHz int    `mapstructure:"update_rate_hz"` // 30, 60 or 90
	ClientID     uint32 `mapstructure:"client_id"`      // 0 = random
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string        `mapstructure:"level"`  // debug / info / warn / error
	Format string        `mapstructure:"format"` // json / text
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig configures rotated file log output.
type LogFileConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// MetricsConfig contains the metrics/status HTTP server settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// configRoot is the wrapper matching the YAML structure `coopad: ...`.
type configRoot struct {
	CooPad Config `mapstructure:"coopad"`
}

// Load loads configuration from file. The YAML file uses `coopad:` as the
// root key; env vars override via the key replacer (key
// "coopad.server.port" → env "COOPAD_SERVER_PORT").
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.CooPad

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		// Defaults always unmarshal; a failure here is a programming error.
		panic(err)
	}
	cfg := root.CooPad
	return &cfg
}

// setDefaults sets default values. All keys use the "coopad." prefix to
// match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("coopad.server.bind_ip", "")
	v.SetDefault("coopad.server.port", 7777)
	v.SetDefault("coopad.server.pid_file", "")

	v.SetDefault("coopad.security.rate_limit_max", 120)
	v.SetDefault("coopad.security.rate_limit_burst", 20)
	v.SetDefault("coopad.security.ip_rate_limit_max", 200)
	v.SetDefault("coopad.security.max_clients_per_ip", 3)
	v.SetDefault("coopad.security.auto_block_threshold", 5)
	v.SetDefault("coopad.security.block_duration", "300s")
	v.SetDefault("coopad.security.max_timestamp_age", "5s")
	v.SetDefault("coopad.security.max_timestamp_future", "1s")
	v.SetDefault("coopad.security.enable_whitelist", false)
	v.SetDefault("coopad.security.whitelist_ips", []string{})
	v.SetDefault("coopad.security.cleanup_interval", "60s")
	v.SetDefault("coopad.security.client_retention", "300s")

	v.SetDefault("coopad.session.ownership_timeout", "500ms")
	v.SetDefault("coopad.session.coop_enabled", false)
	v.SetDefault("coopad.session.max_slots", 1)

	v.SetDefault("coopad.client.target", "127.0.0.1:7777")
	v.SetDefault("coopad.client.update_rate_hz", 60)
	v.SetDefault("coopad.client.client_id", 0)

	v.SetDefault("coopad.log.level", "info")
	v.SetDefault("coopad.log.format", "text")
	v.SetDefault("coopad.log.file.enabled", false)
	v.SetDefault("coopad.log.file.path", "/var/log/coopad/coopad.log")
	v.SetDefault("coopad.log.file.rotation.max_size_mb", 100)
	v.SetDefault("coopad.log.file.rotation.max_age_days", 30)
	v.SetDefault("coopad.log.file.rotation.max_backups", 5)
	v.SetDefault("coopad.log.file.rotation.compress", true)

	v.SetDefault("coopad.metrics.enabled", true)
	v.SetDefault("coopad.metrics.listen", ":9091")
	v.SetDefault("coopad.metrics.path", "/metrics")
}

// Validate checks value ranges once at construction.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Security.RateLimitMax <= 0 {
		return fmt.Errorf("security.rate_limit_max must be > 0, got %v", c.Security.RateLimitMax)
	}
	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("security.rate_limit_burst must be > 0, got %d", c.Security.RateLimitBurst)
	}
	if c.Security.IPRateLimitMax <= 0 {
		return fmt.Errorf("security.ip_rate_limit_max must be > 0, got %v", c.Security.IPRateLimitMax)
	}
	if c.Security.MaxClientsPerIP < 1 {
		return fmt.Errorf("security.max_clients_per_ip must be >= 1, got %d", c.Security.MaxClientsPerIP)
	}
	if c.Security.AutoBlockThreshold < 1 {
		return fmt.Errorf("security.auto_block_threshold must be >= 1, got %d", c.Security.AutoBlockThreshold)
	}
	for _, d := range []struct {
		name string
		val  time.Duration
	}{
		{"security.block_duration", c.Security.BlockDuration},
		{"security.max_timestamp_age", c.Security.MaxTimestampAge},
		{"security.max_timestamp_future", c.Security.MaxTimestampFuture},
		{"security.cleanup_interval", c.Security.CleanupInterval},
		{"security.client_retention", c.Security.ClientRetention},
		{"session.ownership_timeout", c.Session.OwnershipTimeout},
	} {
		if d.val <= 0 {
			return fmt.Errorf("%s must be > 0, got %v", d.name, d.val)
		}
	}
	if _, err := c.ParsedWhitelist(); err != nil {
		return err
	}
	if c.Session.MaxSlots != 1 && c.Session.MaxSlots != 4 {
		return fmt.Errorf("session.max_slots must be 1 or 4, got %d", c.Session.MaxSlots)
	}
	if !c.Session.CoopEnabled && c.Session.MaxSlots != 1 {
		return fmt.Errorf("session.max_slots must be 1 unless coop_enabled")
	}
	switch c.Client.UpdateRateHz {
	case 30, 60, 90:
	default:
		return fmt.Errorf("client.update_rate_hz must be 30, 60 or 90, got %d", c.Client.UpdateRateHz)
	}
	return nil
}

// ParsedWhitelist parses security.whitelist_ips into addresses.
func (c *Config) ParsedWhitelist() ([]netip.Addr, error) {
	out := make([]netip.Addr, 0, len(c.Security.WhitelistIPs))
	for _, s := range c.Security.WhitelistIPs {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("security.whitelist_ips: invalid address %q: %w", s, err)
		}
		out = append(out, addr)
	}
	return out, nil
}

// Slots returns the effective slot count for the session manager.
func (c *Config) Slots() int {
	if c.Session.CoopEnabled {
		return c.Session.MaxSlots
	}
	return 1
}
