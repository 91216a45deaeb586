// Package config loads ogn-gateway's runtime configuration.
//
// Per the gateway's external contract, REDIS_URL and the --host/--port
// flags are never file-configurable: they come from the environment and
// the command line only. An optional TOML file (--config) may override
// the remaining, non-mandatory settings (device-database cadence/URL,
// upstream APRS-IS address). A missing config file is not an error —
// GetDefaultConfig's values apply.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration wraps time.Duration so it can be expressed as "3h", "30m" etc.
// in the TOML file instead of a raw integer count of nanoseconds.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// Config is the gateway's full runtime configuration.
type Config struct {
	// RedisURL is required and always comes from the REDIS_URL
	// environment variable; it has no TOML field.
	RedisURL string `toml:"-"`

	// Host and Port are always CLI flags; they have no TOML field.
	Host string `toml:"-"`
	Port string `toml:"-"`

	Debug     bool   `toml:"-"`
	SentryDSN string `toml:"-"`

	DDBURL      string   `toml:"ddb_url"`
	DDBInterval Duration `toml:"ddb_interval"`

	UpstreamAddr     string `toml:"upstream_addr"`
	UpstreamCallsign string `toml:"upstream_callsign"`
}

const (
	DefaultHost             = "127.0.0.1"
	DefaultPort             = "8080"
	DefaultDDBURL           = "http://ddb.glidernet.org/download/?j=1&t=1"
	DefaultDDBInterval      = 3 * time.Hour
	DefaultUpstreamAddr     = "aprs.glidernet.org:14580"
	DefaultUpstreamCallsign = "OGNGATEWAY"
)

// GetDefaultConfig returns the configuration used when no file overrides
// are present.
func GetDefaultConfig() *Config {
	return &Config{
		Host:             DefaultHost,
		Port:             DefaultPort,
		DDBURL:           DefaultDDBURL,
		DDBInterval:      Duration{DefaultDDBInterval},
		UpstreamAddr:     DefaultUpstreamAddr,
		UpstreamCallsign: DefaultUpstreamCallsign,
	}
}

// LoadFileOverrides reads the optional TOML file at configPath and applies
// any fields it sets on top of GetDefaultConfig(). A missing file is not
// an error.
func LoadFileOverrides(configPath string) (*Config, error) {
	cfg := GetDefaultConfig()

	if configPath == "" {
		return cfg, nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.DDBURL == "" {
		cfg.DDBURL = DefaultDDBURL
	}
	if cfg.DDBInterval.Duration == 0 {
		cfg.DDBInterval = Duration{DefaultDDBInterval}
	}
	if cfg.UpstreamAddr == "" {
		cfg.UpstreamAddr = DefaultUpstreamAddr
	}
	if cfg.UpstreamCallsign == "" {
		cfg.UpstreamCallsign = DefaultUpstreamCallsign
	}

	return cfg, nil
}

// Load builds the final Config from the optional TOML file plus the
// mandatory environment/flag values, and validates it.
//
// redisURL, host and port are passed in from the environment/CLI layer
// (cmd package) since, unlike the TOML-overridable fields above, they are
// never read from the config file.
func Load(configPath, redisURL, host, port string, debug bool, sentryDSN string) (*Config, error) {
	cfg, err := LoadFileOverrides(configPath)
	if err != nil {
		return nil, err
	}

	cfg.RedisURL = redisURL
	if host != "" {
		cfg.Host = host
	}
	if port != "" {
		cfg.Port = port
	}
	cfg.Debug = debug
	cfg.SentryDSN = sentryDSN

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the mandatory, non-file-overridable fields are
// present. A missing or unparseable REDIS_URL is a fatal startup error
// per the gateway's error handling contract.
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	return nil
}

// ListenAddr returns the host:port pair the HTTP server should bind to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// GetDefaultConfigPath returns an ogn-gateway/config.toml path under the
// user's config directory. The --config flag does not default to it: when
// --config is not given, no file is read.
func GetDefaultConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.toml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "ogn-gateway", "config.toml")
}
