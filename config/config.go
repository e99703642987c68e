// Package config loads application configuration from file and
// environment, with sensible defaults for local development.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Store  StoreConfig  `mapstructure:"store"`
	Ledger LedgerConfig `mapstructure:"ledger"`
	CORS   CORSConfig   `mapstructure:"cors"`
	Logger LoggerConfig `mapstructure:"logger"`
	Demo   DemoConfig   `mapstructure:"demo"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StoreConfig selects the document store. An empty path keeps all state
// in memory, matching the source system; a path (or ":memory:") uses
// the SQLite store instead.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// LedgerConfig tunes the posting simulator.
type LedgerConfig struct {
	Latency time.Duration `mapstructure:"latency"`
}

// CORSConfig holds allowed origins for the browser frontend.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggerConfig holds logger configuration.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// DemoConfig optionally seeds a demo scenario at startup.
type DemoConfig struct {
	Scenario string `mapstructure:"scenario"`
}

// Load reads configuration. configPath may be empty, in which case only
// defaults and FINREQ_* environment variables apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("FINREQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("store.path", "")
	v.SetDefault("ledger.latency", 1500*time.Millisecond)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173", "http://localhost:8080"})

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")

	v.SetDefault("demo.scenario", "")
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Ledger.Latency < 0 {
		return fmt.Errorf("ledger.latency must not be negative")
	}
	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console, got %q", c.Logger.Format)
	}
	return nil
}
