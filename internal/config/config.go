// Package config loads server configuration from a YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the server.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Game        GameConfig        `mapstructure:"game"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Replication ReplicationConfig `mapstructure:"replication"`
}

// ServerConfig holds the HTTP/WebSocket listener settings.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GameConfig holds gameplay timing and default house rules.
type GameConfig struct {
	BotDelay     time.Duration `mapstructure:"bot_delay"`
	DeclareGrace time.Duration `mapstructure:"declare_grace"`
	SwapOnSeven  bool          `mapstructure:"swap_on_seven"`
	RotateOnZero bool          `mapstructure:"rotate_on_zero"`
}

// DatabaseConfig holds the document store settings. An empty URL selects the
// in-memory store.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// ReplicationConfig tunes document publish retries.
type ReplicationConfig struct {
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// Load reads configuration from the given file, applying defaults and
// UNO_-prefixed environment overrides. A missing file is not an error; the
// defaults stand alone.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("game.bot_delay", 2*time.Second)
	v.SetDefault("game.declare_grace", 3*time.Second)
	v.SetDefault("game.swap_on_seven", false)
	v.SetDefault("game.rotate_on_zero", false)
	v.SetDefault("database.url", "")
	v.SetDefault("replication.max_retries", 3)
	v.SetDefault("replication.retry_backoff", 100*time.Millisecond)

	v.SetEnvPrefix("UNO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	if c.Game.BotDelay < 0 || c.Game.DeclareGrace < 0 {
		return fmt.Errorf("game delays must not be negative")
	}
	if c.Replication.MaxRetries < 0 {
		return fmt.Errorf("replication.max_retries must not be negative")
	}
	return nil
}
