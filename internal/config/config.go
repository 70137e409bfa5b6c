// Package config reads server settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"spellcast/server/internal/cast"
	"spellcast/server/logging"
)

type Config struct {
	Addr            string   `env:"SPELLCAST_ADDR" envDefault:":8080"`
	TickRate        int      `env:"SPELLCAST_TICK_RATE" envDefault:"30"`
	Catalog         []string `env:"SPELLCAST_CATALOG" envSeparator:"," envDefault:"config/abilities.yaml"`
	LogSinks        []string `env:"SPELLCAST_LOG_SINKS" envSeparator:"," envDefault:"console"`
	LogJSONPath     string   `env:"SPELLCAST_LOG_JSON_PATH"`
	LogMinSeverity  string   `env:"SPELLCAST_LOG_MIN_SEVERITY" envDefault:"info"`
	CommandCapacity int      `env:"SPELLCAST_COMMAND_CAPACITY" envDefault:"256"`
	FaultPolicy     string   `env:"SPELLCAST_FAULT_POLICY" envDefault:"abort"`
	OTelEndpoint    string   `env:"SPELLCAST_OTEL_ENDPOINT"`
	OTelEnabled     bool     `env:"SPELLCAST_OTEL_ENABLED" envDefault:"true"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.TickRate <= 0 {
		return fmt.Errorf("config: tick rate must be positive, got %d", c.TickRate)
	}
	if c.CommandCapacity <= 0 {
		return fmt.Errorf("config: command capacity must be positive, got %d", c.CommandCapacity)
	}
	if _, err := c.Severity(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := c.Faults(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for _, sink := range c.LogSinks {
		switch sink {
		case "console", "memory":
		case "json":
			if c.LogJSONPath == "" {
				return fmt.Errorf("config: json sink requires SPELLCAST_LOG_JSON_PATH")
			}
		default:
			return fmt.Errorf("config: unknown log sink %q", sink)
		}
	}
	return nil
}

func (c Config) TickInterval() time.Duration {
	if c.TickRate <= 0 {
		return time.Second / 30
	}
	return time.Second / time.Duration(c.TickRate)
}

func (c Config) Severity() (logging.Severity, error) {
	return logging.ParseSeverity(c.LogMinSeverity)
}

func (c Config) Faults() (cast.FaultPolicy, error) {
	return cast.ParseFaultPolicy(c.FaultPolicy)
}

// Logging builds the router configuration. The websocket feed sink is always
// attached by the host and is not listed here.
func (c Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = append([]string(nil), c.LogSinks...)
	if severity, err := c.Severity(); err == nil {
		cfg.MinimumSeverity = severity
	}
	cfg.JSON.FilePath = c.LogJSONPath
	return cfg
}
