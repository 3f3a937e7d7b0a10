// Package config loads forecaster settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/sartorproj/revforecast/autoarima"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Config is the forecaster configuration. Every field is read from a
// REVFORECAST_ prefixed variable.
type Config struct {
	StoreDriver string `env:"STORE_DRIVER" envDefault:"sqlite"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"revforecast.db"`
	MySQLDSN    string `env:"MYSQL_DSN"`

	Horizon          int           `env:"HORIZON" envDefault:"5"`
	Workers          int           `env:"WORKERS" envDefault:"4"`
	ScheduleInterval time.Duration `env:"SCHEDULE_INTERVAL" envDefault:"24h"`
	HTTPAddr         string        `env:"HTTP_ADDR" envDefault:":8080"`

	MaxP         int    `env:"MAX_P" envDefault:"2"`
	MaxD         int    `env:"MAX_D" envDefault:"1"`
	MaxQ         int    `env:"MAX_Q" envDefault:"2"`
	Criterion    string `env:"CRITERION" envDefault:"aic"`
	Differencing string `env:"DIFFERENCING" envDefault:"grid"`
	Stepwise     bool   `env:"STEPWISE" envDefault:"false"`

	// ClampNonNegative floors stored forecast values at zero.
	ClampNonNegative bool `env:"CLAMP_NON_NEGATIVE" envDefault:"false"`
	// WriteBaseline stores the linear-regression projection beside the
	// engine forecast.
	WriteBaseline bool `env:"WRITE_BASELINE" envDefault:"true"`

	// World Bank indicator API used by the load command.
	WorldBankURL      string `env:"WORLDBANK_URL" envDefault:"https://api.worldbank.org/v2"`
	WorldBankMaxTries uint   `env:"WORLDBANK_MAX_TRIES" envDefault:"4"`

	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "REVFORECAST_"}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			errs = append(errs, errors.New("sqlite path is required"))
		}
	case DriverMySQL:
		if strings.TrimSpace(c.MySQLDSN) == "" {
			errs = append(errs, errors.New("mysql dsn is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.StoreDriver))
	}
	if c.Horizon < 1 {
		errs = append(errs, fmt.Errorf("horizon must be at least 1, got %d", c.Horizon))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.ScheduleInterval <= 0 {
		errs = append(errs, fmt.Errorf("schedule interval must be positive, got %s", c.ScheduleInterval))
	}
	if strings.TrimSpace(c.WorldBankURL) == "" {
		errs = append(errs, errors.New("world bank url is required"))
	}
	if c.WorldBankMaxTries < 1 {
		errs = append(errs, errors.New("world bank max tries must be at least 1"))
	}
	if err := c.SearchConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SearchConfig returns the order search bounds.
func (c *Config) SearchConfig() *autoarima.Config {
	return &autoarima.Config{
		MaxP:         c.MaxP,
		MaxD:         c.MaxD,
		MaxQ:         c.MaxQ,
		Criterion:    strings.ToLower(c.Criterion),
		Differencing: strings.ToLower(c.Differencing),
		Stepwise:     c.Stepwise,
	}
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level: %w", err)
	}
	return level, nil
}
