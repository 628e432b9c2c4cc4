package alm

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
)

// FeedConfig names one export extract on disk.
type FeedConfig struct {
	Source string `toml:"source"` // trades, cash or nav
	Path   string `toml:"path"`
}

// Config is the engine configuration, loaded from a TOML file.
type Config struct {
	ReportingCurrency string       `toml:"reporting_currency"`
	Timezone          string       `toml:"timezone"`
	Tolerance         float64      `toml:"tolerance"` // absolute NAV tolerance
	StorePath         string       `toml:"store_path"`
	RatesFile         string       `toml:"rates_file"`
	Feeds             []FeedConfig `toml:"feeds"`
}

// LoadConfig reads and validates a TOML configuration file.
func LoadConfig(path string) (*Config, error) {
	var c Config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return nil, fmt.Errorf("cannot load config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &c, nil
}

// Validate checks the configuration and applies defaults.
func (c *Config) Validate() error {
	if c.ReportingCurrency == "" {
		return fmt.Errorf("reporting_currency is required")
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("tolerance must not be negative")
	}
	for _, f := range c.Feeds {
		switch SourceType(f.Source) {
		case SourceTrades, SourceCash, SourceNav:
		default:
			return fmt.Errorf("unknown feed source %q", f.Source)
		}
	}
	return nil
}

// Location returns the reporting timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ToleranceAmount returns the NAV tolerance as a decimal.
func (c *Config) ToleranceAmount() decimal.Decimal {
	return decimal.NewFromFloat(c.Tolerance)
}
