// Package config handles layered YAML configuration with environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// Config holds all barista configuration.
type Config struct {
	Machine Machine `yaml:"machine"`
	Sources Sources `yaml:"sources"`
	Refill  Refill  `yaml:"refill"`
	Log     Log     `yaml:"log"`
	Reports Reports `yaml:"reports"`
}

// Machine holds hardware settings.
type Machine struct {
	Outlets  int `yaml:"outlets"`  // Beverages dispensed at once
	Capacity int `yaml:"capacity"` // Per-ingredient maximum; 0 = unbounded
}

// Sources holds document locations. Empty means the embedded default.
type Sources struct {
	Recipes     string `yaml:"recipes"`
	Ingredients string `yaml:"ingredients"`
	Scenarios   string `yaml:"scenarios"`
}

// Refill holds refill throttling settings.
type Refill struct {
	Rate  float64 `yaml:"rate"`  // Refills per second; 0 = unlimited
	Burst int     `yaml:"burst"` // Refills allowed back to back
}

// Log holds diagnostics settings.
type Log struct {
	Level  string `yaml:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `yaml:"format"` // "console" | "json"
}

// Reports holds batch report settings.
type Reports struct {
	Dir string `yaml:"dir"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Machine: Machine{
			Outlets: 4,
		},
		Refill: Refill{
			Burst: 1,
		},
		Log: Log{
			Level:  "warn",
			Format: "console",
		},
		Reports: Reports{
			Dir: ".barista/reports",
		},
	}
}

// LoadLayered loads config from multiple paths with increasing priority.
// Later paths override earlier ones. Missing files are skipped.
func LoadLayered(paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range paths {
		layer, err := loadLayer(path)
		if err != nil {
			return nil, err
		}
		if layer == nil {
			continue
		}
		cfg.merge(layer)
	}

	return &cfg, nil
}

// Validate checks that config values are usable.
func (c *Config) Validate() error {
	if c.Machine.Outlets <= 0 {
		return fmt.Errorf("config: machine.outlets must be positive, got %d", c.Machine.Outlets)
	}
	if c.Machine.Capacity < 0 {
		return fmt.Errorf("config: machine.capacity must be non-negative, got %d", c.Machine.Capacity)
	}
	if c.Refill.Rate < 0 {
		return fmt.Errorf("config: refill.rate must be non-negative, got %v", c.Refill.Rate)
	}
	if c.Refill.Rate > 0 && c.Refill.Burst < 1 {
		return fmt.Errorf("config: refill.burst must be at least 1 when refill.rate is set, got %d", c.Refill.Burst)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("config: log.level must be debug, info, warn, or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
		// valid
	default:
		return fmt.Errorf("config: log.format must be \"console\" or \"json\", got %q", c.Log.Format)
	}
	if c.Reports.Dir == "" {
		return errors.New("config: reports.dir cannot be empty")
	}
	return nil
}

// ApplyEnv applies environment variable overrides to the config.
// Supported variables: BARISTA_OUTLETS, BARISTA_CAPACITY, BARISTA_RECIPES,
// BARISTA_INGREDIENTS, BARISTA_LOG_LEVEL.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("BARISTA_OUTLETS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid BARISTA_OUTLETS %q: %w", v, err)
		}
		c.Machine.Outlets = n
	}
	if v := os.Getenv("BARISTA_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid BARISTA_CAPACITY %q: %w", v, err)
		}
		c.Machine.Capacity = n
	}
	if v := os.Getenv("BARISTA_RECIPES"); v != "" {
		c.Sources.Recipes = v
	}
	if v := os.Getenv("BARISTA_INGREDIENTS"); v != "" {
		c.Sources.Ingredients = v
	}
	if v := os.Getenv("BARISTA_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// RefillLimiter returns a limiter for the configured refill rate, or nil
// when refills are unlimited.
func (c *Config) RefillLimiter() *rate.Limiter {
	if c.Refill.Rate <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(c.Refill.Rate), c.Refill.Burst)
}

// rawConfig mirrors Config but uses pointers to distinguish set vs unset fields.
type rawConfig struct {
	Machine *rawMachine `yaml:"machine"`
	Sources *rawSources `yaml:"sources"`
	Refill  *rawRefill  `yaml:"refill"`
	Log     *rawLog     `yaml:"log"`
	Reports *rawReports `yaml:"reports"`
}

type rawMachine struct {
	Outlets  *int `yaml:"outlets"`
	Capacity *int `yaml:"capacity"`
}

type rawSources struct {
	Recipes     *string `yaml:"recipes"`
	Ingredients *string `yaml:"ingredients"`
	Scenarios   *string `yaml:"scenarios"`
}

type rawRefill struct {
	Rate  *float64 `yaml:"rate"`
	Burst *int     `yaml:"burst"`
}

type rawLog struct {
	Level  *string `yaml:"level"`
	Format *string `yaml:"format"`
}

type rawReports struct {
	Dir *string `yaml:"dir"`
}

// loadLayer reads a single config file into a rawConfig for selective merging.
// Returns nil if the file does not exist. Rejects unknown fields.
func loadLayer(path string) (*rawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var raw rawConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		// Comment-only YAML files produce EOF with no decoded content.
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &raw, nil
}

// merge applies non-nil fields from a rawConfig layer onto this Config.
func (c *Config) merge(layer *rawConfig) {
	if m := layer.Machine; m != nil {
		setIf(&c.Machine.Outlets, m.Outlets)
		setIf(&c.Machine.Capacity, m.Capacity)
	}
	if s := layer.Sources; s != nil {
		setIf(&c.Sources.Recipes, s.Recipes)
		setIf(&c.Sources.Ingredients, s.Ingredients)
		setIf(&c.Sources.Scenarios, s.Scenarios)
	}
	if r := layer.Refill; r != nil {
		setIf(&c.Refill.Rate, r.Rate)
		setIf(&c.Refill.Burst, r.Burst)
	}
	if l := layer.Log; l != nil {
		setIf(&c.Log.Level, l.Level)
		setIf(&c.Log.Format, l.Format)
	}
	if r := layer.Reports; r != nil {
		setIf(&c.Reports.Dir, r.Dir)
	}
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
