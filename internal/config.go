package internal

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultConfigFilename = "angular.yaml"

type IndexConfig struct {
	Dimension int  `yaml:"dimension"`
	Trees     int  `yaml:"trees"`
	Jobs      int  `yaml:"jobs"`
	Prefault  bool `yaml:"prefault"`
	// Seed makes builds repeatable when Jobs is 1. Zero keeps the engine default.
	Seed uint32 `yaml:"seed"`
}

type QueryConfig struct {
	Count   int `yaml:"count"`
	SearchK int `yaml:"search_k"`
}

type ServeConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

type Config struct {
	Index IndexConfig `yaml:"index"`
	Query QueryConfig `yaml:"query"`
	Serve ServeConfig `yaml:"serve"`
}

func DefaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Dimension: 0,
			Trees:     -1,
			Jobs:      -1,
		},
		Query: QueryConfig{
			Count:   10,
			SearchK: -1,
		},
		Serve: ServeConfig{
			Debounce: 500 * time.Millisecond,
		},
	}
}

// LoadConfig reads path on top of the defaults. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Validate checks values the index would reject later. A zero dimension is
// allowed here since commands can take it from a flag.
func (c *Config) Validate() error {
	if c.Index.Dimension < 0 {
		return fmt.Errorf("index.dimension: %w", ErrInvalidDimension)
	}
	if c.Index.Trees == 0 || c.Index.Trees < -1 {
		return fmt.Errorf("index.trees: %w", ErrInvalidTreeCount)
	}
	if c.Query.Count < 0 {
		return fmt.Errorf("query.count: %w", ErrInvalidCount)
	}
	if c.Query.SearchK == 0 || c.Query.SearchK < -1 {
		return fmt.Errorf("query.search_k: %w", ErrInvalidSearchK)
	}
	if c.Serve.Debounce < 0 {
		return errors.New("serve.debounce must not be negative")
	}
	return nil
}

func (c *Config) IndexOptions() Options {
	opts := DefaultOptions()
	opts.Jobs = c.Index.Jobs
	opts.Seed = c.Index.Seed
	return opts
}
