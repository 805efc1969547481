// Package config loads and validates the example server's YAML
// configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// SketchConfig selects the fixed-memory sketch backend.
type SketchConfig struct {
	Enabled bool `yaml:"enabled"`
	Rows    int  `yaml:"rows" validate:"min=1,max=9"`
	Cols    int  `yaml:"cols" validate:"min=1"`
}

// RedisConfig selects the distributed Redis backend.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" validate:"required_with=Enabled,hostname_port"`
	Prefix  string `yaml:"prefix"`
}

// Config is the full example server configuration.
type Config struct {
	Listen       string       `yaml:"listen" validate:"required,hostname_port"`
	Capacity     float64      `yaml:"capacity" validate:"gt=0"`
	WindowMillis int64        `yaml:"windowMillis" validate:"gt=0"`
	SweepMillis  int64        `yaml:"sweepMillis" validate:"min=0"`
	Sketch       SketchConfig `yaml:"sketch"`
	Redis        RedisConfig  `yaml:"redis"`
}

// Default returns the configuration used when no file is given: a per-IP
// keyed limiter of 10 requests burst per 10s window on :8080.
func Default() *Config {
	return &Config{
		Listen:       "127.0.0.1:8080",
		Capacity:     10,
		WindowMillis: 10_000,
		SweepMillis:  60_000,
		Sketch:       SketchConfig{Rows: 4, Cols: 4096},
		Redis:        RedisConfig{Addr: "localhost:6379", Prefix: "limiter:"},
	}
}

// Window returns the drain window as a duration.
func (c *Config) Window() time.Duration {
	return time.Duration(c.WindowMillis) * time.Millisecond
}

// SweepInterval returns how often the keyed backend should be swept; zero
// disables the sweeper.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepMillis) * time.Millisecond
}

// Load reads path, overlays it on the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}
