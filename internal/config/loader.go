package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Sentinel errors for callers using errors.Is.
var (
	ErrInvalidConfig = errors.New("config: invalid config")
	ErrLoadConfig    = errors.New("config: load failed")
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if STUDYEYES_CONFIG is set
//  3. env (prefix STUDYEYES_)
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("STUDYEYES_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: STUDYEYES_ENDPOINT, STUDYEYES_TICK_MS, ...
	// Underscores are preserved so keys match the koanf struct tags.
	envProvider := env.Provider("STUDYEYES_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "studyeyes_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Source {
	case "live", "synthetic":
	default:
		return fmt.Errorf("%w: source must be live or synthetic, got %q", ErrInvalidConfig, c.Source)
	}
	if c.Source == "live" && c.Endpoint == "" {
		return fmt.Errorf("%w: endpoint must not be empty for the live source", ErrInvalidConfig)
	}
	if c.WebAddr == "" {
		return fmt.Errorf("%w: web_addr must not be empty", ErrInvalidConfig)
	}
	if c.MaxReconnectAttempts < 1 {
		return fmt.Errorf("%w: max_reconnect_attempts must be at least 1", ErrInvalidConfig)
	}
	if c.TickMS < 1 {
		return fmt.Errorf("%w: tick_ms must be at least 1", ErrInvalidConfig)
	}
	return nil
}
