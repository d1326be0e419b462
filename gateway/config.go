package gateway

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/offlinekit/edgecache/cache"
	"github.com/offlinekit/edgecache/hub"
	"github.com/offlinekit/edgecache/router"
)

const defaultListen = ":8480"

// Config holds initialization parameters for all gateway subsystems.
// Each subsystem section delegates to that subsystem's config-driven
// constructor.
type Config struct {
	Listen   string        `yaml:"listen" env:"EDGECACHE_LISTEN"`     // HTTP listen address
	Upstream string        `yaml:"upstream" env:"EDGECACHE_UPSTREAM"` // base URL proxied requests are resolved against
	Router   router.Config `yaml:"router"`
	Cache    cache.Config  `yaml:"cache"`
	Hub      hub.Config    `yaml:"hub"`
}

// DefaultConfig returns a Config with sensible defaults for all subsystems.
func DefaultConfig() Config {
	return Config{
		Listen: defaultListen,
		Router: router.DefaultConfig(),
		Cache:  cache.DefaultConfig(),
		Hub:    hub.DefaultConfig(),
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method.
func (c *Config) Merge(source *Config) {
	if source.Listen != "" {
		c.Listen = source.Listen
	}
	if source.Upstream != "" {
		c.Upstream = source.Upstream
	}
	c.Router.Merge(&source.Router)
	c.Cache.Merge(&source.Cache)
	c.Hub.Merge(&source.Hub)
}

// LoadConfig reads a YAML config file, merges it over defaults, and applies
// environment variable overrides.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		var loaded Config
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
		cfg.Merge(&loaded)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	return &cfg, nil
}
