package router

import "time"

const defaultPartition = "dynamic-v1"

// Config holds router initialization parameters.
type Config struct {
	Strategy     string        `yaml:"strategy" env:"EDGECACHE_STRATEGY"`           // one of the five strategy names
	Partition    string        `yaml:"partition" env:"EDGECACHE_PARTITION"`         // active cache partition name
	FetchTimeout time.Duration `yaml:"fetch_timeout" env:"EDGECACHE_FETCH_TIMEOUT"` // per-request upstream timeout
}

// DefaultConfig returns the default router configuration.
func DefaultConfig() Config {
	return Config{
		Strategy:     DefaultStrategy.String(),
		Partition:    defaultPartition,
		FetchTimeout: 30 * time.Second,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Strategy != "" {
		c.Strategy = source.Strategy
	}
	if source.Partition != "" {
		c.Partition = source.Partition
	}
	if source.FetchTimeout > 0 {
		c.FetchTimeout = source.FetchTimeout
	}
}
