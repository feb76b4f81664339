package cacheinfra

import (
	"time"

	"github.com/viccon/sturdyc"
)

// StoreConfig holds the configuration for the in-memory response store.
type StoreConfig struct {
	// Capacity is the hard cap on the number of entries held at once.
	// Must be greater than 0.
	Capacity int

	// DefaultTTL is applied when Set receives a non-positive ttl.
	// Must be greater than 0.
	DefaultTTL time.Duration

	// SweepInterval sets how often the background sweep purges expired entries.
	// Zero disables active expiry; entries are then only removed lazily.
	SweepInterval time.Duration
}

// DefaultStoreConfig returns a StoreConfig with the listing defaults.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Capacity:      1000,
		DefaultTTL:    10 * time.Minute,
		SweepInterval: 5 * time.Minute,
	}
}

// Validate checks if the configuration values are valid.
func (c StoreConfig) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}

	if c.DefaultTTL <= 0 {
		return &ConfigError{Field: "DefaultTTL", Message: "must be greater than 0"}
	}

	if c.SweepInterval < 0 {
		return &ConfigError{Field: "SweepInterval", Message: "must be non-negative"}
	}

	return nil
}

// BatchConfig holds the configuration for the sturdyc backed batch cache.
type BatchConfig struct {
	// Capacity defines the maximum number of entries that the cache can store.
	Capacity int

	// NumShards determines the number of cache shards for concurrent access.
	NumShards int

	// TTL is the time-to-live for cached entries.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when a shard reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often sturdyc checks for expired entries.
	// Zero value uses the sturdyc default.
	EvictionInterval time.Duration
}

// DefaultBatchConfig returns a BatchConfig sized for image and translation sets.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		Capacity:           10000,
		NumShards:          64,
		TTL:                10 * time.Minute,
		EvictionPercentage: 10,
	}
}

// ToSturdycOptions converts the config to the sturdyc options that are not
// passed positionally to sturdyc.New.
func (c BatchConfig) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// Validate checks if the configuration values are valid.
func (c BatchConfig) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}

	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}

	if c.Capacity < c.NumShards {
		return &ConfigError{Field: "NumShards", Message: "must not exceed Capacity"}
	}

	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}

	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}

	if c.EvictionInterval < 0 {
		return &ConfigError{Field: "EvictionInterval", Message: "must be non-negative"}
	}

	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}
