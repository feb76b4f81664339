package cache

import (
	"context"
	"time"

	"github.com/goliatone/go-inventory-cache/internal/cacheinfra"
)

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	Capacity      int
	TTL           time.Duration
	SweepInterval time.Duration
	Relations     RelationConfig
}

// RelationConfig mirrors the sturdyc options of the batch relation cache.
type RelationConfig struct {
	Capacity           int
	NumShards          int
	TTL                time.Duration
	EvictionPercentage int
	EvictionInterval   time.Duration
}

// StoreOption customizes the store built by NewStore.
type StoreOption = cacheinfra.StoreOption

// WithClock replaces the store time source.
func WithClock(now func() time.Time) StoreOption {
	return cacheinfra.WithClock(now)
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	store := cacheinfra.DefaultStoreConfig()
	return Config{
		Capacity:      store.Capacity,
		TTL:           store.DefaultTTL,
		SweepInterval: store.SweepInterval,
		Relations:     convertBatchFromInternal(cacheinfra.DefaultBatchConfig()),
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	if err := c.storeConfig().Validate(); err != nil {
		return err
	}
	return c.Relations.toInternal().Validate()
}

// NewStore constructs the default Store implementation. The sweep goroutine
// lives until ctx is done or the store is closed.
func NewStore(ctx context.Context, cfg Config, opts ...StoreOption) (Store, error) {
	store, err := cacheinfra.NewMemoryStore(ctx, cfg.storeConfig(), opts...)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewBatchCache constructs a sturdyc backed BatchCache whose keys are prefix+id.
func NewBatchCache[T any](cfg RelationConfig, prefix string) (BatchCache[T], error) {
	c, err := cacheinfra.NewSturdycBatchCache[T](cfg.toInternal(), prefix)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c Config) storeConfig() cacheinfra.StoreConfig {
	return cacheinfra.StoreConfig{
		Capacity:      c.Capacity,
		DefaultTTL:    c.TTL,
		SweepInterval: c.SweepInterval,
	}
}

func (c RelationConfig) toInternal() cacheinfra.BatchConfig {
	return cacheinfra.BatchConfig{
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.TTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
	}
}

func convertBatchFromInternal(cfg cacheinfra.BatchConfig) RelationConfig {
	return RelationConfig{
		Capacity:           cfg.Capacity,
		NumShards:          cfg.NumShards,
		TTL:                cfg.TTL,
		EvictionPercentage: cfg.EvictionPercentage,
		EvictionInterval:   cfg.EvictionInterval,
	}
}
