package cacheinfra

import (
	"context"
	"strings"
	"sync"

	"github.com/viccon/sturdyc"
)

// BatchCache wraps a sturdyc client providing read-through caching for
// values fetched in batches by id (images and translations of a page of cars).
//
// Fetched values are stored only when no invalidation ran while the fetch
// was in flight, so a batch read before a write never outlives the write's
// invalidation.
type BatchCache[T any] struct {
	client *sturdyc.Client[T]
	prefix string

	// mu orders stores against invalidations; gen counts invalidations.
	mu  sync.Mutex
	gen uint64
}

// NewSturdycBatchCache creates a batch cache whose keys are prefix+id.
// The prefix should contain the resource family token so pattern
// invalidation reaches these entries.
//
// Capacity, NumShards, TTL and EvictionPercentage are passed to sturdyc.New;
// the remaining options are applied via ToSturdycOptions.
func NewSturdycBatchCache[T any](cfg BatchConfig, prefix string) (*BatchCache[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[T](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &BatchCache[T]{client: client, prefix: prefix}, nil
}

// Key returns the cache key for a single id.
func (c *BatchCache[T]) Key(id string) string {
	return c.prefix + id
}

// GetOrFetchBatch returns the cached value for every id, calling fetchFn once
// with only the ids that were not cached. The result is keyed by id. Fetched
// values are returned either way but cached only if the cache was not
// invalidated during the fetch.
func (c *BatchCache[T]) GetOrFetchBatch(ctx context.Context, ids []string, fetchFn func(context.Context, []string) (map[string]T, error)) (map[string]T, error) {
	if len(ids) == 0 {
		return map[string]T{}, nil
	}

	gen := c.Generation()

	out := c.client.GetManyKeyFn(ids, c.Key)

	var missing []string
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := fetchFn(ctx, missing)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.gen == gen {
		c.client.SetManyKeyFn(fetched, c.Key)
	}
	c.mu.Unlock()

	for id, v := range fetched {
		out[id] = v
	}
	return out, nil
}

// Generation returns the number of invalidations so far.
func (c *BatchCache[T]) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// DeleteMatching removes every key containing pattern.
func (c *BatchCache[T]) DeleteMatching(pattern string) int {
	if pattern == "" {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++

	removed := 0
	for _, key := range c.client.ScanKeys() {
		if strings.Contains(key, pattern) {
			c.client.Delete(key)
			removed++
		}
	}
	return removed
}

// Clear removes every key owned by this cache.
func (c *BatchCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++

	for _, key := range c.client.ScanKeys() {
		c.client.Delete(key)
	}
}

// Size returns the number of entries held by the underlying client.
func (c *BatchCache[T]) Size() int {
	return c.client.Size()
}
