package cache

import (
	"context"
	"time"

	"github.com/goliatone/go-inventory-cache/internal/cacheinfra"
)

// Stats is a point in time snapshot of a Store: entry counts plus the
// hit, miss, eviction and expiration counters.
type Stats = cacheinfra.Stats

// KeySerializer builds a cache key from a resource name + arbitrary args.
// It is responsible for producing stable keys across calls.
type KeySerializer interface {
	SerializeKey(resource string, args ...any) string
}

// Target is anything the invalidation gateway can purge.
type Target interface {
	// DeleteMatching removes every key containing pattern and reports how many were removed.
	DeleteMatching(pattern string) int
	// Clear removes every entry.
	Clear()
}

// Store is the process-local response cache. Operations never fail: a miss
// is indistinguishable from a value that was never cached.
type Store interface {
	Target
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	Delete(key string) bool
	// Generation advances on every deletion, pattern match and clear.
	Generation() uint64
	// SetIfGeneration stores value only while Generation still equals gen.
	SetIfGeneration(gen uint64, key string, value any, ttl time.Duration) bool
	Stats() Stats
	Close() error
}

// BatchCache is a read-through cache for values fetched in batches by id.
// Values fetched while an invalidation runs are returned but not cached.
type BatchCache[T any] interface {
	Target
	GetOrFetchBatch(ctx context.Context, ids []string, fetchFn func(context.Context, []string) (map[string]T, error)) (map[string]T, error)
	// Generation advances on every pattern match and clear.
	Generation() uint64
}

var (
	_ Store                = (*cacheinfra.MemoryStore)(nil)
	_ BatchCache[struct{}] = (*cacheinfra.BatchCache[struct{}])(nil)
)
