package cacheinfra

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T, capacity int, clock *fakeClock) *MemoryStore {
	t.Helper()
	store, err := NewMemoryStore(context.Background(), StoreConfig{
		Capacity:   capacity,
		DefaultTTL: time.Minute,
	}, WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestMemoryStore_SetThenGet(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(t, 10, clock)

	store.Set("cars:1:10:{}", []byte(`{"cars":[]}`), 10*time.Minute)

	val, ok := store.Get("cars:1:10:{}")
	require.True(t, ok)
	assert.Equal(t, []byte(`{"cars":[]}`), val)
}

func TestMemoryStore_TTLBoundary(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(t, 10, clock)

	store.Set("k", "v", time.Minute)

	clock.Advance(time.Minute)
	_, ok := store.Get("k")
	assert.True(t, ok, "entry is live while now-insertedAt equals ttl")

	clock.Advance(time.Nanosecond)
	_, ok = store.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len(), "expired lookup removes the entry")

	stats := store.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Expirations)
}

func TestMemoryStore_DefaultTTL(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(t, 10, clock)

	store.Set("k", "v", 0)
	clock.Advance(59 * time.Second)
	_, ok := store.Get("k")
	assert.True(t, ok)

	clock.Advance(2 * time.Second)
	_, ok = store.Get("k")
	assert.False(t, ok)
}

func TestMemoryStore_CapacityEvictsOldestInserted(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(t, 3, clock)

	for i := 0; i < 3; i++ {
		store.Set(fmt.Sprintf("k%d", i), i, time.Hour)
		clock.Advance(time.Second)
	}

	// Reads do not change eviction order.
	_, ok := store.Get("k0")
	require.True(t, ok)

	store.Set("k3", 3, time.Hour)

	assert.Equal(t, 3, store.Len())
	_, ok = store.Get("k0")
	assert.False(t, ok, "oldest insertion is evicted even after a read")
	for _, key := range []string{"k1", "k2", "k3"} {
		_, ok := store.Get(key)
		assert.True(t, ok, key)
	}
	assert.Equal(t, int64(1), store.Stats().Evictions)
}

func TestMemoryStore_OverwriteRefreshesInsertionOrder(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(t, 2, clock)

	store.Set("a", 1, time.Hour)
	store.Set("b", 2, time.Hour)
	store.Set("a", 10, time.Hour)
	store.Set("c", 3, time.Hour)

	_, ok := store.Get("b")
	assert.False(t, ok, "b is now the oldest insertion")

	val, ok := store.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, val)
}

func TestMemoryStore_OverwriteOnFullStoreDoesNotEvict(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(t, 2, clock)

	store.Set("a", 1, time.Hour)
	store.Set("b", 2, time.Hour)
	store.Set("b", 3, time.Hour)

	assert.Equal(t, 2, store.Len())
	assert.Equal(t, int64(0), store.Stats().Evictions)
}

func TestMemoryStore_CapacityNeverExceeded(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(t, 50, clock)

	for i := 0; i < 51; i++ {
		store.Set(fmt.Sprintf("k%d", i), i, time.Hour)
		assert.LessOrEqual(t, store.Len(), 50)
	}

	_, ok := store.Get("k0")
	assert.False(t, ok)
	_, ok = store.Get("k50")
	assert.True(t, ok)
}

func TestMemoryStore_Delete(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(t, 10, clock)

	store.Set("k", "v", time.Hour)
	assert.True(t, store.Delete("k"))
	assert.False(t, store.Delete("k"))

	_, ok := store.Get("k")
	assert.False(t, ok)
}

func TestMemoryStore_DeleteMatching(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(t, 10, clock)

	store.Set("cars:1:10:{}", 1, time.Hour)
	store.Set("cars:detail:abc", 2, time.Hour)
	store.Set("categories:all", 3, time.Hour)

	assert.Equal(t, 2, store.DeleteMatching("cars:"))
	assert.Equal(t, 0, store.DeleteMatching("cars:"), "second call is a no-op")
	assert.Equal(t, 0, store.DeleteMatching(""), "empty pattern matches nothing")

	_, ok := store.Get("categories:all")
	assert.True(t, ok)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_Clear(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(t, 10, clock)

	store.Set("a", 1, time.Hour)
	store.Set("b", 2, time.Hour)
	store.Clear()

	assert.Equal(t, 0, store.Len())
	store.Set("c", 3, time.Hour)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_SweepAndStats(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(t, 10, clock)

	store.Set("short", 1, time.Second)
	store.Set("long", 2, time.Hour)
	clock.Advance(2 * time.Second)

	stats := store.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 1, stats.Expired)
	assert.Equal(t, 10, stats.MaxSize)

	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 0, store.Sweep())
}

func TestMemoryStore_BackgroundSweep(t *testing.T) {
	store, err := NewMemoryStore(context.Background(), StoreConfig{
		Capacity:      10,
		DefaultTTL:    time.Minute,
		SweepInterval: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	defer store.Close()

	store.Set("k", "v", 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		return store.Len() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryStore_CloseIsIdempotent(t *testing.T) {
	store, err := NewMemoryStore(context.Background(), StoreConfig{
		Capacity:      10,
		DefaultTTL:    time.Minute,
		SweepInterval: time.Millisecond,
	})
	require.NoError(t, err)

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestMemoryStore_InvalidConfig(t *testing.T) {
	_, err := NewMemoryStore(context.Background(), StoreConfig{Capacity: 0, DefaultTTL: time.Minute})
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "Capacity", cfgErr.Field)

	_, err = NewMemoryStore(context.Background(), StoreConfig{Capacity: 1})
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "DefaultTTL", cfgErr.Field)
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store, err := NewMemoryStore(context.Background(), StoreConfig{
		Capacity:      64,
		DefaultTTL:    time.Minute,
		SweepInterval: time.Millisecond,
	})
	require.NoError(t, err)
	defer store.Close()

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("k%d", (g*31+i)%200)
				switch i % 5 {
				case 0:
					store.Delete(key)
				case 1:
					store.DeleteMatching("k1")
				default:
					store.Set(key, i, time.Millisecond*time.Duration(i%7+1))
					store.Get(key)
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, store.Len(), 64)
	stats := store.Stats()
	assert.Equal(t, stats.Total, stats.Active+stats.Expired)
}

func TestMemoryStore_SetIfGeneration(t *testing.T) {
	store := newTestStore(t, 10, newFakeClock())

	gen := store.Generation()
	assert.True(t, store.SetIfGeneration(gen, "cars:1:10:{}", "fresh", time.Minute))

	stale := store.Generation()
	store.DeleteMatching("cars:")
	assert.False(t, store.SetIfGeneration(stale, "cars:1:10:{}", "stale", time.Minute))

	_, ok := store.Get("cars:1:10:{}")
	assert.False(t, ok)

	store.Set("other", 1, time.Minute)
	assert.Equal(t, stale+1, store.Generation(), "plain Set must not advance the generation")

	store.Clear()
	assert.Equal(t, stale+2, store.Generation())
}
