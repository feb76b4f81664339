package cacheinfra

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Stats is a point in time snapshot of a MemoryStore.
type Stats struct {
	Total       int   `json:"total"`
	Active      int   `json:"active"`
	Expired     int   `json:"expired"`
	MaxSize     int   `json:"maxSize"`
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Evictions   int64 `json:"evictions"`
	Expirations int64 `json:"expirations"`
}

// entry is a single cached value. It is live while now-insertedAt <= ttl.
type entry struct {
	key        string
	value      any
	insertedAt time.Time
	ttl        time.Duration
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.insertedAt) > e.ttl
}

// StoreOption customizes a MemoryStore at construction time.
type StoreOption func(*MemoryStore)

// WithClock replaces the time source, mostly useful in tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// MemoryStore is a bounded key/value map with per entry TTL.
//
// Entries are kept in insertion order; when the store is full and a new key
// arrives the oldest inserted entry is evicted, regardless of how recently it
// was read. Expired entries are removed lazily on Get and actively by a sweep
// goroutine running every SweepInterval.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front is the oldest insertion
	capacity int
	ttl      time.Duration
	now      func() time.Time

	// generation advances on every removal other than expiry or eviction
	generation uint64

	hits        *xsync.Counter
	misses      *xsync.Counter
	evictions   *xsync.Counter
	expirations *xsync.Counter

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewMemoryStore validates cfg and returns a running store. The sweep
// goroutine stops when ctx is done or Close is called.
func NewMemoryStore(ctx context.Context, cfg StoreConfig, opts ...StoreOption) (*MemoryStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if ctx == nil {
		ctx = context.Background()
	}

	s := &MemoryStore{
		entries:     make(map[string]*list.Element, cfg.Capacity),
		order:       list.New(),
		capacity:    cfg.Capacity,
		ttl:         cfg.DefaultTTL,
		now:         time.Now,
		hits:        xsync.NewCounter(),
		misses:      xsync.NewCounter(),
		evictions:   xsync.NewCounter(),
		expirations: xsync.NewCounter(),
	}

	for _, opt := range opts {
		opt(s)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if cfg.SweepInterval > 0 {
		s.wg.Add(1)
		go s.run(runCtx, cfg.SweepInterval)
	}

	return s, nil
}

// Get returns the value stored under key if it is still live. An expired
// entry is removed and reported as a miss.
func (s *MemoryStore) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.entries[key]
	if !ok {
		s.misses.Inc()
		return nil, false
	}

	e := elem.Value.(*entry)
	if e.expired(s.now()) {
		s.removeElement(elem)
		s.expirations.Inc()
		s.misses.Inc()
		return nil, false
	}

	s.hits.Inc()
	return e.value, true
}

// Set inserts or overwrites key. Overwriting refreshes the insertion time
// and moves the entry to the newest position. A new key on a full store
// evicts the oldest inserted entry first.
func (s *MemoryStore) Set(key string, value any, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.set(key, value, ttl)
}

// Generation returns a counter that advances whenever entries are deleted,
// matched or cleared.
func (s *MemoryStore) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// SetIfGeneration stores value only if no deletion happened since gen was
// read. A value computed before an invalidation is therefore never cached
// after it.
func (s *MemoryStore) SetIfGeneration(gen uint64, key string, value any, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		return false
	}
	s.set(key, value, ttl)
	return true
}

// set must be called with mu held.
func (s *MemoryStore) set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.ttl
	}

	now := s.now()

	if elem, ok := s.entries[key]; ok {
		e := elem.Value.(*entry)
		e.value = value
		e.insertedAt = now
		e.ttl = ttl
		s.order.MoveToBack(elem)
		return
	}

	for s.order.Len() >= s.capacity {
		s.evictOldest()
	}

	s.entries[key] = s.order.PushBack(&entry{
		key:        key,
		value:      value,
		insertedAt: now,
		ttl:        ttl,
	})
}

// Delete removes key and reports whether it was present.
func (s *MemoryStore) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	elem, ok := s.entries[key]
	if !ok {
		return false
	}
	s.removeElement(elem)
	return true
}

// DeleteMatching removes every key containing pattern and returns how many
// entries were dropped. An empty pattern matches nothing.
func (s *MemoryStore) DeleteMatching(pattern string) int {
	if pattern == "" {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	removed := 0
	for elem := s.order.Front(); elem != nil; {
		next := elem.Next()
		if strings.Contains(elem.Value.(*entry).key, pattern) {
			s.removeElement(elem)
			removed++
		}
		elem = next
	}
	return removed
}

// Clear empties the store.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.entries = make(map[string]*list.Element, s.capacity)
	s.order.Init()
}

// Sweep removes every expired entry and returns the number removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for elem := s.order.Front(); elem != nil; {
		next := elem.Next()
		if elem.Value.(*entry).expired(now) {
			s.removeElement(elem)
			removed++
		}
		elem = next
	}

	s.expirations.Add(int64(removed))
	return removed
}

// Stats returns a snapshot of the store size and counters.
func (s *MemoryStore) Stats() Stats {
	s.mu.Lock()
	now := s.now()
	total := s.order.Len()
	active := 0
	for elem := s.order.Front(); elem != nil; elem = elem.Next() {
		if !elem.Value.(*entry).expired(now) {
			active++
		}
	}
	s.mu.Unlock()

	return Stats{
		Total:       total,
		Active:      active,
		Expired:     total - active,
		MaxSize:     s.capacity,
		Hits:        s.hits.Value(),
		Misses:      s.misses.Value(),
		Evictions:   s.evictions.Value(),
		Expirations: s.expirations.Value(),
	}
}

// Len returns the number of entries currently held, live or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// Close stops the sweep goroutine. It is safe to call more than once.
func (s *MemoryStore) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.wg.Wait()
	})
	return nil
}

func (s *MemoryStore) run(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// evictOldest must be called with mu held.
func (s *MemoryStore) evictOldest() {
	elem := s.order.Front()
	if elem == nil {
		return
	}
	s.removeElement(elem)
	s.evictions.Inc()
}

// removeElement must be called with mu held.
func (s *MemoryStore) removeElement(elem *list.Element) {
	s.order.Remove(elem)
	delete(s.entries, elem.Value.(*entry).key)
}
