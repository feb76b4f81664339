package invalidation

import (
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-inventory-cache/cache"
)

// CarsPattern matches every cache key of the car family: listings, detail
// pages, reference lists and cached relations.
const CarsPattern = "cars:"

// Gateway removes cached data after writes. It fans out to every registered
// target so response bodies and cached relations are purged together.
//
// All calls are synchronous; once Invalidate returns no target holds a key
// containing the pattern.
type Gateway struct {
	mu      sync.RWMutex
	targets []cache.Target
	logger  *zap.Logger
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithLogger sets the gateway logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New returns a Gateway purging the given targets.
func New(targets []cache.Target, opts ...Option) *Gateway {
	g := &Gateway{
		targets: append([]cache.Target(nil), targets...),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Register adds a target. Targets registered later are purged by every
// subsequent call.
func (g *Gateway) Register(target cache.Target) {
	if target == nil {
		return
	}
	g.mu.Lock()
	g.targets = append(g.targets, target)
	g.mu.Unlock()
}

// Invalidate removes every key containing pattern from every target and
// returns the number of entries removed. An empty pattern is a no-op.
func (g *Gateway) Invalidate(pattern string) int {
	if pattern == "" {
		return 0
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	removed := 0
	for _, t := range g.targets {
		removed += t.DeleteMatching(pattern)
	}

	g.logger.Debug("cache invalidated",
		zap.String("pattern", pattern),
		zap.Int("removed", removed),
	)
	return removed
}

// InvalidateAll clears every target. Used after bulk operations.
func (g *Gateway) InvalidateAll() {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, t := range g.targets {
		t.Clear()
	}
	g.logger.Info("cache cleared", zap.Int("targets", len(g.targets)))
}
