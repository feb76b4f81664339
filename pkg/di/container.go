package di

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/goliatone/go-inventory-cache/api"
	"github.com/goliatone/go-inventory-cache/cache"
	"github.com/goliatone/go-inventory-cache/catalog"
	"github.com/goliatone/go-inventory-cache/invalidation"
	"github.com/goliatone/go-inventory-cache/pkg/config"
	"github.com/goliatone/go-inventory-cache/repositorycache"
)

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "inventory"

// Container wires the inventory service. It owns the process wide cache
// store, the relation cache, the invalidation gateway and the database
// handle; everything that writes cars goes through the invalidating
// repository it builds.
type Container struct {
	config config.Config
	logger *zap.Logger

	db        *bun.DB
	store     cache.Store
	relations cache.BatchCache[catalog.Relations]
	gateway   *invalidation.Gateway
	cars      *repositorycache.InvalidatingRepository[*catalog.Car]
	planner   *catalog.Planner
	service   *catalog.Service
	registry  *prometheus.Registry
	api       *api.API

	adminMiddleware func(http.Handler) http.Handler
}

// Option customizes a Container.
type Option func(*Container)

// WithAdminMiddleware guards the admin routes.
func WithAdminMiddleware(mw func(http.Handler) http.Handler) Option {
	return func(c *Container) {
		c.adminMiddleware = mw
	}
}

// NewContainer opens the database and builds every component from cfg. The
// store sweep runs until ctx is done or Close is called.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := catalog.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	c, err := build(ctx, cfg, db, logger, opts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func build(ctx context.Context, cfg config.Config, db *bun.DB, logger *zap.Logger, opts []Option) (*Container, error) {
	storeCfg := cfg.StoreConfig()

	store, err := cache.NewStore(ctx, storeCfg)
	if err != nil {
		return nil, errors.Wrap(err, "cache store")
	}

	relations, err := cache.NewBatchCache[catalog.Relations](storeCfg.Relations, catalog.RelationsKeyPrefix)
	if err != nil {
		_ = store.Close()
		return nil, errors.Wrap(err, "relation cache")
	}

	c := &Container{
		config:    cfg,
		logger:    logger,
		db:        db,
		store:     store,
		relations: relations,
		gateway: invalidation.New(
			[]cache.Target{store, relations},
			invalidation.WithLogger(logger.Named("invalidation")),
		),
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(c)
	}

	base := catalog.NewCarRepository(db)
	c.cars = NewInvalidatingRepository(c, base, invalidation.CarsPattern)
	c.planner = catalog.NewPlanner(db, base,
		catalog.WithPlannerLogger(logger.Named("planner")),
		catalog.WithRelationCache(relations),
	)
	c.service = catalog.NewService(db, c.cars, logger.Named("catalog"))

	c.registry.MustRegister(
		cache.NewCollector(MetricsNamespace, store),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c.api = api.New(c.planner, c.service, store, c.gateway, logger.Named("api"), api.Options{
		Policy:          cfg.Pagination,
		ListingTTL:      cfg.Cache.ListingTTL.Std(),
		ReferenceTTL:    cfg.Cache.ReferenceTTL.Std(),
		RequestTimeout:  cfg.Server.RequestTimeout.Std(),
		Gatherer:        c.registry,
		AdminMiddleware: c.adminMiddleware,
	})

	return c, nil
}

// NewInvalidatingRepository wraps base so its writes purge pattern through
// the container gateway. Since Go methods cannot have type parameters this
// is a package level function.
func NewInvalidatingRepository[T any](c *Container, base repository.Repository[T], pattern string) *repositorycache.InvalidatingRepository[T] {
	return repositorycache.New(base, c.gateway, pattern,
		repositorycache.WithLogger(c.logger.Named("repositorycache")),
	)
}

// Migrate creates the catalog schema.
func (c *Container) Migrate(ctx context.Context) error {
	return catalog.CreateSchema(ctx, c.db)
}

// Config returns the configuration the container was built from.
func (c *Container) Config() config.Config { return c.config }

// DB returns the database handle.
func (c *Container) DB() *bun.DB { return c.db }

// Store returns the response cache.
func (c *Container) Store() cache.Store { return c.store }

// Gateway returns the invalidation gateway.
func (c *Container) Gateway() *invalidation.Gateway { return c.gateway }

// Cars returns the invalidating car repository.
func (c *Container) Cars() *repositorycache.InvalidatingRepository[*catalog.Car] { return c.cars }

// Planner returns the listing planner.
func (c *Container) Planner() *catalog.Planner { return c.planner }

// Service returns the car service.
func (c *Container) Service() *catalog.Service { return c.service }

// Registry returns the prometheus registry served on /metrics.
func (c *Container) Registry() *prometheus.Registry { return c.registry }

// Handler returns the routed HTTP handler.
func (c *Container) Handler() http.Handler { return c.api.Handler() }

// Server returns an http.Server for the configured address.
func (c *Container) Server() *http.Server {
	return &http.Server{
		Addr:              c.config.Server.Addr,
		Handler:           c.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Close stops the store sweep and closes the database.
func (c *Container) Close() error {
	return errors.CombineErrors(c.store.Close(), c.db.Close())
}
