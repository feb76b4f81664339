package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/goliatone/go-inventory-cache/cache"
	"github.com/goliatone/go-inventory-cache/catalog"
	"github.com/goliatone/go-inventory-cache/httpcache"
	"github.com/goliatone/go-inventory-cache/invalidation"
	"github.com/goliatone/go-inventory-cache/query"
)

// ListingResource is the resource name of listing cache keys.
const ListingResource = "cars"

// Searcher executes listing plans. catalog.Planner implements it.
type Searcher interface {
	Search(ctx context.Context, plan query.Plan) (catalog.Result, error)
}

// CarService serves detail reads and every car write. catalog.Service
// implements it; its writes invalidate cached car data before returning.
type CarService interface {
	Get(ctx context.Context, id string) (*catalog.Car, error)
	Makes(ctx context.Context) ([]string, error)
	Create(ctx context.Context, car *catalog.Car) (*catalog.Car, error)
	Update(ctx context.Context, id string, car *catalog.Car) (*catalog.Car, error)
	Delete(ctx context.Context, id string) error
	Import(ctx context.Context, cars []*catalog.Car) (int, error)
}

// Invalidator purges cached data. invalidation.Gateway implements it.
type Invalidator interface {
	Invalidate(pattern string) int
	InvalidateAll()
}

// Options configures the HTTP surface.
type Options struct {
	Policy         query.Policy
	ListingTTL     time.Duration
	ReferenceTTL   time.Duration
	RequestTimeout time.Duration

	// AdminMiddleware guards every /admin route. Authentication lives
	// outside this service; nil leaves the routes open.
	AdminMiddleware func(http.Handler) http.Handler

	// Gatherer is exposed on /metrics when set.
	Gatherer prometheus.Gatherer

	// Now is the clock used to bound numeric search terms.
	Now func() time.Time
}

// API is the inventory HTTP surface.
type API struct {
	planner Searcher
	cars    CarService
	store   cache.Store
	gateway Invalidator
	cache   *httpcache.Middleware
	keys    cache.KeySerializer
	logger  *zap.Logger
	opts    Options
}

// New returns an API reading listings through planner, serving cached
// responses from store and purging it through gateway.
func New(planner Searcher, cars CarService, store cache.Store, gateway Invalidator, logger *zap.Logger, opts Options) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Policy == (query.Policy{}) {
		opts.Policy = query.DefaultPolicy()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	a := &API{
		planner: planner,
		cars:    cars,
		store:   store,
		gateway: gateway,
		keys:    cache.NewDefaultKeySerializer(),
		logger:  logger,
		opts:    opts,
	}
	a.cache = httpcache.New(store,
		httpcache.WithLogger(logger.Named("httpcache")),
		httpcache.WithErrorHandler(a.renderError),
		httpcache.WithTimeout(opts.RequestTimeout),
	)
	return a
}

// Handler returns the routed handler.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	listing := httpcache.Options{
		TTL:    a.opts.ListingTTL,
		KeyFn:  a.listingKey,
		SkipFn: httpcache.SkipNoCache,
	}
	detail := httpcache.Options{
		TTL:       a.opts.ListingTTL,
		KeyFn:     detailKey,
		SkipFn:    httpcache.SkipNoCache,
		Namespace: invalidation.CarsPattern,
	}
	reference := httpcache.Options{
		TTL:       a.opts.ReferenceTTL,
		SkipFn:    httpcache.SkipNoCache,
		Namespace: invalidation.CarsPattern,
	}
	write := httpcache.Options{}

	mux.Handle("GET /cars", a.cache.Handler(listing, a.listCars))
	mux.Handle("GET /cars/makes", a.cache.Handler(reference, a.listMakes))
	mux.Handle("GET /cars/{id}", a.cache.Handler(detail, a.getCar))
	mux.Handle("POST /cars", a.cache.Handler(write, a.createCar))
	mux.Handle("PUT /cars/{id}", a.cache.Handler(write, a.updateCar))
	mux.Handle("DELETE /cars/{id}", a.cache.Handler(write, a.deleteCar))

	mux.Handle("POST /admin/cars/import", a.admin(a.cache.Handler(write, a.importCars)))
	mux.Handle("GET /admin/cache/stats", a.admin(http.HandlerFunc(a.cacheStats)))
	mux.Handle("POST /admin/cache/invalidate", a.admin(http.HandlerFunc(a.invalidateCache)))
	mux.Handle("DELETE /admin/cache", a.admin(http.HandlerFunc(a.clearCache)))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		httpcache.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if a.opts.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(a.opts.Gatherer, promhttp.HandlerOpts{}))
	}

	return a.logRequests(mux)
}

func (a *API) admin(h http.Handler) http.Handler {
	if a.opts.AdminMiddleware == nil {
		return h
	}
	return a.opts.AdminMiddleware(h)
}

// listingKey is "cars:<page>:<limit>:<filters>[:<sort>]". Requests that do
// not compile bypass the cache and are rejected by the handler.
func (a *API) listingKey(r *http.Request) string {
	plan, err := query.Build(r.URL.Query(), a.opts.Policy, a.opts.Now())
	if err != nil {
		return ""
	}
	return a.keys.SerializeKey(ListingResource, plan.KeyArgs()...)
}

func detailKey(r *http.Request) string {
	id := r.PathValue("id")
	if id == "" {
		return ""
	}
	return "detail" + cache.KeySeparator + id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		a.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.String("cache", rec.Header().Get(httpcache.HeaderCache)),
			zap.Duration("took", time.Since(start)),
		)
	})
}
