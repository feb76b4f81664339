// Package httpcache caches JSON responses of read endpoints in a cache.Store.
//
// Handlers compute a *Response instead of writing to the ResponseWriter, so
// the middleware can serialize the body once, store the bytes and replay
// them on later hits:
//
//	mw := httpcache.New(store, httpcache.WithLogger(logger))
//
//	mux.Handle("GET /cars/makes", mw.Handler(httpcache.Options{
//		TTL:       time.Hour,
//		Namespace: "cars:",
//	}, func(r *http.Request) (*httpcache.Response, error) {
//		makes, err := svc.Makes(r.Context())
//		if err != nil {
//			return nil, err
//		}
//		return httpcache.JSON(http.StatusOK, makes), nil
//	}))
//
// Only GET requests with a non empty key are cached, and only 2xx results.
// Concurrent misses on the same key share one handler execution. A result
// computed while an invalidation ran is returned to its callers but never
// stored. Handlers run under a timeout; a handler that outlives it yields
// ErrTimeout and nothing is cached.
package httpcache
