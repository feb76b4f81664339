package httpcache

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-inventory-cache/cache"
)

// DefaultTimeout bounds handler execution when Options.Timeout is zero.
const DefaultTimeout = 15 * time.Second

// HeaderCache is set to "HIT" on responses served from the store.
const HeaderCache = "X-Cache"

// ErrTimeout is passed to the error handler when a handler outlives its timeout.
var ErrTimeout = errors.New("request timeout")

// Response is what a handler computes. The middleware serializes Body as
// JSON and decides, from Status, whether the bytes are cached.
type Response struct {
	Status int
	Body   any
	Header http.Header
}

// JSON returns a Response with the given status and body.
func JSON(status int, body any) *Response {
	return &Response{Status: status, Body: body}
}

// HandlerFunc computes a response. Returning an error hands rendering to
// the middleware error handler; errors are never cached.
type HandlerFunc func(r *http.Request) (*Response, error)

// KeyFunc derives the cache key for a request. An empty key bypasses the cache.
type KeyFunc func(r *http.Request) string

// SkipFunc reports whether a request must bypass the cache.
type SkipFunc func(r *http.Request) bool

// ErrorFunc renders a handler error.
type ErrorFunc func(w http.ResponseWriter, r *http.Request, err error)

// Options configures one cached endpoint.
type Options struct {
	// TTL of stored responses. Zero uses the store default.
	TTL time.Duration
	// KeyFn defaults to cache.RequestKey.
	KeyFn KeyFunc
	// SkipFn is optional.
	SkipFn SkipFunc
	// Namespace prefixes every key, e.g. "cars:" so car writes purge it.
	Namespace string
	// Timeout bounds the handler. Zero uses the middleware default.
	Timeout time.Duration
}

// entry is the stored form of a response.
type entry struct {
	status int
	header http.Header
	body   []byte
}

// Middleware serves GET responses from a cache.Store and populates it with
// successful handler results.
type Middleware struct {
	store   cache.Store
	group   singleflight.Group
	logger  *zap.Logger
	onError ErrorFunc
	timeout time.Duration
}

// Option customizes a Middleware.
type Option func(*Middleware)

// WithLogger sets the middleware logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Middleware) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithErrorHandler replaces the default error rendering.
func WithErrorHandler(fn ErrorFunc) Option {
	return func(m *Middleware) {
		if fn != nil {
			m.onError = fn
		}
	}
}

// WithTimeout sets the default handler timeout.
func WithTimeout(d time.Duration) Option {
	return func(m *Middleware) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// New returns a Middleware backed by store.
func New(store cache.Store, opts ...Option) *Middleware {
	m := &Middleware{
		store:   store,
		logger:  zap.NewNop(),
		onError: DefaultErrorHandler,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handler wraps h. Only GET requests are cached; other methods run h
// directly.
func (m *Middleware) Handler(o Options, h HandlerFunc) http.Handler {
	if o.KeyFn == nil {
		o.KeyFn = cache.RequestKey
	}
	if o.Timeout <= 0 {
		o.Timeout = m.timeout
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || (o.SkipFn != nil && o.SkipFn(r)) {
			m.serveDirect(w, r, o, h)
			return
		}

		key := o.KeyFn(r)
		if key == "" {
			m.serveDirect(w, r, o, h)
			return
		}
		key = o.Namespace + key

		if v, ok := m.store.Get(key); ok {
			if e, ok := v.(*entry); ok {
				m.logger.Debug("cache hit", zap.String("key", key))
				writeEntry(w, e, true)
				return
			}
		}

		m.logger.Debug("cache miss", zap.String("key", key))
		m.serveMiss(w, r, o, h, key)
	})
}

// serveMiss computes the response once per key and generation, caching it
// when it is a 2xx produced before the deadline.
func (m *Middleware) serveMiss(w http.ResponseWriter, r *http.Request, o Options, h HandlerFunc, key string) {
	gen := m.store.Generation()
	flightKey := key + "#" + strconv.FormatUint(gen, 10)

	ch := m.group.DoChan(flightKey, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), o.Timeout)
		defer cancel()

		e, err := m.compute(ctx, r, h)
		if err != nil {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ErrTimeout
		}

		if e.status >= 200 && e.status < 300 {
			if m.store.SetIfGeneration(gen, key, e, o.TTL) {
				m.logger.Debug("cache stored", zap.String("key", key), zap.Int("bytes", len(e.body)))
			} else {
				m.logger.Debug("cache store skipped after invalidation", zap.String("key", key))
			}
		}
		return e, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			m.onError(w, r, res.Err)
			return
		}
		writeEntry(w, res.Val.(*entry), false)
	case <-r.Context().Done():
		m.onError(w, r, r.Context().Err())
	}
}

// serveDirect runs h without touching the store. A write that returned
// successfully has committed, so only reads are failed after the deadline.
func (m *Middleware) serveDirect(w http.ResponseWriter, r *http.Request, o Options, h HandlerFunc) {
	ctx, cancel := context.WithTimeout(r.Context(), o.Timeout)
	defer cancel()

	e, err := m.compute(ctx, r, h)
	if err == nil && ctx.Err() != nil && isRead(r.Method) {
		err = ErrTimeout
	}
	if err != nil {
		m.onError(w, r, err)
		return
	}
	writeEntry(w, e, false)
}

func isRead(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

func (m *Middleware) compute(ctx context.Context, r *http.Request, h HandlerFunc) (*entry, error) {
	res, err := h(r.WithContext(ctx))
	if err != nil {
		// drivers do not always surface the deadline in the error chain
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, err
	}
	if res == nil {
		res = &Response{Status: http.StatusNoContent}
	}

	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}

	var body []byte
	if res.Body != nil {
		body, err = json.Marshal(res.Body)
		if err != nil {
			m.logger.Warn("response serialization failed", zap.Error(err))
			return nil, errors.Wrap(err, "encode response")
		}
	}

	return &entry{status: status, header: res.Header, body: body}, nil
}

func writeEntry(w http.ResponseWriter, e *entry, hit bool) {
	h := w.Header()
	for k, vs := range e.header {
		h[k] = append([]string(nil), vs...)
	}
	if e.body != nil && h.Get("Content-Type") == "" {
		h.Set("Content-Type", "application/json")
	}
	if hit {
		h.Set(HeaderCache, "HIT")
	}
	w.WriteHeader(e.status)
	if e.body != nil {
		_, _ = w.Write(e.body)
	}
}

// DefaultErrorHandler renders timeouts as 504 and everything else as a
// generic 500.
func DefaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	if IsTimeout(err) {
		status, msg = http.StatusGatewayTimeout, "request timeout"
	}
	WriteJSON(w, status, map[string]string{"error": msg})
}

// IsTimeout reports whether err is a handler or request deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// WriteJSON writes body as JSON with status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// SkipNoCache bypasses the cache when the client sends
// Cache-Control: no-cache or no-store.
func SkipNoCache(r *http.Request) bool {
	for _, v := range r.Header.Values("Cache-Control") {
		for _, directive := range strings.Split(v, ",") {
			switch strings.ToLower(strings.TrimSpace(directive)) {
			case "no-cache", "no-store":
				return true
			}
		}
	}
	return false
}
