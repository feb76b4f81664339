package httpcache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-inventory-cache/cache"
)

func newStore(t *testing.T) cache.Store {
	t.Helper()
	cfg := cache.DefaultConfig()
	cfg.SweepInterval = 0
	store, err := cache.NewStore(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// countingHandler returns a fixed response and counts invocations.
type countingHandler struct {
	calls  atomic.Int32
	status int
	body   any
	err    error
}

func (c *countingHandler) serve(r *http.Request) (*Response, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return JSON(c.status, c.body), nil
}

func do(t *testing.T, h http.Handler, method, target string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_MissThenHit(t *testing.T) {
	store := newStore(t)
	handler := &countingHandler{status: http.StatusOK, body: map[string]any{"cars": []string{}, "total": 0}}
	h := New(store).Handler(Options{TTL: time.Minute}, handler.serve)

	first := do(t, h, http.MethodGet, "/cars?page=1&limit=10")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Empty(t, first.Header().Get(HeaderCache))
	assert.Equal(t, "application/json", first.Header().Get("Content-Type"))

	second := do(t, h, http.MethodGet, "/cars?limit=10&page=1")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get(HeaderCache))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, int32(1), handler.calls.Load())
}

func TestMiddleware_CustomKeyAndNamespace(t *testing.T) {
	store := newStore(t)
	handler := &countingHandler{status: http.StatusOK, body: []string{"audi"}}
	h := New(store).Handler(Options{
		Namespace: "cars:",
		KeyFn:     func(r *http.Request) string { return "1:10:{}" },
	}, handler.serve)

	do(t, h, http.MethodGet, "/cars")

	_, ok := store.Get("cars:1:10:{}")
	assert.True(t, ok)
}

func TestMiddleware_EmptyKeyBypasses(t *testing.T) {
	store := newStore(t)
	handler := &countingHandler{status: http.StatusOK, body: "x"}
	h := New(store).Handler(Options{KeyFn: func(*http.Request) string { return "" }}, handler.serve)

	do(t, h, http.MethodGet, "/cars")
	do(t, h, http.MethodGet, "/cars")

	assert.Equal(t, int32(2), handler.calls.Load())
	assert.Equal(t, 0, store.Stats().Total)
}

func TestMiddleware_NonSuccessIsNotCached(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusBadRequest, http.StatusInternalServerError, http.StatusFound} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			store := newStore(t)
			handler := &countingHandler{status: status, body: map[string]string{"error": "x"}}
			h := New(store).Handler(Options{}, handler.serve)

			rec := do(t, h, http.MethodGet, "/cars/missing")
			assert.Equal(t, status, rec.Code)
			do(t, h, http.MethodGet, "/cars/missing")

			assert.Equal(t, int32(2), handler.calls.Load())
			assert.Equal(t, 0, store.Stats().Total)
		})
	}
}

func TestMiddleware_ErrorsAreRenderedAndNotCached(t *testing.T) {
	store := newStore(t)
	handler := &countingHandler{err: errors.New("connection refused")}

	var rendered error
	h := New(store, WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
		rendered = err
		WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	})).Handler(Options{}, handler.serve)

	rec := do(t, h, http.MethodGet, "/cars")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
	assert.EqualError(t, rendered, "connection refused")
	assert.Equal(t, 0, store.Stats().Total)
}

func TestMiddleware_NonGetPassesThrough(t *testing.T) {
	store := newStore(t)
	handler := &countingHandler{status: http.StatusCreated, body: map[string]string{"id": "1"}}
	h := New(store).Handler(Options{}, handler.serve)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		rec := do(t, h, method, "/cars")
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Empty(t, rec.Header().Get(HeaderCache))
	}

	assert.Equal(t, int32(3), handler.calls.Load())
	assert.Equal(t, 0, store.Stats().Total)
}

func TestMiddleware_SkipNoCache(t *testing.T) {
	store := newStore(t)
	handler := &countingHandler{status: http.StatusOK, body: "x"}
	h := New(store).Handler(Options{SkipFn: SkipNoCache}, handler.serve)

	do(t, h, http.MethodGet, "/cars", "Cache-Control", "no-cache")
	do(t, h, http.MethodGet, "/cars", "Cache-Control", "max-age=0, no-store")

	assert.Equal(t, int32(2), handler.calls.Load())
	assert.Equal(t, 0, store.Stats().Total)

	do(t, h, http.MethodGet, "/cars", "Cache-Control", "max-age=60")
	assert.Equal(t, 1, store.Stats().Total)
}

func TestMiddleware_TimeoutWritesNothing(t *testing.T) {
	store := newStore(t)
	slow := func(r *http.Request) (*Response, error) {
		<-r.Context().Done()
		return nil, r.Context().Err()
	}
	h := New(store).Handler(Options{Timeout: 20 * time.Millisecond}, slow)

	rec := do(t, h, http.MethodGet, "/cars")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, 0, store.Stats().Total)
}

func TestMiddleware_LateSuccessAfterTimeoutIsNotCached(t *testing.T) {
	store := newStore(t)
	late := func(r *http.Request) (*Response, error) {
		<-r.Context().Done()
		return JSON(http.StatusOK, "too late"), nil
	}
	h := New(store).Handler(Options{Timeout: 20 * time.Millisecond}, late)

	rec := do(t, h, http.MethodGet, "/cars")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, 0, store.Stats().Total)
}

func TestMiddleware_WriteFinishingAfterDeadlineSucceeds(t *testing.T) {
	store := newStore(t)
	committed := func(r *http.Request) (*Response, error) {
		<-r.Context().Done()
		return JSON(http.StatusCreated, map[string]string{"id": "1"}), nil
	}
	h := New(store).Handler(Options{Timeout: 20 * time.Millisecond}, committed)

	rec := do(t, h, http.MethodPost, "/cars")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":"1"}`, rec.Body.String())
	assert.Equal(t, 0, store.Stats().Total)

	failed := func(r *http.Request) (*Response, error) {
		<-r.Context().Done()
		return nil, r.Context().Err()
	}
	h = New(store).Handler(Options{Timeout: 20 * time.Millisecond}, failed)
	assert.Equal(t, http.StatusGatewayTimeout, do(t, h, http.MethodPut, "/cars/1").Code)
}

func TestMiddleware_BypassedReadAfterDeadlineTimesOut(t *testing.T) {
	store := newStore(t)
	late := func(r *http.Request) (*Response, error) {
		<-r.Context().Done()
		return JSON(http.StatusOK, "too late"), nil
	}
	h := New(store).Handler(Options{Timeout: 20 * time.Millisecond, SkipFn: SkipNoCache}, late)

	rec := do(t, h, http.MethodGet, "/cars", "Cache-Control", "no-cache")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestMiddleware_CoalescesConcurrentMisses(t *testing.T) {
	store := newStore(t)
	release := make(chan struct{})
	var calls atomic.Int32
	blocking := func(r *http.Request) (*Response, error) {
		calls.Add(1)
		<-release
		return JSON(http.StatusOK, "page"), nil
	}
	h := New(store).Handler(Options{}, blocking)

	var wg sync.WaitGroup
	codes := make([]int, 8)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = do(t, h, http.MethodGet, "/cars").Code
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
}

func TestMiddleware_InvalidationDuringMissPreventsStore(t *testing.T) {
	store := newStore(t)
	started := make(chan struct{})
	release := make(chan struct{})
	h := New(store).Handler(Options{Namespace: "cars:"}, func(r *http.Request) (*Response, error) {
		close(started)
		<-release
		return JSON(http.StatusOK, "computed before the write"), nil
	})

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- do(t, h, http.MethodGet, "/cars") }()

	<-started
	store.DeleteMatching("cars:")
	close(release)

	rec := <-done
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, store.Stats().Total)
}

func TestMiddleware_PreservesHandlerHeadersAndStatus(t *testing.T) {
	store := newStore(t)
	h := New(store).Handler(Options{}, func(r *http.Request) (*Response, error) {
		return &Response{
			Status: http.StatusNonAuthoritativeInfo,
			Body:   "x",
			Header: http.Header{"X-Total-Count": {"3"}},
		}, nil
	})

	first := do(t, h, http.MethodGet, "/cars")
	second := do(t, h, http.MethodGet, "/cars")

	for _, rec := range []*httptest.ResponseRecorder{first, second} {
		assert.Equal(t, http.StatusNonAuthoritativeInfo, rec.Code)
		assert.Equal(t, "3", rec.Header().Get("X-Total-Count"))
	}
	assert.Equal(t, "HIT", second.Header().Get(HeaderCache))
}

func TestSkipNoCache(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, SkipNoCache(r))

	r.Header.Set("Cache-Control", "No-Cache")
	assert.True(t, SkipNoCache(r))
}
