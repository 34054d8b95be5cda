package middleware

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/mindcare-directory/internal/adapters/cache"
	redisclient "github.com/zatekoja/mindcare-directory/internal/infrastructure/clients/redis"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true}`))
})

func TestCORSMiddleware(t *testing.T) {
	t.Run("wildcard", func(t *testing.T) {
		h := CORSMiddleware(nil)(okHandler)
		req := httptest.NewRequest(http.MethodGet, "/api/contact-quota", nil)
		req.Header.Set("Origin", "https://anything.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("explicit origins", func(t *testing.T) {
		h := CORSMiddleware([]string{"https://app.example"})(okHandler)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://app.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Origin", rec.Header().Get("Vary"))

		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://other.example")
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		called := false
		h := CORSMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/bookings", nil))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.False(t, called)
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), AdminTokenHeader)
	})
}

func TestIdentity(t *testing.T) {
	var seen string
	h := Identity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserIDHeader, "  user-7 ")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "user-7", seen)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, seen)

	assert.Empty(t, UserIDFromContext(context.Background()))
}

func TestAdminOnly(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{name: "disabled", token: "", header: "anything", want: http.StatusNotFound},
		{name: "missing header", token: "s3cret", header: "", want: http.StatusUnauthorized},
		{name: "wrong token", token: "s3cret", header: "s3cre", want: http.StatusUnauthorized},
		{name: "valid", token: "s3cret", header: "s3cret", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/admin/contact-quotas/u/reset", nil)
			if tt.header != "" {
				req.Header.Set(AdminTokenHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			AdminOnly(tt.token)(okHandler).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	clock := time.Date(2024, time.March, 14, 10, 0, 0, 0, time.UTC)
	l := NewRateLimiter(2, 2)
	l.now = func() time.Time { return clock }

	ok, _ := l.Allow("user-1")
	assert.True(t, ok)
	ok, _ = l.Allow("user-1")
	assert.True(t, ok)

	ok, wait := l.Allow("user-1")
	assert.False(t, ok)
	assert.Equal(t, 30*time.Second, wait)

	ok, _ = l.Allow("user-2")
	assert.True(t, ok, "buckets are per key")

	clock = clock.Add(30 * time.Second)
	ok, _ = l.Allow("user-1")
	assert.True(t, ok, "one token refills every 30s")
}

func TestRateLimiter_ForgetsIdleKeys(t *testing.T) {
	clock := time.Date(2024, time.March, 14, 10, 0, 0, 0, time.UTC)
	l := NewRateLimiter(1, 1)
	l.now = func() time.Time { return clock }

	l.Allow("user-1")
	clock = clock.Add(idleLimiterTTL + time.Minute)
	l.Allow("user-2")

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.limiters, "user-1")
	assert.Contains(t, l.limiters, "user-2")
}

func TestRateLimiter_Middleware(t *testing.T) {
	h := Identity(NewRateLimiter(1, 1).Middleware(okHandler))

	send := func(userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/providers/p/contact-requests", nil)
		if userID != "" {
			req.Header.Set(UserIDHeader, userID)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send("user-1").Code)

	rec := send("user-1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"too many requests","code":"RATE_LIMITED"}`, rec.Body.String())

	// anonymous callers are keyed by address
	assert.Equal(t, http.StatusOK, send("").Code)
	assert.Equal(t, http.StatusTooManyRequests, send("").Code)
}

func TestCacheMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	adapter := cache.NewRedisAdapter(redisclient.NewFromRedis(rdb), "test:")

	var calls atomic.Int32
	status := http.StatusOK
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"month":"2024-03"}`))
	})
	h := NewCacheMiddleware(adapter, nil).Handler(60, next)

	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	t.Run("miss then hit", func(t *testing.T) {
		first := get("/api/providers/p1/availability?month=2024-03")
		assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

		second := get("/api/providers/p1/availability?month=2024-03")
		assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
		assert.Equal(t, first.Body.String(), second.Body.String())
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("query is part of the key", func(t *testing.T) {
		rec := get("/api/providers/p1/availability?month=2024-04")
		assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	})

	t.Run("errors are not cached", func(t *testing.T) {
		status = http.StatusBadGateway
		defer func() { status = http.StatusOK }()

		get("/api/providers/p2/availability")
		rec := get("/api/providers/p2/availability")
		assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("non-GET bypasses", func(t *testing.T) {
		before := calls.Load()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/providers/p1/availability?month=2024-03", nil))
		assert.Empty(t, rec.Header().Get("X-Cache"))
		assert.Equal(t, before+1, calls.Load())
	})

	t.Run("nil middleware passes through", func(t *testing.T) {
		var m *CacheMiddleware
		rec := httptest.NewRecorder()
		m.Handler(60, okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-Cache"))
	})
}

func TestGenerateCacheKey_NormalisesQueryOrder(t *testing.T) {
	a := generateCacheKey(httptest.NewRequest(http.MethodGet, "/p?month=2024-03&location_id=l1", nil))
	b := generateCacheKey(httptest.NewRequest(http.MethodGet, "/p?location_id=l1&month=2024-03", nil))
	assert.Equal(t, a, b)
	assert.Contains(t, a, ResponseCachePrefix)
}

func TestCompression(t *testing.T) {
	h := Compression(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(body))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, `{"ok":true}`, rec.Body.String())
}

func TestCompression_Flush(t *testing.T) {
	h := Compression(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data: hello\n\n"))
		require.NoError(t, http.NewResponseController(w).Flush())
		rec := w.(*gzipResponseWriter).Unwrap().(*httptest.ResponseRecorder)
		assert.True(t, rec.Flushed)
		assert.NotZero(t, rec.Body.Len())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "data: hello\n\n", string(body))
}

func TestCompression_SkipsEventStream(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	Compression(okHandler).ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, `{"ok":true}`, rec.Body.String())
}

func TestCacheControl(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodGet, "/api/providers/p1/availability", "public, max-age=60, must-revalidate"},
		{http.MethodGet, "/api/contact-quota", "private, no-store"},
		{http.MethodPost, "/api/providers/p1/booking-sessions", "private, no-store"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			CacheControl(okHandler).ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, rec.Header().Get("Cache-Control"))
		})
	}
}
