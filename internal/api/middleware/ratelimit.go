package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/zatekoja/mindcare-directory/internal/infrastructure/observability"
	"golang.org/x/time/rate"
)

// idleLimiterTTL is how long an unused per-user limiter is kept
const idleLimiterTTL = 10 * time.Minute

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per user with a token bucket. Anonymous
// requests share one bucket keyed by remote address.
type RateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*userLimiter
	lastGC   time.Time
	now      func() time.Time
}

// NewRateLimiter allows perMinute requests per user, with bursts of up to burst
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &RateLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*userLimiter),
		now:      time.Now,
	}
}

// Allow reports whether key may proceed now, and if not how long to wait
func (l *RateLimiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastGC) > idleLimiterTTL {
		for k, ul := range l.limiters {
			if now.Sub(ul.lastSeen) > idleLimiterTTL {
				delete(l.limiters, k)
			}
		}
		l.lastGC = now
	}

	ul, ok := l.limiters[key]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = ul
	}
	ul.lastSeen = now

	res := ul.limiter.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Middleware rejects requests over the limit with 429 and a Retry-After header
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := UserIDFromContext(r.Context())
		if key == "" {
			key = "addr:" + r.RemoteAddr
		}

		ok, wait := l.Allow(key)
		if !ok {
			observability.LoggerFromContext(r.Context()).Warn().
				Str("key", key).
				Dur("retry_after", wait).
				Msg("rate limit exceeded")
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
