package middleware

import (
	"net"
	"net/http"
	"strconv"

	"github.com/storyqa/storyqa/internal/domain"
	"github.com/storyqa/storyqa/internal/repository/redis"
	"github.com/storyqa/storyqa/pkg/httputil"
)

// RateLimitMiddleware limits requests per client IP over a fixed
// window backed by Redis.
type RateLimitMiddleware struct {
	cache   *redis.Cache
	limit   int
	enabled bool
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(cache *redis.Cache, limit int, enabled bool) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		cache:   cache,
		limit:   limit,
		enabled: enabled,
	}
}

// Handler returns the middleware handler
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled || m.cache == nil {
			next.ServeHTTP(w, r)
			return
		}

		// Health and metrics probes are never limited
		if r.URL.Path == "/health" || r.URL.Path == "/ready" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		key := m.getRateLimitKey(r)

		allowed, count, err := m.cache.CheckRateLimit(r.Context(), key, m.limit)
		if err != nil {
			// On Redis error, let the request through
			next.ServeHTTP(w, r)
			return
		}

		remaining := m.limit - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			w.Header().Set("Retry-After", "60")
			httputil.JSONError(w, http.StatusTooManyRequests, domain.ErrCodeRateLimited,
				"Rate limit exceeded", map[string]any{"limit": m.limit})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getRateLimitKey keys the counter by client IP. RealIP middleware has
// already rewritten RemoteAddr from the forwarding headers.
func (m *RateLimitMiddleware) getRateLimitKey(r *http.Request) string {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return "ip:" + ip
}
