package admin

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kimjw0623/find-angel-sub000/internal/cache"
)

const (
	// limiterTTL is how long a client's limiter lives before it is rebuilt.
	limiterTTL = 10 * time.Minute

	limiterCapacity = 4096
)

type endpointLimit struct {
	rps   rate.Limit
	burst int
}

type endpointRule struct {
	method string // "" matches any method
	prefix string
	limit  endpointLimit
}

// RateLimitMiddleware limits each client per endpoint. Limiters live in a
// bounded LRU, so idle clients age out without a sweeper goroutine.
type RateLimitMiddleware struct {
	limiters *cache.LRU[string, *rate.Limiter]
	rules    []endpointRule
	logger   *slog.Logger
}

func NewRateLimitMiddleware(logger *slog.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiters: cache.NewLRU[string, *rate.Limiter](limiterCapacity, limiterTTL),
		logger:   logger.With("component", "admin_ratelimit"),
		rules: []endpointRule{
			// A reload reads a whole generation from the database.
			{method: http.MethodPost, prefix: "/admin/v1/patterns/reload", limit: endpointLimit{rps: rate.Every(10 * time.Second), burst: 1}},
			{method: http.MethodGet, prefix: "/admin/v1/generations", limit: endpointLimit{rps: rate.Limit(30.0 / 60), burst: 5}},
			{limit: endpointLimit{rps: 1, burst: 5}},
		},
	}
}

// LimiterCount returns the number of tracked client limiters.
func (rl *RateLimitMiddleware) LimiterCount() int {
	return rl.limiters.Len()
}

func (rl *RateLimitMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rule := rl.match(r.Method, r.URL.Path)
		clientIP := extractClientIP(r)

		if !rl.limiter(rule, clientIP).Allow() {
			w.Header().Set("Retry-After", retryAfter(rule.limit))
			http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
			rl.logger.Warn("admin API rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"client_ip", clientIP,
			)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimitMiddleware) match(method, path string) endpointRule {
	for _, rule := range rl.rules {
		if rule.method != "" && !strings.EqualFold(rule.method, method) {
			continue
		}
		if rule.prefix != "" && !strings.HasPrefix(path, rule.prefix) {
			continue
		}
		return rule
	}
	return endpointRule{limit: endpointLimit{rps: 1, burst: 5}}
}

func (rl *RateLimitMiddleware) limiter(rule endpointRule, clientIP string) *rate.Limiter {
	key := rule.method + ":" + rule.prefix + "|" + clientIP
	fresh := rate.NewLimiter(rule.limit.rps, rule.limit.burst)
	if rl.limiters.Add(key, fresh, time.Time{}) {
		return fresh
	}
	if existing, ok := rl.limiters.Get(key); ok {
		return existing
	}
	return fresh
}

func retryAfter(l endpointLimit) string {
	if l.rps <= 0 {
		return "60"
	}
	secs := int(math.Ceil(1 / float64(l.rps)))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// extractClientIP prefers the first X-Forwarded-For hop, then X-Real-IP,
// then the connection address.
func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.IndexByte(xff, ','); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
