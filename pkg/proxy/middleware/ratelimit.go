package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"labsight/gateway/pkg/config"
	"labsight/gateway/pkg/proxy"
	"labsight/gateway/pkg/telemetry/metrics"
)

// MsgRateLimited is the detail returned with 429 responses.
const MsgRateLimited = "Rate limit exceeded. Try again shortly."

// RateLimiter counts requests per (client IP, exact path) over a sliding
// window. Paths without a rule are not limited. It is safe for concurrent
// use.
type RateLimiter struct {
	window time.Duration
	rules  map[string]int
	now    func() time.Time

	mu      sync.Mutex
	windows map[limiterKey][]time.Time
}

type limiterKey struct {
	ip   string
	path string
}

// NewRateLimiter creates a limiter from cfg. Rules with a non-positive
// limit are ignored.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	rules := make(map[string]int, len(cfg.Rules))
	for path, limit := range cfg.Rules {
		if limit > 0 {
			rules[path] = limit
		}
	}
	return &RateLimiter{
		window:  cfg.Window,
		rules:   rules,
		now:     time.Now,
		windows: make(map[limiterKey][]time.Time),
	}
}

// Allow records a request and reports whether it is within the limit. When
// it is not, retryAfter is how long until the oldest request in the window
// expires.
func (l *RateLimiter) Allow(ip, path string) (allowed bool, retryAfter time.Duration) {
	limit, ok := l.rules[path]
	if !ok {
		return true, 0
	}

	now := l.now()
	windowStart := now.Add(-l.window)
	key := limiterKey{ip: ip, path: path}

	l.mu.Lock()
	defer l.mu.Unlock()

	timestamps := l.windows[key]
	i := 0
	for i < len(timestamps) && !timestamps[i].After(windowStart) {
		i++
	}
	timestamps = timestamps[i:]

	if len(timestamps) >= limit {
		l.windows[key] = timestamps
		return false, timestamps[0].Sub(windowStart)
	}

	l.windows[key] = append(timestamps, now)
	return true, 0
}

// Prune drops keys whose requests have all left the window.
func (l *RateLimiter) Prune() {
	windowStart := l.now().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, timestamps := range l.windows {
		if len(timestamps) == 0 || !timestamps[len(timestamps)-1].After(windowStart) {
			delete(l.windows, key)
		}
	}
}

// RateLimitMiddleware rejects requests over the limiter's budget with 429,
// a Retry-After header in whole seconds and a detail body.
func RateLimitMiddleware(limiter *RateLimiter, collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			allowed, retryAfter := limiter.Allow(ip, r.URL.Path)
			if !allowed {
				collector.RecordRateLimited(r.URL.Path)
				slog.WarnContext(r.Context(), "rate limit exceeded",
					"path", r.URL.Path,
					"client_ip", ip,
				)
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
				proxy.WriteDetail(w, http.StatusTooManyRequests, MsgRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the host part of the connection's remote address.
// Forwarding headers are ignored since clients control them.
func ClientIP(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
