package api

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	RequestsPerMinute int
	BurstSize         int
}

// bucket is one client's token bucket. Tokens refill continuously up
// to the burst capacity; lastSeen doubles as the refill anchor and the
// idle marker for the sweeper.
type bucket struct {
	mu       sync.Mutex
	tokens   float64
	lastSeen time.Time
}

// RateLimiter applies a per-client token bucket to incoming requests.
// Buckets are keyed by client IP and dropped after an idle period so
// one-off callers do not accumulate forever.
type RateLimiter struct {
	mu      sync.RWMutex
	buckets map[string]*bucket

	rate    float64 // tokens per second
	burst   float64
	limit   int // advertised requests per minute
	idleTTL time.Duration
}

// NewRateLimiter creates a rate limiter and starts its background
// sweeper.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		rate:    float64(config.RequestsPerMinute) / 60.0,
		burst:   float64(config.BurstSize),
		limit:   config.RequestsPerMinute,
		idleTTL: 5 * time.Minute,
	}

	go rl.sweepLoop(1 * time.Minute)

	return rl
}

// take consumes one token for the client if available and reports the
// bucket state after the attempt. reset is when the bucket refills
// completely.
func (rl *RateLimiter) take(key string) (allowed bool, remaining int, reset time.Time) {
	b := rl.bucketFor(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.tokens = min(rl.burst, b.tokens+now.Sub(b.lastSeen).Seconds()*rl.rate)
	b.lastSeen = now

	if b.tokens >= 1 {
		b.tokens--
		allowed = true
	}

	reset = now
	if missing := rl.burst - b.tokens; missing > 0 {
		reset = now.Add(time.Duration(missing / rl.rate * float64(time.Second)))
	}
	return allowed, int(b.tokens), reset
}

// bucketFor returns the client's bucket, creating it on first sight.
func (rl *RateLimiter) bucketFor(key string) *bucket {
	rl.mu.RLock()
	b, ok := rl.buckets[key]
	rl.mu.RUnlock()

	if ok {
		return b
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check after acquiring write lock
	if b, ok := rl.buckets[key]; ok {
		return b
	}

	b = &bucket{tokens: rl.burst, lastSeen: time.Now()}
	rl.buckets[key] = b

	return b
}

func (rl *RateLimiter) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for range ticker.C {
		rl.sweep(time.Now())
	}
}

// sweep drops buckets idle past the TTL.
func (rl *RateLimiter) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, b := range rl.buckets {
		b.mu.Lock()
		idle := now.Sub(b.lastSeen)
		b.mu.Unlock()

		if idle > rl.idleTTL {
			delete(rl.buckets, key)
		}
	}
}

// Allow reports whether one request from the client may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	allowed, _, _ := rl.take(key)
	return allowed
}

// Middleware enforces the limit on every request except health checks,
// which monitoring probes may hit at any frequency.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		allowed, remaining, reset := rl.take(clientIP(r))

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !allowed {
			retryAfter := int(time.Until(reset).Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

			respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
				fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", retryAfter))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP picks the caller's address: the first valid X-Forwarded-For
// hop, then X-Real-IP, then RemoteAddr.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}

	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		if net.ParseIP(real) != nil {
			return real
		}
	}

	// RemoteAddr is usually "IP:port"; a bare IP appears in tests.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if net.ParseIP(host) != nil {
		return host
	}

	return "unknown"
}
