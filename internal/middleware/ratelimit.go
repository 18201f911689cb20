package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter is per-client token bucket rate limiting middleware.
// Clients are keyed by IP; whatever upstream middleware left in
// RemoteAddr decides what counts as the client.
type RateLimiter struct {
	mu         sync.Mutex
	clients    map[string]*bucket
	rate       float64 // tokens per second
	burst      float64
	maxClients int
	now        func() time.Time
}

type bucket struct {
	tokens  float64
	touched time.Time
}

// refill credits tokens for the time passed since the last touch, up to
// the burst ceiling.
func (b *bucket) refill(now time.Time, rate, burst float64) {
	b.tokens = math.Min(b.tokens+now.Sub(b.touched).Seconds()*rate, burst)
	b.touched = now
}

// decision is the outcome of one take: either a pass with the tokens left,
// or a rejection with the wait until the next token.
type decision struct {
	allowed    bool
	remaining  int
	retryAfter float64
}

// NewRateLimiter creates a rate limiter with the given sustained rate
// (requests per second) and burst size.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	return &RateLimiter{
		clients:    make(map[string]*bucket),
		rate:       rate,
		burst:      float64(burst),
		maxClients: 100_000,
		now:        time.Now,
	}
}

// Handler returns middleware that rejects over-limit requests with 429
// and a Retry-After hint. Every response carries the X-RateLimit counters.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := rl.take(clientIP(r))

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(rl.now().Add(time.Second).Unix(), 10))

		if !d.allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.retryAfter))))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// take spends one token from the client's bucket, creating it on first
// contact.
func (rl *RateLimiter) take(key string) decision {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.clients[key]
	switch {
	case ok:
		b.refill(now, rl.rate, rl.burst)
	case len(rl.clients) >= rl.maxClients:
		// Refuse new clients once the table is full rather than growing
		// without bound.
		return decision{retryAfter: 1 / rl.rate}
	default:
		b = &bucket{tokens: rl.burst, touched: now}
		rl.clients[key] = b
	}

	if b.tokens < 1 {
		return decision{retryAfter: (1 - b.tokens) / rl.rate}
	}
	b.tokens--
	return decision{allowed: true, remaining: int(b.tokens)}
}

// StartCleanup spawns a sweeper that drops buckets idle for longer than
// maxIdle, checking every interval. The returned function stops it and
// is safe to call more than once.
func (rl *RateLimiter) StartCleanup(interval, maxIdle time.Duration) func() {
	quit := make(chan struct{})
	go func() {
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case <-quit:
				return
			case <-tick.C:
				rl.sweep(maxIdle)
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(quit) }) }
}

func (rl *RateLimiter) sweep(maxIdle time.Duration) {
	cutoff := rl.now().Add(-maxIdle)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.clients {
		if b.touched.Before(cutoff) {
			delete(rl.clients, key)
		}
	}
}

// Len returns the number of tracked client buckets.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// clientIP keys buckets by remote host so an agent reconnecting from new
// source ports keeps sharing one bucket.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
