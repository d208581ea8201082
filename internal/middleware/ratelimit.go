package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// maxTrackedClients bounds the limiter's memory: once this many source
// addresses are tracked, new addresses are rejected until cleanup runs.
const maxTrackedClients = 100000

// RateLimiter throttles the coordination API per client address with a
// token bucket per source IP.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*tokenBucket
	refill  float64 // tokens added per second
	burst   float64
}

type tokenBucket struct {
	tokens   float64
	refillAt time.Time // last refill instant
	seenAt   time.Time // last request instant, drives cleanup
}

// NewRateLimiter creates a limiter sustaining rate requests per second
// per client with the given burst headroom.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*tokenBucket),
		refill:  rate,
		burst:   float64(burst),
	}
}

// Handler enforces the limit, answering 429 with a Retry-After hint
// when a client's bucket is empty.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remaining, wait, ok := rl.take(clientAddr(r))

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Second).Unix(), 10))

		if !ok {
			w.Header().Set("Retry-After", strconv.FormatFloat(math.Ceil(wait), 'f', 0, 64))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// take consumes one token for addr, reporting the remaining tokens and,
// when denied, the seconds until the next token arrives.
func (rl *RateLimiter) take(addr string) (remaining int, wait float64, ok bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b := rl.clients[addr]
	if b == nil {
		if len(rl.clients) >= maxTrackedClients {
			return 0, 1 / rl.refill, false
		}
		b = &tokenBucket{tokens: rl.burst - 1, refillAt: now, seenAt: now}
		rl.clients[addr] = b
		return int(b.tokens), 0, true
	}

	b.tokens = math.Min(rl.burst, b.tokens+now.Sub(b.refillAt).Seconds()*rl.refill)
	b.refillAt = now
	b.seenAt = now

	if b.tokens < 1 {
		return 0, (1 - b.tokens) / rl.refill, false
	}
	b.tokens--
	return int(b.tokens), 0, true
}

// StartCleanup evicts buckets idle longer than maxIdle on the given
// interval. The returned function stops the sweeper.
func (rl *RateLimiter) StartCleanup(interval, maxIdle time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.sweep(maxIdle)
			}
		}
	}()
	return cancel
}

func (rl *RateLimiter) sweep(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := time.Now().Add(-maxIdle)
	for addr, b := range rl.clients {
		if b.seenAt.Before(cutoff) {
			delete(rl.clients, addr)
		}
	}
}

// Len reports how many client buckets are tracked.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// clientAddr keys the bucket on the socket peer. Forwarding headers are
// deliberately ignored: anything the client controls would let it mint
// fresh buckets at will.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
