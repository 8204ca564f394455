package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterSweepInterval = 5 * time.Minute
	limiterIdleTTL       = 10 * time.Minute
)

type bucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

// keyRateLimiter keeps one token bucket per client key.
// Buckets idle for longer than limiterIdleTTL are swept.
type keyRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int

	done     chan struct{}
	stopOnce sync.Once
}

func newKeyRateLimiter(limit rate.Limit, burst int) *keyRateLimiter {
	k := &keyRateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		burst:   burst,
		done:    make(chan struct{}),
	}
	go k.sweepLoop()
	return k
}

func (k *keyRateLimiter) getLimiter(key string) *rate.Limiter {
	now := time.Now()

	k.mu.Lock()
	defer k.mu.Unlock()

	b, ok := k.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.buckets[key] = b
	}
	b.seen = now
	return b.limiter
}

// take consumes a token for key. When none is available it returns false
// and how long the caller should wait before the next attempt.
func (k *keyRateLimiter) take(key string) (bool, time.Duration) {
	now := time.Now()
	r := k.getLimiter(key).ReserveN(now, 1)
	if !r.OK() {
		return false, time.Minute
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (k *keyRateLimiter) sweepLoop() {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			k.cleanup(now.Add(-limiterIdleTTL))
		case <-k.done:
			return
		}
	}
}

// cleanup drops buckets last seen before cutoff
func (k *keyRateLimiter) cleanup(cutoff time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for key, b := range k.buckets {
		if b.seen.Before(cutoff) {
			delete(k.buckets, key)
		}
	}
}

func (k *keyRateLimiter) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}

// Stop ends the sweep goroutine. Safe to call more than once.
func (k *keyRateLimiter) Stop() {
	k.stopOnce.Do(func() { close(k.done) })
}

// RateLimitConfig configures IPRateLimiter
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// IPRateLimiter throttles the public write endpoints per client IP
type IPRateLimiter struct {
	buckets *keyRateLimiter
}

// NewIPRateLimiter creates a per-IP limiter. Call Stop on shutdown.
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}

	every := time.Minute / time.Duration(cfg.RequestsPerMinute)
	return &IPRateLimiter{buckets: newKeyRateLimiter(rate.Every(every), cfg.Burst)}
}

// Middleware rejects requests over the limit with 429 and a Retry-After
// header rounded up to whole seconds
func (l *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, wait := l.buckets.take(c.ClientIP())
		if ok {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"success": false,
			"error":   "Too many requests. Please try again later.",
		})
	}
}

// Stop releases the sweep goroutine
func (l *IPRateLimiter) Stop() {
	l.buckets.Stop()
}
