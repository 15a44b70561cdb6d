package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const limiterIdle = 3 * time.Minute

// SendRateLimiter keeps one token bucket per identity.
type SendRateLimiter struct {
	mu        sync.Mutex
	entries   map[string]*limiterEntry
	r         rate.Limit
	burst     int
	lastPrune time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewSendRateLimiter allows perMinute sends per identity with the given burst.
func NewSendRateLimiter(perMinute float64, burst int) *SendRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &SendRateLimiter{
		entries:   make(map[string]*limiterEntry),
		r:         rate.Limit(perMinute / 60.0),
		burst:     burst,
		lastPrune: time.Now(),
	}
}

// Allow reports whether key may send now.
func (rl *SendRateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastPrune) > time.Minute {
		for k, e := range rl.entries {
			if now.Sub(e.lastSeen) > limiterIdle {
				delete(rl.entries, k)
			}
		}
		rl.lastPrune = now
	}

	e, ok := rl.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.r, rl.burst)}
		rl.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.Allow()
}

// RateLimit rejects requests once the caller's bucket is empty. It must run
// after Auth; requests without an identity fall back to the client IP.
func RateLimit(rl *SendRateLimiter, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if id, ok := IdentityFrom(c); ok {
			key = id.Key()
		}
		if !rl.Allow(key) {
			log.Warn().Str("key", key).Str("path", c.Request.URL.Path).Msg("rate limit exceeded")
			abort(c, http.StatusTooManyRequests, "rate_limited", "too many messages, slow down")
			return
		}
		c.Next()
	}
}
