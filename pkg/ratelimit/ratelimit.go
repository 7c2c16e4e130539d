// Package ratelimit holds per-key token buckets, used to throttle login
// attempts by client IP.
package ratelimit

import (
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/shelf/pkg/errcodes"
	"golang.org/x/time/rate"
)

const idleTTL = 30 * time.Minute

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter gives every key its own token bucket. Buckets idle for longer
// than idleTTL are dropped by Sweep.
type KeyedLimiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

// PerMinute returns a limiter allowing n requests per minute per key, with a
// burst of n.
func PerMinute(n int) *KeyedLimiter {
	if n <= 0 {
		return New(rate.Inf, 0)
	}
	return New(rate.Limit(float64(n)/60), n)
}

func New(limit rate.Limit, burst int) *KeyedLimiter {
	return &KeyedLimiter{
		entries: map[string]*entry{},
		limit:   limit,
		burst:   burst,
		now:     time.Now,
	}
}

// Allow reports whether a request for key may proceed, consuming a token if
// so.
func (kl *KeyedLimiter) Allow(key string) bool {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	now := kl.now()
	e, ok := kl.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(kl.limit, kl.burst)}
		kl.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// Sweep drops buckets that haven't been used for idleTTL and returns how many
// were removed.
func (kl *KeyedLimiter) Sweep() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	cutoff := kl.now().Add(-idleTTL)
	removed := 0
	for key, e := range kl.entries {
		if e.lastSeen.Before(cutoff) {
			delete(kl.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (kl *KeyedLimiter) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.entries)
}

// Middleware rejects requests with 429 once the client IP has used up its
// bucket.
func (kl *KeyedLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if !kl.Allow(ip) {
				logger.FromContext(c.Request().Context()).Warn("rate limit exceeded", logger.Data{
					"ip":   ip,
					"path": c.Path(),
				})
				return errcodes.TooManyRequests()
			}
			return next(c)
		}
	}
}
