package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLimiter caps requests per client IP over a sliding window. It sits
// in front of the checkout endpoints to absorb card-testing bursts before
// they reach the per-order cool-down.
type RequestLimiter struct {
	mu     sync.Mutex
	seen   map[string][]time.Time
	limit  int
	window time.Duration
}

func NewRequestLimiter(limit int, window time.Duration) *RequestLimiter {
	l := &RequestLimiter{
		seen:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
	}
	go l.prune()
	return l
}

// Allow records a hit for key and reports whether it stayed within the
// window's budget.
func (l *RequestLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	recent := withinWindow(l.seen[key], now.Add(-l.window))
	if len(recent) >= l.limit {
		l.seen[key] = recent
		return false
	}
	l.seen[key] = append(recent, now)
	return true
}

// prune evicts idle keys so one-off visitors do not accumulate forever.
func (l *RequestLimiter) prune() {
	tick := time.NewTicker(time.Minute)
	for range tick.C {
		l.mu.Lock()
		cutoff := time.Now().Add(-l.window)
		for key, times := range l.seen {
			recent := withinWindow(times, cutoff)
			if len(recent) == 0 {
				delete(l.seen, key)
			} else {
				l.seen[key] = recent
			}
		}
		l.mu.Unlock()
	}
}

func withinWindow(times []time.Time, cutoff time.Time) []time.Time {
	var recent []time.Time
	for _, t := range times {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	return recent
}

// RateLimit rejects requests over the per-IP budget with 429.
func RateLimit(limiter *RequestLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
