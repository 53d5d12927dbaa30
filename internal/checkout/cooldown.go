package checkout

import (
	"sync"
	"time"
)

// Cooldown enforces a minimum interval between successive authorization
// submissions from the same client context, blunting accidental and abusive
// double-submission before anything reaches the gateway.
type Cooldown struct {
	mu     sync.Mutex
	last   map[string]time.Time
	window time.Duration
	clock  Clock
}

func NewCooldown(window time.Duration, clock Clock) *Cooldown {
	if clock == nil {
		clock = RealClock()
	}
	return &Cooldown{last: make(map[string]time.Time), window: window, clock: clock}
}

// Allow reports whether key may submit now and, if so, starts a new window.
func (c *Cooldown) Allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	if t, ok := c.last[key]; ok && now.Sub(t) < c.window {
		return false
	}
	if len(c.last) > 4096 {
		c.prune(now)
	}
	c.last[key] = now
	return true
}

func (c *Cooldown) prune(now time.Time) {
	for k, t := range c.last {
		if now.Sub(t) >= c.window {
			delete(c.last, k)
		}
	}
}
