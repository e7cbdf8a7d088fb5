package alerting

import (
	"sync"
	"time"
)

// CooldownTracker suppresses repeated alerts for the same key within a
// cooldown window. Keys combine event kind and pool so a failover alert
// never shadows an error-rate alert for the same pool.
type CooldownTracker struct {
	mu       sync.Mutex
	lastSent map[string]time.Time
}

func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{lastSent: make(map[string]time.Time)}
}

// Allow reports whether the key is outside its cooldown window. When
// allowed it records the current time, so the window restarts from the
// attempt itself; a later delivery failure does not reset it.
func (c *CooldownTracker) Allow(key string, cooldown time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if last, ok := c.lastSent[key]; ok && time.Since(last) < cooldown {
		return false
	}
	c.lastSent[key] = time.Now()
	return true
}

// LastSent returns when the key last passed Allow.
func (c *CooldownTracker) LastSent(key string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	last, ok := c.lastSent[key]
	return last, ok
}
