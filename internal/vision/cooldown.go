package vision

import (
	"sync"
	"time"
)

// Cooldown rate-limits escalations per session so a sustained threat in
// view does not flood security with repeated alerts.
type Cooldown struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[string]time.Time
	now      func() time.Time
}

// NewCooldown creates a per-session cooldown gate.
func NewCooldown(interval time.Duration) *Cooldown {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Cooldown{
		interval: interval,
		last:     make(map[string]time.Time),
		now:      time.Now,
	}
}

// Allow reports whether an escalation may fire for the session and, if
// so, starts the session's cooldown.
func (c *Cooldown) Allow(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if last, ok := c.last[sessionID]; ok && now.Sub(last) < c.interval {
		return false
	}
	c.last[sessionID] = now
	return true
}

// Forget drops the session's cooldown state.
func (c *Cooldown) Forget(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.last, sessionID)
}
