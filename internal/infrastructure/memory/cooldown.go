package memory

import (
	"context"
	"sync"
	"time"

	"github.com/phone-verify/internal/domain"
)

// Cooldown tracks the last acquisition per key in process memory.
type Cooldown struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

func NewCooldown() *Cooldown {
	return &Cooldown{until: make(map[string]time.Time), now: time.Now}
}

func (c *Cooldown) Acquire(_ context.Context, key string, window time.Duration) error {
	if window <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if t, ok := c.until[key]; ok && now.Before(t) {
		return domain.ErrTooSoon
	}
	c.until[key] = now.Add(window)
	return nil
}

func (c *Cooldown) Release(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.until, key)
	return nil
}

func (c *Cooldown) ReleaseAll(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.until)
	c.until = make(map[string]time.Time)
	return n, nil
}
