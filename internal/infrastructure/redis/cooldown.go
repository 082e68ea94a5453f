package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/phone-verify/internal/domain"
)

const (
	cooldownPrefix = "verify:cooldown:"
	scanCount      = 500
)

// Cooldown uses SET NX with an expiry so the window is shared by all instances.
type Cooldown struct {
	client *redis.Client
}

func NewCooldown(client *redis.Client) *Cooldown {
	return &Cooldown{client: client}
}

func (c *Cooldown) Acquire(ctx context.Context, key string, window time.Duration) error {
	if window <= 0 {
		return nil
	}
	ok, err := c.client.SetNX(ctx, cooldownPrefix+key, time.Now().Unix(), window).Result()
	if err != nil {
		return fmt.Errorf("%w: cooldown: %w", domain.ErrStorePersistence, err)
	}
	if !ok {
		return domain.ErrTooSoon
	}
	return nil
}

func (c *Cooldown) Release(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, cooldownPrefix+key).Err(); err != nil {
		return fmt.Errorf("%w: cooldown release: %w", domain.ErrStorePersistence, err)
	}
	return nil
}

// ReleaseAll walks the cooldown keyspace with SCAN and deletes each page.
func (c *Cooldown) ReleaseAll(ctx context.Context) (int, error) {
	n := 0
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, cooldownPrefix+"*", scanCount).Result()
		if err != nil {
			return n, fmt.Errorf("%w: cooldown scan: %w", domain.ErrStorePersistence, err)
		}
		if len(keys) > 0 {
			deleted, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return n, fmt.Errorf("%w: cooldown release all: %w", domain.ErrStorePersistence, err)
			}
			n += int(deleted)
		}
		if next == 0 {
			return n, nil
		}
		cursor = next
	}
}
