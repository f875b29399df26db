package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cleaner removes idempotency keys that lost their expiry or outlive maxTTL.
type Cleaner struct {
	client   *redis.Client
	log      *slog.Logger
	interval time.Duration
	maxTTL   time.Duration
}

func NewCleaner(client *redis.Client, log *slog.Logger, interval, maxTTL time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		client:   client,
		log:      log,
		interval: interval,
		maxTTL:   maxTTL,
	}
}

func (c *Cleaner) Run(ctx context.Context) {
	if c == nil || c.client == nil || c.interval <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

// cleanup scans one batch at a time and drops keys that have no expiry or
// an expiry beyond maxTTL. It returns the number of keys removed.
func (c *Cleaner) cleanup(ctx context.Context) int {
	var (
		cursor  uint64
		removed int
	)

	for {
		keys, next, err := c.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			c.log.Error("idempotency cleaner scan failed", slog.Any("error", err))
			return removed
		}

		if stale := c.stale(ctx, keys); len(stale) > 0 {
			n, err := c.client.Del(ctx, stale...).Result()
			if err != nil {
				c.log.Warn("idempotency cleaner delete failed", slog.Int("keys", len(stale)), slog.Any("error", err))
			}
			removed += int(n)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	if removed > 0 {
		c.log.Info("idempotency cleaner removed stale keys", slog.Int("removed", removed))
	}
	return removed
}

func (c *Cleaner) stale(ctx context.Context, keys []string) []string {
	if len(keys) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	ttls := make([]*redis.DurationCmd, len(keys))
	for i, key := range keys {
		ttls[i] = pipe.TTL(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		c.log.Warn("idempotency cleaner ttl lookup failed", slog.Any("error", err))
		return nil
	}

	var stale []string
	for i, cmd := range ttls {
		ttl := cmd.Val()
		// -2 means the key vanished between SCAN and TTL.
		if ttl == -2 {
			continue
		}
		if ttl < 0 || ttl > c.maxTTL {
			stale = append(stale, keys[i])
		}
	}
	return stale
}
