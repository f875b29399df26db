package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	scanBatch     = 100
	defaultMaxAge = 5 * time.Minute
)

// Cleaner drops sliding-window entries older than maxAge. Redis windows left
// empty are deleted, as are idle in-memory buckets.
type Cleaner struct {
	redisClient *redis.Client
	memory      *MemoryLimiter
	log         *slog.Logger
	interval    time.Duration
	maxAge      time.Duration
	now         func() time.Time
}

// NewCleaner constructs a Cleaner. memory may be nil. maxAge should cover the
// longest configured window; non-positive values use five minutes.
func NewCleaner(client *redis.Client, memory *MemoryLimiter, log *slog.Logger, interval, maxAge time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}

	return &Cleaner{
		redisClient: client,
		memory:      memory,
		log:         log,
		interval:    interval,
		maxAge:      maxAge,
		now:         time.Now,
	}
}

// Run cleans every interval until ctx is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c.interval <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("rate limit cleaner stopped")
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *Cleaner) cleanup(ctx context.Context) int {
	if c.memory != nil {
		if n := c.memory.Cleanup(c.maxAge); n > 0 {
			c.log.Debug("rate limit buckets dropped", slog.Int("buckets", n))
		}
	}
	if c.redisClient == nil {
		return 0
	}

	cutoff := fmt.Sprintf("(%d", c.now().Add(-c.maxAge).UnixMilli())
	var (
		cursor  uint64
		removed int
	)

	for ctx.Err() == nil {
		keys, next, err := c.redisClient.Scan(ctx, cursor, keyPrefix+"*", scanBatch).Result()
		if err != nil {
			c.log.Error("rate limit scan failed", slog.Any("error", err))
			break
		}

		removed += c.trim(ctx, keys, cutoff)

		cursor = next
		if cursor == 0 {
			break
		}
	}

	if removed > 0 {
		c.log.Info("rate limit windows removed", slog.Int("keys", removed))
	}
	return removed
}

// trim drops expired entries from keys in a single round trip and deletes
// the windows that end up empty.
func (c *Cleaner) trim(ctx context.Context, keys []string, cutoff string) int {
	if len(keys) == 0 {
		return 0
	}

	pipe := c.redisClient.Pipeline()
	cards := make([]*redis.IntCmd, len(keys))
	for i, key := range keys {
		pipe.ZRemRangeByScore(ctx, key, "-inf", cutoff)
		cards[i] = pipe.ZCard(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn("rate limit trim failed", slog.Int("keys", len(keys)), slog.Any("error", err))
		return 0
	}

	var empty []string
	for i, card := range cards {
		if card.Val() == 0 {
			empty = append(empty, keys[i])
		}
	}
	if len(empty) == 0 {
		return 0
	}

	n, err := c.redisClient.Del(ctx, empty...).Result()
	if err != nil {
		c.log.Warn("rate limit delete failed", slog.Int("keys", len(empty)), slog.Any("error", err))
	}
	return int(n)
}
