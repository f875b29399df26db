package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// slidingWindow trims the window, records the request and returns the
// count together with the oldest score still inside the window. Rejected
// requests are recorded too, so a client hammering the API stays blocked.
var slidingWindow = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[2])
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
local count = redis.call('ZCARD', KEYS[1])
local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
return {count, oldest[2]}
`)

// RedisLimiter shares sliding windows between replicas through Redis sorted
// sets scored in milliseconds.
type RedisLimiter struct {
	client *redis.Client
	log    *slog.Logger
	now    func() time.Time
}

var _ Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(client *redis.Client, log *slog.Logger) Limiter {
	if log == nil {
		log = slog.Default()
	}

	return &RedisLimiter{
		client: client,
		log:    log,
		now:    time.Now,
	}
}

// Check runs one atomic window evaluation for key.
func (l *RedisLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if l.client == nil {
		return nil, errors.New("redis client is not configured for rate limiting")
	}

	now := l.now()
	if limit <= 0 {
		return &Result{Allowed: false, Limit: limit, ResetAt: now.Add(window)}, nil
	}

	reply, err := slidingWindow.Run(ctx, l.client,
		[]string{keyPrefix + key},
		now.UnixMilli(),
		now.Add(-window).UnixMilli(),
		(2 * window).Milliseconds(),
		uuid.NewString(),
	).Slice()
	if err != nil {
		l.log.Error("rate limit script failed", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}

	count, resetAt, err := parseWindowReply(reply, now, window)
	if err != nil {
		l.log.Error("rate limit reply malformed", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}

	return &Result{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: max(limit-int(count), 0),
		ResetAt:   resetAt,
	}, nil
}

func parseWindowReply(reply []any, now time.Time, window time.Duration) (int64, time.Time, error) {
	if len(reply) == 0 {
		return 0, time.Time{}, errors.New("empty reply")
	}

	count, ok := reply[0].(int64)
	if !ok {
		return 0, time.Time{}, fmt.Errorf("unexpected count %T", reply[0])
	}

	resetAt := now.Add(window)
	if len(reply) > 1 {
		if raw, ok := reply[1].(string); ok {
			if score, err := strconv.ParseFloat(raw, 64); err == nil {
				resetAt = time.UnixMilli(int64(score)).Add(window)
			}
		}
	}
	return count, resetAt, nil
}
