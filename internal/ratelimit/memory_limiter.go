package ratelimit

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// MemoryLimiter is the in-process fallback used while Redis is unreachable.
// Counts are per instance. Each bucket keeps the accepted request times in
// ascending order.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
	log     *slog.Logger
	now     func() time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

func NewMemoryLimiter(log *slog.Logger) *MemoryLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &MemoryLimiter{
		buckets: make(map[string][]time.Time),
		log:     log,
		now:     time.Now,
	}
}

// Check enforces a sliding-window limit for key. Unlike the Redis limiter,
// rejected requests are not recorded.
func (m *MemoryLimiter) Check(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	bucket := trimBefore(m.buckets[key], now.Add(-window))
	allowed := len(bucket) < limit
	if allowed {
		bucket = append(bucket, now)
	}
	m.buckets[key] = bucket

	result := &Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: max(limit-len(bucket), 0),
		ResetAt:   now.Add(window),
	}
	if len(bucket) > 0 {
		result.ResetAt = bucket[0].Add(window)
	}

	if !allowed {
		return result, ErrLimitExceeded
	}
	return result, nil
}

// Cleanup drops buckets idle for longer than maxAge and returns how many went.
func (m *MemoryLimiter) Cleanup(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	before := len(m.buckets)
	for key, bucket := range m.buckets {
		if n := len(bucket); n == 0 || bucket[n-1].Before(cutoff) {
			delete(m.buckets, key)
		}
	}
	return before - len(m.buckets)
}

// trimBefore removes the entries older than start, reusing the backing array.
func trimBefore(bucket []time.Time, start time.Time) []time.Time {
	first := sort.Search(len(bucket), func(i int) bool {
		return !bucket[i].Before(start)
	})
	if first == 0 {
		return bucket
	}
	return append(bucket[:0], bucket[first:]...)
}
