// Package clientcache keeps the full admin client list in Redis between mutations.
package clientcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Proton-105/inovabank/internal/domain"
	"github.com/Proton-105/inovabank/pkg/redis"
)

const (
	listKey       = "clients:list"
	generationKey = "clients:list:gen"
)

// Cache provides Redis-backed caching for the client list. Every
// invalidation bumps a generation counter; a list read before the bump is
// never written back after it.
type Cache struct {
	kv  redis.KV
	ttl time.Duration
}

// NewCache constructs a client list cache. A non-positive ttl disables caching.
func NewCache(kv redis.KV, ttl time.Duration) *Cache {
	return &Cache{kv: kv, ttl: ttl}
}

// Get returns the cached list and whether it was present.
func (c *Cache) Get(ctx context.Context) ([]domain.Client, bool, error) {
	if c == nil || c.kv == nil || c.ttl <= 0 {
		return nil, false, nil
	}

	data, err := c.kv.Get(ctx, listKey)
	if err != nil {
		if redis.IsNil(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get cached clients: %w", err)
	}

	var clients []domain.Client
	if err := json.Unmarshal([]byte(data), &clients); err != nil {
		return nil, false, fmt.Errorf("decode cached clients: %w", err)
	}

	return clients, true, nil
}

// Generation returns the token to pass to Set for a list read from now on.
func (c *Cache) Generation(ctx context.Context) (string, error) {
	if c == nil || c.kv == nil || c.ttl <= 0 {
		return "", nil
	}

	gen, err := c.kv.Get(ctx, generationKey)
	if err != nil {
		if redis.IsNil(err) {
			return "0", nil
		}
		return "", fmt.Errorf("get client list generation: %w", err)
	}
	return gen, nil
}

// Set stores the list for the configured TTL unless the cache was
// invalidated after gen was read. It reports whether the list was stored.
func (c *Cache) Set(ctx context.Context, clients []domain.Client, gen string) (bool, error) {
	if c == nil || c.kv == nil || c.ttl <= 0 {
		return false, nil
	}

	payload, err := json.Marshal(clients)
	if err != nil {
		return false, fmt.Errorf("encode clients for cache: %w", err)
	}

	stored, err := c.kv.SetIfEqual(ctx, generationKey, gen, listKey, payload, c.ttl)
	if err != nil {
		return false, fmt.Errorf("set cached clients: %w", err)
	}
	return stored, nil
}

// Invalidate drops the cached list and starts a new generation.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil || c.kv == nil {
		return nil
	}

	if _, err := c.kv.Incr(ctx, generationKey); err != nil {
		return fmt.Errorf("bump client list generation: %w", err)
	}
	if err := c.kv.Delete(ctx, listKey); err != nil {
		return fmt.Errorf("delete cached clients: %w", err)
	}

	return nil
}
