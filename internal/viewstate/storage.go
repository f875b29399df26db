// Package viewstate remembers the admin client list view (search, filter and
// ordering) per admin so the dashboard reopens where it was left.
package viewstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Proton-105/inovabank/internal/client"
	"github.com/Proton-105/inovabank/pkg/redis"
)

// TTL is how long an untouched view state is kept.
const TTL = 30 * 24 * time.Hour

const keyPattern = "admin:view:%s"

// ErrNotFound is returned when the admin has no stored view.
var ErrNotFound = errors.New("view state not found")

// ViewState is the stored list view of one admin.
type ViewState struct {
	AdminID   string       `json:"admin_id"`
	Query     client.Query `json:"query"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Storage defines the persistence contract for admin view states.
type Storage interface {
	Get(ctx context.Context, adminID string) (*ViewState, error)
	Save(ctx context.Context, adminID string, q client.Query) (*ViewState, error)
	Clear(ctx context.Context, adminID string) error
}

// RedisStorage persists view states in Redis.
type RedisStorage struct {
	kv  redis.KV
	log *slog.Logger
	now func() time.Time
}

// NewRedisStorage initializes a Redis-backed Storage implementation.
func NewRedisStorage(kv redis.KV, log *slog.Logger) Storage {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStorage{kv: kv, log: log, now: time.Now}
}

// Get returns the stored view or ErrNotFound when absent.
func (s *RedisStorage) Get(ctx context.Context, adminID string) (*ViewState, error) {
	data, err := s.kv.Get(ctx, key(adminID))
	if err != nil {
		if redis.IsNil(err) {
			return nil, ErrNotFound
		}

		s.log.Error("failed to get view state from redis", "admin_id", adminID, "error", err)
		return nil, err
	}

	var state ViewState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		s.log.Error("failed to decode view state", "admin_id", adminID, "error", err)
		return nil, err
	}

	return &state, nil
}

// Save validates q and stores it for TTL.
func (s *RedisStorage) Save(ctx context.Context, adminID string, q client.Query) (*ViewState, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	state := &ViewState{AdminID: adminID, Query: q, UpdatedAt: s.now().UTC()}

	data, err := json.Marshal(state)
	if err != nil {
		s.log.Error("failed to encode view state", "admin_id", adminID, "error", err)
		return nil, err
	}

	if err := s.kv.Set(ctx, key(adminID), data, TTL); err != nil {
		s.log.Error("failed to save view state in redis", "admin_id", adminID, "error", err)
		return nil, err
	}

	return state, nil
}

// Clear removes the stored view of the admin.
func (s *RedisStorage) Clear(ctx context.Context, adminID string) error {
	if err := s.kv.Delete(ctx, key(adminID)); err != nil {
		s.log.Error("failed to clear view state", "admin_id", adminID, "error", err)
		return err
	}

	return nil
}

// Load returns the stored query of the admin, or the default view when none is stored.
func Load(ctx context.Context, storage Storage, adminID string) (client.Query, error) {
	state, err := storage.Get(ctx, adminID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return client.DefaultQuery(), nil
		}
		return client.DefaultQuery(), err
	}
	return state.Query, nil
}

func key(adminID string) string {
	return fmt.Sprintf(keyPattern, strings.TrimSpace(adminID))
}
