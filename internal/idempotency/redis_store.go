package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"

	keyPrefix = "idempotency:"
)

// Record is the persisted state of one key.
type Record struct {
	Status   string    `json:"status"`
	Response *Response `json:"response,omitempty"`
	StoredAt time.Time `json:"stored_at"`
}

// Release frees a key claimed with Store.Claim.
type Release func(ctx context.Context) error

type Store interface {
	// Claim reserves key for one in-flight request. It returns
	// ErrRequestInProgress while another request holds the key.
	Claim(ctx context.Context, key string, ttl time.Duration) (Release, error)
	Get(ctx context.Context, key string) (*Record, error)
	Set(ctx context.Context, key string, record *Record, ttl time.Duration) error
}

// RedisStore keeps each record as a JSON string with its own expiry. Claims
// are token-guarded locks, so a request whose claim expired cannot release
// the claim of the request that replaced it.
type RedisStore struct {
	client *redis.Client
	locker *redislock.Client
	log    *slog.Logger
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, log *slog.Logger) *RedisStore {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStore{
		client: client,
		locker: redislock.New(client),
		log:    log,
		now:    time.Now,
	}
}

func (s *RedisStore) Claim(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	lock, err := s.locker.Obtain(ctx, lockKey(key), ttl, &redislock.Options{Metadata: StatusProcessing})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrRequestInProgress
	}
	if err != nil {
		s.log.Error("idempotency claim failed", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}

	return func(ctx context.Context) error {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return err
		}
		return nil
	}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	raw, err := s.client.Get(ctx, recordKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		s.log.Error("idempotency record read failed", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}

	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		// An unreadable record is treated as absent and replaced on the next store.
		s.log.Warn("idempotency record is corrupt", slog.String("key", key), slog.Any("error", err))
		return nil, nil
	}

	return &record, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, record *Record, ttl time.Duration) error {
	if record == nil {
		return nil
	}
	if record.StoredAt.IsZero() {
		record.StoredAt = s.now().UTC()
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, recordKey(key), raw, ttl).Err(); err != nil {
		s.log.Error("idempotency record write failed", slog.String("key", key), slog.Any("error", err))
		return err
	}

	return nil
}

func recordKey(key string) string {
	return keyPrefix + key
}

func lockKey(key string) string {
	return keyPrefix + key + ":lock"
}
