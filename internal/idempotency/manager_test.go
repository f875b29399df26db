package idempotency

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (Manager, *redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(NewRedisStore(client, log), log), client, mr
}

func TestManager_ReplaysCompletedResponse(t *testing.T) {
	m, _, _ := setup(t)
	ctx := context.Background()
	calls := 0

	op := func(context.Context) (*Response, error) {
		calls++
		return &Response{StatusCode: http.StatusOK, ContentType: "application/json", Body: []byte(`{"ok":true}`)}, nil
	}

	first, err := m.Execute(ctx, "k1", time.Hour, op)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := m.Execute(ctx, "k1", time.Hour, op)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Response, second.Response)
	assert.Equal(t, 1, calls)
}

func TestManager_FailedOperationIsNotStored(t *testing.T) {
	m, _, mr := setup(t)
	ctx := context.Background()
	failure := errors.New("not cacheable")

	result, err := m.Execute(ctx, "k2", time.Hour, func(context.Context) (*Response, error) {
		return &Response{StatusCode: http.StatusInternalServerError}, failure
	})
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, http.StatusInternalServerError, result.Response.StatusCode)
	assert.False(t, mr.Exists("idempotency:k2"))
	assert.False(t, mr.Exists("idempotency:k2:lock"))

	result, err = m.Execute(ctx, "k2", time.Hour, func(context.Context) (*Response, error) {
		return &Response{StatusCode: http.StatusOK}, nil
	})
	require.NoError(t, err)
	assert.False(t, result.FromCache)
}

func TestManager_InFlightKeyIsRejected(t *testing.T) {
	m, client, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, client.SetNX(ctx, "idempotency:k3:lock", StatusProcessing, time.Minute).Err())

	_, err := m.Execute(ctx, "k3", time.Hour, func(context.Context) (*Response, error) {
		t.Fatal("operation must not run while the key is locked")
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrRequestInProgress)
}

func TestCleaner_RemovesKeysWithoutExpiry(t *testing.T) {
	_, client, mr := setup(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("idempotency:stale", "x"))
	require.NoError(t, client.Set(ctx, "idempotency:fresh", "x", time.Hour).Err())
	require.NoError(t, client.Set(ctx, "idempotency:long", "x", 48*time.Hour).Err())

	c := NewCleaner(client, nil, time.Minute, 25*time.Hour)
	assert.Equal(t, 2, c.cleanup(ctx))
	assert.True(t, mr.Exists("idempotency:fresh"))
	assert.False(t, mr.Exists("idempotency:stale"))
}

func TestGenerateKey_IsScoped(t *testing.T) {
	a := GenerateKey("admin-1", "POST", "/api/admin/clients", "abc")
	b := GenerateKey("admin-2", "POST", "/api/admin/clients", "abc")

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, GenerateKey("admin-1", "POST", "/api/admin/clients", "abc"))
}

func TestRedisStore_CorruptRecordIsIgnored(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, nil)
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }
	ctx := context.Background()

	require.NoError(t, mr.Set("idempotency:bad", "{not json"))
	record, err := store.Get(ctx, "bad")
	require.NoError(t, err)
	assert.Nil(t, record)

	require.NoError(t, store.Set(ctx, "good", &Record{Status: StatusCompleted, Response: &Response{StatusCode: http.StatusCreated}}, time.Hour))
	record, err = store.Get(ctx, "good")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, fixed, record.StoredAt)
	assert.Equal(t, http.StatusCreated, record.Response.StatusCode)
	assert.Equal(t, time.Hour, mr.TTL("idempotency:good"))
}

func TestRedisStore_ClaimIsExclusive(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, nil)
	ctx := context.Background()

	release, err := store.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)

	_, err = store.Claim(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrRequestInProgress)

	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx))

	release, err = store.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

// racingStore lets another request finish between the first lookup and the claim.
type racingStore struct {
	Store
	beforeClaim func()
}

func (s *racingStore) Claim(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	if run := s.beforeClaim; run != nil {
		s.beforeClaim = nil
		run()
	}
	return s.Store.Claim(ctx, key, ttl)
}

func TestManager_RechecksRecordAfterClaim(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	base := NewRedisStore(client, nil)
	store := &racingStore{Store: base}
	m := NewManager(store, nil)
	ctx := context.Background()
	calls := 0

	toggle := func(context.Context) (*Response, error) {
		calls++
		return &Response{StatusCode: http.StatusOK, Body: []byte(`{"blocked":true}`)}, nil
	}

	store.beforeClaim = func() {
		_, err := NewManager(base, nil).Execute(ctx, "toggle", time.Hour, toggle)
		require.NoError(t, err)
	}

	result, err := m.Execute(ctx, "toggle", time.Hour, toggle)
	require.NoError(t, err)
	assert.True(t, result.FromCache)
	assert.Equal(t, 1, calls)
	assert.JSONEq(t, `{"blocked":true}`, string(result.Response.Body))
}
