package viewstate

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/inovabank/internal/client"
	apperrors "github.com/Proton-105/inovabank/internal/errors"
	"github.com/Proton-105/inovabank/pkg/redis"
)

func setupStorage(t *testing.T) (Storage, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisStorage(redis.Wrap(rdb), slog.New(slog.NewTextHandler(io.Discard, nil))), mr
}

func TestRedisStorage_SaveAndGet(t *testing.T) {
	storage, mr := setupStorage(t)
	ctx := context.Background()
	q := client.Query{Search: "ana", Status: client.StatusBlocked, SortField: client.SortByName, SortOrder: client.OrderAsc}

	saved, err := storage.Save(ctx, "admin-1", q)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", saved.AdminID)
	assert.Equal(t, TTL, mr.TTL("admin:view:admin-1"))

	got, err := storage.Get(ctx, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, q, got.Query)
}

func TestRedisStorage_GetNotFound(t *testing.T) {
	storage, _ := setupStorage(t)

	state, err := storage.Get(context.Background(), "nobody")
	assert.Nil(t, state)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStorage_SaveRejectsInvalidQuery(t *testing.T) {
	storage, mr := setupStorage(t)

	_, err := storage.Save(context.Background(), "admin-1", client.Query{Status: "archived", SortField: client.SortByName, SortOrder: client.OrderAsc})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.False(t, mr.Exists("admin:view:admin-1"))
}

func TestRedisStorage_ClearAndLoadDefault(t *testing.T) {
	storage, _ := setupStorage(t)
	ctx := context.Background()

	_, err := storage.Save(ctx, "admin-1", client.Query{Status: client.StatusActive, SortField: client.SortByCreatedAt, SortOrder: client.OrderAsc})
	require.NoError(t, err)

	q, err := Load(ctx, storage, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, client.StatusActive, q.Status)

	require.NoError(t, storage.Clear(ctx, "admin-1"))

	q, err = Load(ctx, storage, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, client.DefaultQuery(), q)
}

func TestRedisStorage_Expires(t *testing.T) {
	storage, mr := setupStorage(t)
	ctx := context.Background()

	_, err := storage.Save(ctx, "admin-1", client.DefaultQuery())
	require.NoError(t, err)

	mr.FastForward(TTL + time.Second)

	_, err = storage.Get(ctx, "admin-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
