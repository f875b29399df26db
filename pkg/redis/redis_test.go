package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/inovabank/pkg/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	client, err := New(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func TestClient_GetSetDelete(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", "v", time.Minute))
	got, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
	assert.Equal(t, time.Minute, mr.TTL("k"))

	require.NoError(t, client.Delete(ctx, "k"))
	_, err = client.Get(ctx, "k")
	assert.True(t, IsNil(err))
}

func TestNew_FailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), config.RedisConfig{Addr: addr, MaxRetries: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestMetricsClient_MissIsNotAnError(t *testing.T) {
	client, _ := newTestClient(t)
	m := NewMetricsClient(client)
	ctx := context.Background()

	requests := testutil.ToFloat64(redisRequestsTotal.WithLabelValues("get"))
	errs := testutil.ToFloat64(redisErrorsTotal.WithLabelValues("get"))

	_, err := m.Get(ctx, "absent")
	assert.True(t, IsNil(err))

	assert.Equal(t, requests+1, testutil.ToFloat64(redisRequestsTotal.WithLabelValues("get")))
	assert.Equal(t, errs, testutil.ToFloat64(redisErrorsTotal.WithLabelValues("get")))
}

func TestOptions(t *testing.T) {
	opts := Options(config.RedisConfig{Addr: "cache:6379", DB: 2, PoolSize: 7, IdleTimeout: time.Minute})
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, time.Minute, opts.ConnMaxIdleTime)
}

func TestClient_SetIfEqual(t *testing.T) {
	client, mr := newTestClient(t)
	kv := NewMetricsClient(client)
	ctx := context.Background()

	stored, err := kv.SetIfEqual(ctx, "gen", "0", "k", "v1", time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)
	assert.Equal(t, time.Minute, mr.TTL("k"))

	n, err := kv.Incr(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stored, err = kv.SetIfEqual(ctx, "gen", "0", "k", "v2", time.Minute)
	require.NoError(t, err)
	assert.False(t, stored)

	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", got)
}
