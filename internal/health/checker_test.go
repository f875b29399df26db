package health

import (
	"context"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecker_ReportsEveryComponent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	checker := NewChecker(nil)
	checker.AddCheck("redis", NewRedisChecker(client))
	checker.AddCheck("telegram", CheckFunc(func(context.Context) error { return errors.New("unauthorized") }))
	checker.AddCheck("", CheckFunc(func(context.Context) error { return nil }))
	checker.AddCheck("nil", nil)

	results := checker.Check(context.Background())
	assert.Equal(t, map[string]string{
		"redis":    StatusOK,
		"telegram": "unauthorized",
	}, results)

	err := Err(results)
	require.Error(t, err)
	assert.Equal(t, "unhealthy components: telegram: unauthorized", err.Error())
}

func TestChecker_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	checker := NewChecker(nil)
	checker.AddCheck("redis", NewRedisChecker(client))

	assert.Error(t, Err(checker.Check(context.Background())))
}

func TestDBChecker_NilDatabase(t *testing.T) {
	var checker *DBChecker
	assert.Error(t, checker.HealthCheck(context.Background()))
	assert.Error(t, NewDBChecker(nil).HealthCheck(context.Background()))
}

func TestErr_AllHealthy(t *testing.T) {
	assert.NoError(t, Err(map[string]string{"db": StatusOK}))
	assert.NoError(t, Err(nil))
}
