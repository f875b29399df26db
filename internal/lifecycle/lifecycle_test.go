package lifecycle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/inovabank/internal/health"
)

func TestShutdown_RunsHooksOnce(t *testing.T) {
	s := NewShutdown(nil)

	var calls atomic.Int32
	s.Register("redis", func(context.Context) error { calls.Add(1); return nil })
	s.Register("db", func(context.Context) error { calls.Add(1); return errors.New("close failed") })
	s.Register("nil", nil)

	err := s.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db: close failed")
	assert.Equal(t, int32(2), calls.Load())

	require.NoError(t, s.Execute(context.Background()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestShutdown_ReverseOrder(t *testing.T) {
	s := NewShutdown(nil)

	var order []string
	for _, name := range []string{"database", "redis", "worker"} {
		name := name
		s.Register(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, s.Execute(ctx))
	assert.Equal(t, []string{"worker", "redis", "database"}, order)
}

func TestProbes_Readiness(t *testing.T) {
	healthy := true
	checker := health.NewChecker(nil)
	checker.AddCheck("db", health.CheckFunc(func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("connection refused")
	}))

	probes := NewProbes(checker, nil)
	ctx := context.Background()

	assert.NoError(t, probes.Liveness(ctx))
	assert.NoError(t, probes.Readiness(ctx))

	healthy = false
	assert.Error(t, probes.Readiness(ctx))

	healthy = true
	probes.Drain()
	assert.ErrorIs(t, probes.Readiness(ctx), ErrShuttingDown)
	assert.NoError(t, probes.Liveness(ctx))
}
