package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	backendRedis  = "redis"
	backendMemory = "memory"
)

var (
	checksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inovabank_ratelimit_checks_total",
		Help: "Rate limit decisions by scope, backend and outcome.",
	}, []string{"scope", "backend", "outcome"})

	degradedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "inovabank_ratelimit_degraded",
		Help: "1 while admin limits are enforced by the in-memory fallback.",
	})
)

func init() {
	prometheus.MustRegister(checksTotal, degradedGauge)
}

// AdaptiveLimiter enforces limits through Redis so every replica shares the
// same windows. While Redis fails, each replica enforces 1/FallbackDivisor
// of the limit in memory. Rejections are returned as ErrLimitExceeded.
type AdaptiveLimiter struct {
	primary  Limiter
	fallback Limiter
	log      *slog.Logger

	// FallbackDivisor splits the limit among replicas while degraded.
	FallbackDivisor int

	degraded atomic.Bool
}

// NewAdaptiveLimiter creates a limiter that switches to fallback while primary fails.
func NewAdaptiveLimiter(primary, fallback Limiter, log *slog.Logger) *AdaptiveLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &AdaptiveLimiter{
		primary:         primary,
		fallback:        fallback,
		log:             log,
		FallbackDivisor: 2,
	}
}

// Degraded reports whether the last check was served by the fallback.
func (a *AdaptiveLimiter) Degraded() bool {
	return a.degraded.Load()
}

// Check implements Limiter.
func (a *AdaptiveLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	scope := scopeOf(key)

	result, err := a.primary.Check(ctx, key, limit, window)
	if err == nil {
		if a.degraded.CompareAndSwap(true, false) {
			degradedGauge.Set(0)
			a.log.Info("redis limiter recovered")
		}
		return a.decide(scope, backendRedis, result)
	}

	if a.degraded.CompareAndSwap(false, true) {
		degradedGauge.Set(1)
		a.log.Warn("redis limiter failed, enforcing in-memory limits", slog.String("scope", scope), slog.Any("error", err))
	}

	result, err = a.fallback.Check(ctx, key, a.fallbackLimit(limit), window)
	if err != nil && !errors.Is(err, ErrLimitExceeded) {
		return result, err
	}
	return a.decide(scope, backendMemory, result)
}

func (a *AdaptiveLimiter) decide(scope, backend string, result *Result) (*Result, error) {
	if result.Allowed {
		checksTotal.WithLabelValues(scope, backend, "allowed").Inc()
		return result, nil
	}
	checksTotal.WithLabelValues(scope, backend, "rejected").Inc()
	return result, ErrLimitExceeded
}

func (a *AdaptiveLimiter) fallbackLimit(limit int) int {
	divisor := a.FallbackDivisor
	if divisor < 1 {
		divisor = 1
	}
	if reduced := limit / divisor; reduced > 0 {
		return reduced
	}
	return 1
}

// scopeOf extracts the scope prefix of a key built by Key.
func scopeOf(key string) string {
	scope, _, found := strings.Cut(key, ":")
	if !found || scope == "" {
		return "unknown"
	}
	return scope
}
