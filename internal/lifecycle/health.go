package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/Proton-105/inovabank/internal/health"
)

// ErrShuttingDown fails readiness once shutdown has begun.
var ErrShuttingDown = errors.New("service is shutting down")

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) error
}

// Probes answers liveness from the process itself and readiness from its dependencies.
type Probes struct {
	checker  *health.Checker
	log      *slog.Logger
	draining atomic.Bool
}

// NewProbes creates a new Probes instance. A nil checker makes readiness depend only on shutdown state.
func NewProbes(checker *health.Checker, log *slog.Logger) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{checker: checker, log: log}
}

// Liveness always reports success while the process serves requests.
func (p *Probes) Liveness(ctx context.Context) error {
	p.log.Debug("liveness probe called")
	return nil
}

// Readiness fails while draining or when a dependency is unhealthy.
func (p *Probes) Readiness(ctx context.Context) error {
	if p.draining.Load() {
		return ErrShuttingDown
	}
	if p.checker == nil {
		return nil
	}
	return health.Err(p.checker.Check(ctx))
}

// Drain marks the service as not ready so load balancers stop routing to it.
func (p *Probes) Drain() {
	if p.draining.CompareAndSwap(false, true) {
		p.log.Info("readiness disabled for shutdown")
	}
}
