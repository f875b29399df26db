package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Hook is a named release step run on shutdown.
type Hook struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Shutdown releases resources in reverse registration order, so consumers
// registered after their dependencies stop before those dependencies close.
type Shutdown struct {
	mu    sync.Mutex
	hooks []Hook
	log   *slog.Logger
	once  sync.Once
}

func NewShutdown(log *slog.Logger) *Shutdown {
	if log == nil {
		log = slog.Default()
	}
	return &Shutdown{log: log}
}

// Register adds a named hook. Nil functions are ignored.
func (s *Shutdown) Register(name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}

	s.mu.Lock()
	s.hooks = append(s.hooks, Hook{Name: name, Fn: fn})
	s.mu.Unlock()
}

// Execute runs the hooks once, last registered first. Every hook runs even
// after an earlier one fails or ctx expires; the failures are joined.
func (s *Shutdown) Execute(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		hooks := slices.Clone(s.hooks)
		s.mu.Unlock()
		slices.Reverse(hooks)

		err = s.run(ctx, hooks)
	})
	return err
}

func (s *Shutdown) run(ctx context.Context, hooks []Hook) error {
	started := time.Now()
	s.log.Info("shutting down", slog.Int("hooks", len(hooks)))

	var errs []error
	for _, h := range hooks {
		if ctx.Err() != nil {
			s.log.Warn("shutdown deadline passed, releasing anyway", slog.String("hook", h.Name))
		}

		hookStart := time.Now()
		if err := h.Fn(ctx); err != nil {
			s.log.Error("shutdown hook failed", slog.String("hook", h.Name), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", h.Name, err))
			continue
		}
		s.log.Debug("shutdown hook done", slog.String("hook", h.Name), slog.Duration("took", time.Since(hookStart)))
	}

	s.log.Info("shutdown complete", slog.Duration("elapsed", time.Since(started)), slog.Int("failed", len(errs)))
	return errors.Join(errs...)
}
