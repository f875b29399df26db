package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"

	"github.com/Proton-105/inovabank/internal/domain"
	"github.com/Proton-105/inovabank/internal/export"
	"github.com/Proton-105/inovabank/internal/jobs"
)

const (
	exportLockKey = "lock:clients:export"
	exportLockTTL = 5 * time.Minute
)

// ClientSource yields the full client base.
type ClientSource interface {
	All(ctx context.Context) ([]domain.Client, error)
}

// Locker obtains distributed locks.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

// ExportHandler writes CSV and XLSX snapshots of the client base to a sink.
// A single snapshot runs at a time across workers.
type ExportHandler struct {
	clients ClientSource
	sink    export.Sink
	locker  Locker
	log     *slog.Logger
	now     func() time.Time
}

func NewExportHandler(clients ClientSource, sink export.Sink, locker Locker, log *slog.Logger) *ExportHandler {
	return &ExportHandler{clients: clients, sink: sink, locker: locker, log: log, now: time.Now}
}

func (h *ExportHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.ClientsExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode export payload: %w: %w", err, asynq.SkipRetry)
	}

	if h.locker != nil {
		lock, err := h.locker.Obtain(ctx, exportLockKey, exportLockTTL, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			if h.log != nil {
				h.log.WarnContext(ctx, "clients export: another snapshot is running, skipping")
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("obtain export lock: %w", err)
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) && h.log != nil {
				h.log.WarnContext(ctx, "clients export: lock release failed", slog.Any("error", err))
			}
		}()
	}

	clients, err := h.clients.All(ctx)
	if err != nil {
		return fmt.Errorf("load clients: %w", err)
	}

	at := payload.RequestedAt
	if at.IsZero() {
		at = h.now()
	}

	locations, err := export.Snapshot(ctx, h.sink, clients, at)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	if h.log != nil {
		h.log.InfoContext(ctx, "clients export written",
			slog.Int("clients", len(clients)),
			slog.Any("locations", locations),
			slog.String("requested_by", payload.RequestedBy),
		)
	}
	return nil
}
