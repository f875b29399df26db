// Package handlers processes the background tasks of the admin dashboard.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/inovabank/internal/jobs"
	"github.com/Proton-105/inovabank/internal/notify"
	"github.com/Proton-105/inovabank/pkg/logger"
)

// NotifyHandler delivers queued admin events to the configured channels.
type NotifyHandler struct {
	notifier notify.Notifier
	log      *slog.Logger
}

func NewNotifyHandler(notifier notify.Notifier, log *slog.Logger) *NotifyHandler {
	return &NotifyHandler{notifier: notifier, log: log}
}

func (h *NotifyHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.AdminNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		if h.log != nil {
			h.log.ErrorContext(ctx, "admin notify: failed to decode payload", slog.String("task_type", t.Type()), slog.Any("error", err))
		}
		return fmt.Errorf("decode notify payload: %w: %w", err, asynq.SkipRetry)
	}

	ctx = logger.WithCorrelationID(ctx, payload.CorrelationID)

	if h.notifier == nil {
		return nil
	}

	if err := h.notifier.Notify(ctx, payload.Event); err != nil {
		return fmt.Errorf("deliver admin notification: %w", err)
	}

	if h.log != nil {
		h.log.InfoContext(ctx, "admin notification delivered",
			slog.String("action", string(payload.Event.Action)),
			slog.String("admin_id", payload.Event.AdminID),
			slog.String("correlation_id", payload.CorrelationID),
		)
	}
	return nil
}
