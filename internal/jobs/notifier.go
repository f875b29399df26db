package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Proton-105/inovabank/internal/notify"
	"github.com/Proton-105/inovabank/pkg/logger"
)

// QueueNotifier hands admin events to the worker so delivery never blocks the request.
type QueueNotifier struct {
	manager Manager
	log     *slog.Logger
}

var _ notify.Notifier = (*QueueNotifier)(nil)

// NewQueueNotifier builds a Notifier that enqueues admin:notify tasks.
func NewQueueNotifier(manager Manager, log *slog.Logger) *QueueNotifier {
	return &QueueNotifier{manager: manager, log: log}
}

// Notify implements notify.Notifier.
func (n *QueueNotifier) Notify(ctx context.Context, event notify.Event) error {
	task, err := NewAdminNotifyTask(event, logger.CorrelationIDFromContext(ctx))
	if err != nil {
		return fmt.Errorf("build notify task: %w", err)
	}

	info, err := n.manager.Enqueue(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue notify task: %w", err)
	}

	if n.log != nil {
		n.log.DebugContext(ctx, "admin notification queued",
			slog.String("task_id", info.ID),
			slog.String("action", string(event.Action)),
		)
	}
	return nil
}

// SnapshotRequester queues on-demand exports of the client base.
type SnapshotRequester struct {
	manager Manager
	now     func() time.Time
}

// NewSnapshotRequester builds a requester enqueuing clients:export tasks.
func NewSnapshotRequester(manager Manager) *SnapshotRequester {
	return &SnapshotRequester{manager: manager, now: time.Now}
}

// RequestSnapshot enqueues an export on behalf of adminID and returns the task id.
func (r *SnapshotRequester) RequestSnapshot(ctx context.Context, adminID string) (string, error) {
	task, err := NewClientsExportTask(adminID, r.now())
	if err != nil {
		return "", fmt.Errorf("build export task: %w", err)
	}

	info, err := r.manager.Enqueue(ctx, task)
	if err != nil {
		return "", fmt.Errorf("enqueue export task: %w", err)
	}
	return info.ID, nil
}
