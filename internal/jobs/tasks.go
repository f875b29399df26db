package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/inovabank/internal/notify"
)

const (
	TaskTypeAdminNotify   = "admin:notify"
	TaskTypeClientsExport = "clients:export"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Queues is the weighted queue set served by the worker.
var Queues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

// AdminNotifyPayload carries an admin event to the notification channels.
type AdminNotifyPayload struct {
	Event         notify.Event `json:"event"`
	CorrelationID string       `json:"correlation_id,omitempty"`
}

// ClientsExportPayload requests a snapshot of the whole client base.
type ClientsExportPayload struct {
	RequestedBy string    `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewAdminNotifyTask(event notify.Event, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(AdminNotifyPayload{Event: event, CorrelationID: correlationID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeAdminNotify, payload, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

func NewClientsExportTask(requestedBy string, at time.Time) (*asynq.Task, error) {
	payload, err := json.Marshal(ClientsExportPayload{RequestedBy: requestedBy, RequestedAt: at})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeClientsExport, payload, asynq.Queue(QueueLow), asynq.MaxRetry(1), asynq.Timeout(5*time.Minute)), nil
}
