// Package notify carries the user-facing outcome of admin actions and fans
// admin events out to secondary channels.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Proton-105/inovabank/internal/domain"
)

// Variant selects how the client renders a notification.
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notification is the non-blocking message returned with every admin action.
type Notification struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Variant     Variant `json:"variant"`
}

// Success builds a default notification.
func Success(title, description string) Notification {
	return Notification{Title: title, Description: description, Variant: VariantDefault}
}

// Failure builds a destructive notification.
func Failure(title, description string) Notification {
	return Notification{Title: title, Description: description, Variant: VariantDestructive}
}

// Event describes an admin action that completed successfully.
type Event struct {
	Action       domain.AdminAction `json:"action"`
	AdminID      string             `json:"admin_id"`
	ClientID     uuid.UUID          `json:"client_id"`
	Notification Notification       `json:"notification"`
	OccurredAt   time.Time          `json:"occurred_at"`
}

// Notifier delivers admin events.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// LogNotifier writes events to the structured log.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier returns a notifier that logs every event at info level.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, event Event) error {
	n.log.InfoContext(ctx, "admin event",
		slog.String("action", string(event.Action)),
		slog.String("admin_id", event.AdminID),
		slog.String("client_id", event.ClientID.String()),
		slog.String("title", event.Notification.Title),
	)
	return nil
}

type multi []Notifier

// Multi delivers each event to every notifier and joins their errors.
func Multi(notifiers ...Notifier) Notifier {
	out := make(multi, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (m multi) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
