package errors

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/getsentry/sentry-go"

	"github.com/Proton-105/inovabank/pkg/logger"
	"github.com/Proton-105/inovabank/pkg/metrics"
)

// Resolution is what the transport layer needs to report a failure to the user.
type Resolution struct {
	Status      int
	Code        string
	UserMessage string
}

type Handler struct {
	log           *slog.Logger
	sentryEnabled bool
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	return &Handler{
		log:           log,
		sentryEnabled: sentryEnabled,
	}
}

// Handle logs err, reports it to Sentry when severe enough and returns the user-facing resolution.
func (h *Handler) Handle(ctx context.Context, operation string, err error) Resolution {
	if err == nil {
		return Resolution{Status: http.StatusOK}
	}

	if ctx == nil {
		ctx = context.Background()
	}

	log := slog.Default()
	if h != nil && h.log != nil {
		log = h.log
	}

	attrs := []slog.Attr{slog.String("operation", operation)}
	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		attrs = append(attrs, slog.String("correlation_id", correlationID))
	}

	if appErr, ok := As(err); ok {
		attrs = append(attrs,
			slog.String("code", appErr.Code),
			slog.String("message", appErr.Message),
			slog.String("severity", string(appErr.Severity)),
		)
		if cause := appErr.Unwrap(); cause != nil {
			attrs = append(attrs, slog.String("cause", cause.Error()))
		}

		level := slog.LevelWarn
		if appErr.Severity == SeverityHigh || appErr.Severity == SeverityCritical {
			level = slog.LevelError
		}
		log.LogAttrs(ctx, level, "application error", attrs...)
		metrics.RecordError(appErr.Code, string(appErr.Severity))

		if h != nil && h.sentryEnabled && level == slog.LevelError {
			h.sendToSentry(ctx, err)
		}

		userMessage := appErr.UserMessage
		if userMessage == "" {
			userMessage = defaultUserMessage
		}

		return Resolution{Status: appErr.HTTPStatus(), Code: appErr.Code, UserMessage: userMessage}
	}

	attrs = append(attrs,
		slog.String("message", err.Error()),
		slog.String("severity", string(SeverityHigh)),
	)
	log.LogAttrs(ctx, slog.LevelError, "unknown error", attrs...)
	metrics.RecordError("unknown", string(SeverityHigh))

	if h != nil && h.sentryEnabled {
		h.sendToSentry(ctx, err)
	}

	return Resolution{Status: http.StatusInternalServerError, Code: "unknown", UserMessage: defaultUserMessage}
}

func (h *Handler) sendToSentry(ctx context.Context, err error) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	hub.WithScope(func(scope *sentry.Scope) {
		if appErr, ok := As(err); ok {
			if appErr.Code != "" {
				scope.SetTag("code", appErr.Code)
			}
			if appErr.Severity != "" {
				scope.SetTag("severity", string(appErr.Severity))
			}
		}
		if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
			scope.SetTag("correlation_id", correlationID)
		}

		hub.CaptureException(err)
	})
}
