package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Proton-105/inovabank/internal/errors"
	"github.com/Proton-105/inovabank/internal/idempotency"
)

// Idempotency headers.
const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"
)

var errNotStored = errors.New("response not stored")

// Idempotency replays the stored response when an admin repeats a mutating
// request with the same Idempotency-Key. Only successful responses are stored.
func Idempotency(manager idempotency.Manager, ttl time.Duration, log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(c *gin.Context) {
		header := c.GetHeader(IdempotencyKeyHeader)
		if manager == nil || header == "" {
			c.Next()
			return
		}

		key := idempotency.GenerateKey(AdminID(c), c.Request.Method, c.Request.URL.Path, header)
		executed := false

		result, err := manager.Execute(c.Request.Context(), key, ttl, func(context.Context) (*idempotency.Response, error) {
			executed = true
			w := &captureWriter{ResponseWriter: c.Writer}
			c.Writer = w
			c.Next()

			resp := &idempotency.Response{
				StatusCode:  w.Status(),
				ContentType: w.Header().Get("Content-Type"),
				Body:        w.body.Bytes(),
			}
			if len(c.Errors) > 0 || resp.StatusCode >= http.StatusMultipleChoices {
				return resp, errNotStored
			}
			return resp, nil
		})

		switch {
		case errors.Is(err, idempotency.ErrRequestInProgress):
			Fail(c, apperrors.NewStateError("request with this idempotency key is in progress"), nil)
		case err != nil && !executed:
			log.Warn("idempotency store unavailable", slog.Any("error", err))
			c.Next()
		case err == nil && result != nil && result.FromCache && result.Response != nil:
			c.Header(ReplayedHeader, "true")
			c.Data(result.Response.StatusCode, result.Response.ContentType, result.Response.Body)
			c.Abort()
		}
	}
}

type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
