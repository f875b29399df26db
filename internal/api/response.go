package api

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/Proton-105/inovabank/internal/errors"
	"github.com/Proton-105/inovabank/internal/middleware"
	"github.com/Proton-105/inovabank/internal/notify"
)

// NotificationHeader carries the URL-encoded JSON notification of file downloads.
const NotificationHeader = "X-Notification"

const dateLayout = "2006-01-02"

type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func fail(c *gin.Context, err error, n notify.Notification) {
	middleware.Fail(c, err, &n)
}

func setNotificationHeader(c *gin.Context, n notify.Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	c.Header(NotificationHeader, url.QueryEscape(string(data)))
}

func pathID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperrors.NewValidationError("identificador de cliente inválido")
	}
	return id, nil
}

func pathMatricula(c *gin.Context) (int64, error) {
	matricula, err := strconv.ParseInt(c.Param("matricula"), 10, 64)
	if err != nil || matricula <= 0 {
		return 0, apperrors.NewValidationError("matrícula inválida")
	}
	return matricula, nil
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewValidationError(name + " inválido")
	}
	return v, nil
}

func queryDate(c *gin.Context, name string) (time.Time, bool, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return time.Time{}, false, nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, false, apperrors.NewValidationError("data inválida em " + name + ": use AAAA-MM-DD")
	}
	return t, true, nil
}

// statementPeriod reads from/to as calendar days, to inclusive. Defaults to the
// current month up to today.
func statementPeriod(c *gin.Context, now time.Time) (time.Time, time.Time, error) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	from, ok, err := queryDate(c, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !ok {
		from = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	}

	to, ok, err := queryDate(c, "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !ok {
		to = today
	}

	return from, to.AddDate(0, 0, 1), nil
}
