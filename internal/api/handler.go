package api

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Proton-105/inovabank/internal/account"
	"github.com/Proton-105/inovabank/internal/client"
	"github.com/Proton-105/inovabank/internal/domain"
	apperrors "github.com/Proton-105/inovabank/internal/errors"
	"github.com/Proton-105/inovabank/internal/export"
	"github.com/Proton-105/inovabank/internal/lifecycle"
	"github.com/Proton-105/inovabank/internal/middleware"
	"github.com/Proton-105/inovabank/internal/notify"
	"github.com/Proton-105/inovabank/internal/viewstate"
)

type handler struct {
	clients  *client.Service
	accounts *account.Service
	views    viewstate.Storage
	snaps    SnapshotRequester
	probes   lifecycle.HealthChecker
	log      *slog.Logger
	now      func() time.Time
}

func newHandler(opts Options) *handler {
	return &handler{
		clients:  opts.Clients,
		accounts: opts.Accounts,
		views:    opts.Views,
		snaps:    opts.Snapshots,
		probes:   opts.Probes,
		log:      opts.Log,
		now:      time.Now,
	}
}

type detailsResponse struct {
	*domain.ClientDetails
	FormattedBalance string `json:"formatted_balance"`
}

type snapshotResponse struct {
	TaskID       string              `json:"task_id"`
	Notification notify.Notification `json:"notification"`
}

type viewStateResponse struct {
	Query client.Query `json:"query"`
}

func (h *handler) liveness(c *gin.Context) {
	if h.probes != nil {
		if err := h.probes.Liveness(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, statusResponse{Status: "unavailable", Error: err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, statusResponse{Status: "ok"})
}

func (h *handler) readiness(c *gin.Context) {
	if h.probes != nil {
		if err := h.probes.Readiness(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, statusResponse{Status: "unavailable", Error: err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, statusResponse{Status: "ok"})
}

// listQuery reads the list query from the URL. Without any parameter the
// admin's stored view is used.
func (h *handler) listQuery(c *gin.Context) (client.Query, error) {
	if c.Request.URL.RawQuery == "" && h.views != nil {
		q, err := viewstate.Load(c.Request.Context(), h.views, middleware.AdminID(c))
		if err != nil {
			h.log.WarnContext(c.Request.Context(), "stored list view unavailable", slog.Any("error", err))
		}
		return q, nil
	}
	return client.ParseQuery(c.Query("q"), c.Query("status"), c.Query("sort"), c.Query("order"))
}

func (h *handler) filteredClients(c *gin.Context, failureKey string) (*client.ListResult, bool) {
	ctx := c.Request.Context()

	q, err := h.listQuery(c)
	if err != nil {
		fail(c, err, h.clients.FailureNotification(ctx, failureKey))
		return nil, false
	}

	result, err := h.clients.List(ctx, q)
	if err != nil {
		fail(c, err, h.clients.FailureNotification(ctx, failureKey))
		return nil, false
	}
	return result, true
}

func (h *handler) listClients(c *gin.Context) {
	result, ok := h.filteredClients(c, "client.list_failed")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) exportCSV(c *gin.Context) {
	h.download(c, "csv", export.ContentTypeCSV, export.WriteCSV)
}

func (h *handler) exportXLSX(c *gin.Context) {
	h.download(c, "xlsx", export.ContentTypeXLSX, export.WriteXLSX)
}

func (h *handler) download(c *gin.Context, ext, contentType string, write func(io.Writer, []domain.Client) error) {
	ctx := c.Request.Context()

	result, ok := h.filteredClients(c, "client.export_failed")
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := write(&buf, result.Clients); err != nil {
		fail(c, apperrors.NewStateError(err.Error()), h.clients.FailureNotification(ctx, "client.export_failed"))
		return
	}

	setNotificationHeader(c, h.clients.ExportNotification(ctx))
	c.Header("Content-Disposition", `attachment; filename="`+export.Filename(h.now(), ext)+`"`)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (h *handler) requestSnapshot(c *gin.Context) {
	ctx := c.Request.Context()

	if h.snaps == nil {
		fail(c, apperrors.NewStateError("background jobs are disabled"), h.clients.FailureNotification(ctx, "client.export_failed"))
		return
	}

	taskID, err := h.snaps.RequestSnapshot(ctx, middleware.AdminID(c))
	if err != nil {
		fail(c, apperrors.NewExternalAPIError("jobs queue", err), h.clients.FailureNotification(ctx, "client.export_failed"))
		return
	}

	c.JSON(http.StatusAccepted, snapshotResponse{TaskID: taskID, Notification: h.clients.SnapshotNotification(ctx)})
}

func (h *handler) createClient(c *gin.Context) {
	ctx := c.Request.Context()

	var form client.EditForm
	if err := c.ShouldBindJSON(&form); err != nil {
		fail(c, apperrors.NewValidationError("corpo da requisição inválido"), h.clients.FailureNotification(ctx, "client.create_failed"))
		return
	}

	outcome, err := h.clients.Create(ctx, middleware.AdminID(c), form)
	if err != nil {
		fail(c, err, outcome.Notification)
		return
	}
	c.JSON(http.StatusCreated, outcome)
}

func (h *handler) clientForm(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := pathID(c)
	if err != nil {
		fail(c, err, h.clients.FailureNotification(ctx, "client.details_failed"))
		return
	}

	form, err := h.clients.Form(ctx, id)
	if err != nil {
		fail(c, err, h.clients.FailureNotification(ctx, "client.details_failed"))
		return
	}
	c.JSON(http.StatusOK, form)
}

func (h *handler) clientDetails(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := pathID(c)
	if err != nil {
		fail(c, err, h.clients.FailureNotification(ctx, "client.details_failed"))
		return
	}

	details, err := h.clients.Details(ctx, id)
	if err != nil {
		fail(c, err, h.clients.FailureNotification(ctx, "client.details_failed"))
		return
	}

	c.JSON(http.StatusOK, detailsResponse{
		ClientDetails:    details,
		FormattedBalance: export.FormatCurrency(details.Balance),
	})
}

func (h *handler) updateClient(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := pathID(c)
	if err != nil {
		fail(c, err, h.clients.FailureNotification(ctx, "client.update_failed"))
		return
	}

	var form client.EditForm
	if err := c.ShouldBindJSON(&form); err != nil {
		fail(c, apperrors.NewValidationError("corpo da requisição inválido"), h.clients.FailureNotification(ctx, "client.update_failed"))
		return
	}

	outcome, err := h.clients.Update(ctx, middleware.AdminID(c), id, form)
	h.respond(c, outcome, err)
}

func (h *handler) toggleBlock(c *gin.Context) {
	h.mutate(c, "client.toggle_failed", h.clients.ToggleBlock)
}

func (h *handler) deleteClient(c *gin.Context) {
	h.mutate(c, "client.delete_failed", h.clients.Delete)
}

func (h *handler) mutate(c *gin.Context, failureKey string, op func(context.Context, string, uuid.UUID) (client.Outcome, error)) {
	ctx := c.Request.Context()

	id, err := pathID(c)
	if err != nil {
		fail(c, err, h.clients.FailureNotification(ctx, failureKey))
		return
	}

	outcome, err := op(ctx, middleware.AdminID(c), id)
	h.respond(c, outcome, err)
}

func (h *handler) respond(c *gin.Context, outcome client.Outcome, err error) {
	if err != nil {
		fail(c, err, outcome.Notification)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (h *handler) getViewState(c *gin.Context) {
	q, err := viewstate.Load(c.Request.Context(), h.views, middleware.AdminID(c))
	if err != nil {
		middleware.Fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, viewStateResponse{Query: q})
}

func (h *handler) saveViewState(c *gin.Context) {
	var body viewStateResponse
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.Fail(c, apperrors.NewValidationError("corpo da requisição inválido"), nil)
		return
	}

	q, err := client.ParseQuery(body.Query.Search, string(body.Query.Status), string(body.Query.SortField), string(body.Query.SortOrder))
	if err != nil {
		middleware.Fail(c, err, nil)
		return
	}

	state, err := h.views.Save(c.Request.Context(), middleware.AdminID(c), q)
	if err != nil {
		middleware.Fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *handler) clearViewState(c *gin.Context) {
	if err := h.views.Clear(c.Request.Context(), middleware.AdminID(c)); err != nil {
		middleware.Fail(c, err, nil)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) accountSummary(c *gin.Context) {
	matricula, err := pathMatricula(c)
	if err != nil {
		middleware.Fail(c, err, nil)
		return
	}

	summary, err := h.accounts.Summary(c.Request.Context(), matricula, h.now())
	if err != nil {
		middleware.Fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *handler) accountTransactions(c *gin.Context) {
	matricula, err := pathMatricula(c)
	if err != nil {
		middleware.Fail(c, err, nil)
		return
	}

	limit, err := queryInt(c, "limit")
	if err != nil {
		middleware.Fail(c, err, nil)
		return
	}

	txs, err := h.accounts.Transactions(c.Request.Context(), matricula, limit)
	if err != nil {
		middleware.Fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

func (h *handler) accountPlanner(c *gin.Context) {
	matricula, err := pathMatricula(c)
	if err != nil {
		middleware.Fail(c, err, nil)
		return
	}

	plan, err := h.accounts.Planner(c.Request.Context(), matricula, h.now())
	if err != nil {
		middleware.Fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *handler) accountStatement(c *gin.Context) {
	matricula, err := pathMatricula(c)
	if err != nil {
		middleware.Fail(c, err, nil)
		return
	}

	from, to, err := statementPeriod(c, h.now())
	if err != nil {
		middleware.Fail(c, err, nil)
		return
	}

	statement, err := h.accounts.Statement(c.Request.Context(), matricula, from, to)
	if err != nil {
		middleware.Fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, statement)
}
