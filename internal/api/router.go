// Package api exposes the admin dashboard and the account views over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Proton-105/inovabank/internal/account"
	"github.com/Proton-105/inovabank/internal/client"
	apperrors "github.com/Proton-105/inovabank/internal/errors"
	"github.com/Proton-105/inovabank/internal/i18n"
	"github.com/Proton-105/inovabank/internal/idempotency"
	"github.com/Proton-105/inovabank/internal/lifecycle"
	"github.com/Proton-105/inovabank/internal/middleware"
	"github.com/Proton-105/inovabank/internal/ratelimit"
	"github.com/Proton-105/inovabank/internal/viewstate"
	"github.com/Proton-105/inovabank/pkg/logger"
)

// DefaultIdempotencyTTL is how long a replayable response is kept.
const DefaultIdempotencyTTL = 24 * time.Hour

// SnapshotRequester queues a full export of the client base.
type SnapshotRequester interface {
	RequestSnapshot(ctx context.Context, adminID string) (string, error)
}

// Options carries the dependencies of the router. Limiter, Idempotency, Probes and Snapshots may be nil.
type Options struct {
	Clients        *client.Service
	Accounts       *account.Service
	Views          viewstate.Storage
	Snapshots      SnapshotRequester
	Probes         lifecycle.HealthChecker
	Errors         *apperrors.Handler
	Messages       *i18n.Manager
	Limiter        ratelimit.Limiter
	Rules          *ratelimit.Rules
	Idempotency    idempotency.Manager
	IdempotencyTTL time.Duration
	CORSOrigins    []string
	Log            *slog.Logger
}

// NewRouter builds the gin engine with every route of the service.
func NewRouter(opts Options) *gin.Engine {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = DefaultIdempotencyTTL
	}

	h := newHandler(opts)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(opts.CORSOrigins)))
	r.Use(middleware.Metrics())
	r.Use(middleware.Locale())
	r.Use(middleware.Errors(opts.Errors, opts.Messages))

	r.GET("/healthz", h.liveness)
	r.GET("/readyz", h.readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limits := middleware.NewRateLimitMiddleware(opts.Limiter, opts.Rules, opts.Log)
	idempotent := middleware.Idempotency(opts.Idempotency, opts.IdempotencyTTL, opts.Log)

	admin := r.Group("/api/admin", middleware.RequireAdmin(), limits.Handle(ratelimit.ScopeAdmin))
	{
		admin.GET("/clients", h.listClients)
		admin.GET("/clients/export.csv", limits.Handle(ratelimit.ScopeExport), h.exportCSV)
		admin.GET("/clients/export.xlsx", limits.Handle(ratelimit.ScopeExport), h.exportXLSX)
		admin.POST("/clients/snapshots", limits.Handle(ratelimit.ScopeExport), idempotent, h.requestSnapshot)
		admin.POST("/clients", idempotent, h.createClient)
		admin.GET("/clients/:id/form", h.clientForm)
		admin.GET("/clients/:id/details", h.clientDetails)
		admin.PUT("/clients/:id", idempotent, h.updateClient)
		admin.POST("/clients/:id/toggle-block", idempotent, h.toggleBlock)
		admin.DELETE("/clients/:id", idempotent, h.deleteClient)

		admin.GET("/view-state", h.getViewState)
		admin.PUT("/view-state", h.saveViewState)
		admin.DELETE("/view-state", h.clearViewState)
	}

	accounts := r.Group("/api/accounts/:matricula")
	{
		accounts.GET("/summary", h.accountSummary)
		accounts.GET("/transactions", h.accountTransactions)
		accounts.GET("/planner", h.accountPlanner)
		accounts.GET("/statement", h.accountStatement)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": apperrors.CodeNotFound, "message": "Rota não encontrada."}})
	})

	return r
}

// Wrap adds correlation ids and request logging around the engine.
func Wrap(engine http.Handler, log *slog.Logger) http.Handler {
	return logger.Middleware(middleware.New(log)(engine))
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AddAllowMethods(http.MethodDelete)
	cfg.AddAllowHeaders(
		"Authorization",
		"Accept-Language",
		middleware.AdminIDHeader,
		middleware.IdempotencyKeyHeader,
		logger.CorrelationIDHeader,
	)
	cfg.AddExposeHeaders(
		"Content-Disposition",
		"Retry-After",
		NotificationHeader,
		middleware.ReplayedHeader,
		logger.CorrelationIDHeader,
	)
	return cfg
}
