package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/inovabank/internal/domain"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inovabank_http_requests_total",
			Help: "Total number of HTTP requests labeled by route, method and status code",
		},
		[]string{"route", "method", "status"},
	)
	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inovabank_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	adminActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inovabank_admin_actions_total",
			Help: "Total number of administrative actions labeled by action and outcome",
		},
		[]string{"action", "status"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inovabank_errors_total",
			Help: "Total number of errors split by code and severity",
		},
		[]string{"code", "severity"},
	)
	clientsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "inovabank_clients",
			Help: "Number of clients per status",
		},
		[]string{"status"},
	)
	circuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "inovabank_circuit_breaker_state",
			Help: "Circuit breaker state: 0 closed, 1 open, 2 half-open",
		},
		[]string{"breaker"},
	)
)

// RecordRequest increments request counters and records duration.
func RecordRequest(route, method, status string, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}

	httpRequestsTotal.WithLabelValues(route, method, status).Inc()
	httpRequestDurationSeconds.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordAdminAction counts an administrative action and whether it succeeded.
func RecordAdminAction(action string, success bool) {
	if action == "" {
		action = "unknown"
	}
	status := "ok"
	if !success {
		status = "error"
	}

	adminActionsTotal.WithLabelValues(action, status).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(code, severity string) {
	if code == "" {
		code = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(code, severity).Inc()
}

// SetClientStats updates the client gauges.
func SetClientStats(stats domain.ClientStats) {
	clientsByStatus.WithLabelValues("total").Set(float64(stats.Total))
	clientsByStatus.WithLabelValues("active").Set(float64(stats.Active))
	clientsByStatus.WithLabelValues("blocked").Set(float64(stats.Blocked))
}

// SetCircuitState exports the state of the named breaker.
func SetCircuitState(name string, state int) {
	circuitState.WithLabelValues(name).Set(float64(state))
}

// StatsSource yields the current client counts.
type StatsSource interface {
	Stats(ctx context.Context) (domain.ClientStats, error)
}

// StatsCollector periodically gathers client counts and emits gauge metrics.
type StatsCollector struct {
	source   StatsSource
	log      *slog.Logger
	interval time.Duration
}

// NewStatsCollector builds a metrics collector bound to the provided source.
func NewStatsCollector(source StatsSource, log *slog.Logger, interval time.Duration) *StatsCollector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &StatsCollector{source: source, log: log, interval: interval}
}

// Run polls the source every interval, updating client gauges until ctx is cancelled.
func (c *StatsCollector) Run(ctx context.Context) {
	if c == nil || c.source == nil {
		return
	}

	for {
		if err := c.collect(ctx); err != nil && c.log != nil {
			c.log.Warn("client stats collection failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.interval):
		}
	}
}

func (c *StatsCollector) collect(ctx context.Context) error {
	stats, err := c.source.Stats(ctx)
	if err != nil {
		return err
	}

	SetClientStats(stats)
	return nil
}
