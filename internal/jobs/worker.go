package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
)

// DefaultConcurrency is used when the configuration leaves it unset.
const DefaultConcurrency = 10

// Worker provides APIs to register handlers and control the background worker lifecycle.
type Worker interface {
	RegisterHandler(taskType string, handler asynq.Handler)
	Start() error
	Shutdown()
}

type worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *slog.Logger
}

var _ Worker = (*worker)(nil)

// NewWorker constructs a Worker backed by an asynq.Server instance. asynq's
// own logs and every task outcome go through log.
func NewWorker(redisOpt asynq.RedisConnOpt, concurrency int, log *slog.Logger) Worker {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if log == nil {
		log = slog.Default()
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Queues:          Queues,
		Concurrency:     concurrency,
		RetryDelayFunc:  asynq.DefaultRetryDelayFunc,
		ShutdownTimeout: shutdownTimeout,
		Logger:          asynqLogger{log: log.With(slog.String("component", "asynq"))},
		ErrorHandler:    asynq.ErrorHandlerFunc(reportFailure(log)),
	})

	mux := asynq.NewServeMux()
	mux.Use(logTasks(log))

	return &worker{
		server: server,
		mux:    mux,
		log:    log,
	}
}

// shutdownTimeout bounds how long in-flight tasks may run after Shutdown.
const shutdownTimeout = 20 * time.Second

// reportFailure logs retries as warnings and the final attempt as an error.
func reportFailure(log *slog.Logger) func(context.Context, *asynq.Task, error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		attrs := []any{
			slog.String("task_type", task.Type()),
			slog.Int("retry", retried),
			slog.Int("max_retry", maxRetry),
			slog.Any("error", err),
		}
		if retried >= maxRetry {
			log.ErrorContext(ctx, "jobs worker: task failed permanently", attrs...)
			return
		}
		log.WarnContext(ctx, "jobs worker: task failed, will retry", attrs...)
	}
}

func logTasks(log *slog.Logger) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
			started := time.Now()
			taskID, _ := asynq.GetTaskID(ctx)

			err := next.ProcessTask(ctx, task)
			log.DebugContext(ctx, "jobs worker: task processed",
				slog.String("task_type", task.Type()),
				slog.String("task_id", taskID),
				slog.Duration("took", time.Since(started)),
				slog.Bool("ok", err == nil),
			)
			return err
		})
	}
}

// asynqLogger adapts slog to asynq.Logger.
type asynqLogger struct {
	log *slog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }

func (l asynqLogger) Fatal(args ...interface{}) {
	l.log.Error(fmt.Sprint(args...), slog.Bool("fatal", true))
	os.Exit(1)
}

// RegisterHandler wires a task type to the provided handler.
func (w *worker) RegisterHandler(taskType string, handler asynq.Handler) {
	w.mux.Handle(taskType, handler)
}

// Start begins processing tasks in the background and returns immediately.
func (w *worker) Start() error {
	w.log.Info("jobs worker: starting processing loop")

	return w.server.Start(w.mux)
}

// Shutdown gracefully stops the worker.
func (w *worker) Shutdown() {
	w.log.Info("jobs worker: shutting down")

	w.server.Shutdown()
}
