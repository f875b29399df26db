package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

type Scheduler interface {
	RegisterTasks() error
	Start() error
	Shutdown()
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	exportCron     string
	log            *slog.Logger
}

// NewScheduler registers periodic tasks. An empty exportCron disables the scheduled export.
func NewScheduler(redisOpt asynq.RedisConnOpt, exportCron string, log *slog.Logger) Scheduler {
	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: time.UTC}),
		exportCron:     exportCron,
		log:            log,
	}
}

func (s *scheduler) RegisterTasks() error {
	if s.exportCron == "" {
		return nil
	}

	task, err := NewClientsExportTask("scheduler", time.Time{})
	if err != nil {
		return err
	}

	if _, err := s.asynqScheduler.Register(s.exportCron, task); err != nil {
		return err
	}

	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: registered clients export task", slog.String("cron", s.exportCron))
	}

	return nil
}

func (s *scheduler) Start() error {
	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: starting")
	}

	return s.asynqScheduler.Start()
}

func (s *scheduler) Shutdown() {
	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: shutting down")
	}

	s.asynqScheduler.Shutdown()
}
