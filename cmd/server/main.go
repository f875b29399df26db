package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/Proton-105/inovabank/internal/account"
	"github.com/Proton-105/inovabank/internal/api"
	"github.com/Proton-105/inovabank/internal/client"
	"github.com/Proton-105/inovabank/internal/clientcache"
	"github.com/Proton-105/inovabank/internal/database"
	apperrors "github.com/Proton-105/inovabank/internal/errors"
	"github.com/Proton-105/inovabank/internal/export"
	"github.com/Proton-105/inovabank/internal/health"
	"github.com/Proton-105/inovabank/internal/i18n"
	"github.com/Proton-105/inovabank/internal/idempotency"
	"github.com/Proton-105/inovabank/internal/jobs"
	"github.com/Proton-105/inovabank/internal/jobs/handlers"
	"github.com/Proton-105/inovabank/internal/lifecycle"
	"github.com/Proton-105/inovabank/internal/notify"
	"github.com/Proton-105/inovabank/internal/ratelimit"
	"github.com/Proton-105/inovabank/internal/repository"
	"github.com/Proton-105/inovabank/internal/viewstate"
	"github.com/Proton-105/inovabank/pkg/config"
	"github.com/Proton-105/inovabank/pkg/graceful"
	"github.com/Proton-105/inovabank/pkg/logger"
	"github.com/Proton-105/inovabank/pkg/metrics"
	"github.com/Proton-105/inovabank/pkg/redis"
)

const (
	cleanupInterval   = time.Minute
	statsInterval     = 30 * time.Second
	sentryFlushWindow = 2 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(*cfg)
	slog.SetDefault(log)

	if err := run(ctx, cfg, v, log); err != nil {
		log.Error("inovabank stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, v *viper.Viper, log *slog.Logger) error {
	log.Info("starting inovabank",
		slog.String("env", cfg.AppEnv),
		slog.String("http_port", cfg.Server.Port),
		slog.String("log_level", cfg.Logger.Level),
	)

	if cfg.Sentry.Enabled {
		environment := cfg.Sentry.Environment
		if environment == "" {
			environment = cfg.AppEnv
		}
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: environment,
			SampleRate:  cfg.Sentry.SampleRate,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(sentryFlushWindow)
	}

	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdown := lifecycle.NewShutdown(log)

	db, err := database.Open(ctx, cfg)
	if err != nil {
		return err
	}
	shutdown.Register("database", func(context.Context) error { return db.Close() })

	if _, err := database.NewMigrator(db, log).ApplyDir(ctx, cfg.Database.MigrationsPath); err != nil {
		_ = db.Close()
		return fmt.Errorf("apply migrations: %w", err)
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		_ = db.Close()
		return err
	}
	shutdown.Register("redis", func(context.Context) error { return rdb.Close() })

	messages, err := i18n.Load(cfg.Locale.Default)
	if err != nil {
		return errors.Join(fmt.Errorf("load translations: %w", err), shutdown.Execute(context.Background()))
	}

	breaker := repository.NewBreaker("postgres", log)
	clients := repository.GuardClients(repository.NewClientRepository(db, log), breaker)
	ledger := repository.GuardLedger(repository.NewLedgerRepository(db, log), breaker)
	audit := repository.NewAdminLogRepository(db, log)

	checker := health.NewChecker(log)
	checker.AddCheck("database", health.NewDBChecker(db))
	checker.AddCheck("redis", health.NewRedisChecker(rdb.Client))

	// Channels that actually reach an admin. The worker uses them when jobs are enabled.
	delivery := notify.Notifier(notify.NewLogNotifier(log))
	if cfg.Telegram.Enabled {
		telegram, err := notify.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.AdminChatID)
		if err != nil {
			return errors.Join(fmt.Errorf("init telegram notifier: %w", err), shutdown.Execute(context.Background()))
		}
		checker.AddCheck("telegram", telegram)
		delivery = notify.Multi(delivery, telegram)
	}

	cache := clientcache.NewCache(redis.NewMetricsClient(rdb), cfg.Cache.ClientListTTL)

	var (
		queue     notify.Notifier
		snapshots api.SnapshotRequester
	)
	if cfg.Jobs.Enabled {
		manager := jobs.NewManager(redisOpt(cfg.Redis), log)
		shutdown.Register("jobs manager", func(context.Context) error { return manager.Close() })

		queue = jobs.NewQueueNotifier(manager, log)
		snapshots = jobs.NewSnapshotRequester(manager)
	} else if cfg.Telegram.Enabled {
		log.Warn("telegram delivery needs background jobs, admin events will only be logged")
	}
	notifier := requestNotifier(queue, log)

	clientsSvc := client.NewService(clients, ledger, audit, cache, notifier, messages, log)
	accountsSvc := account.NewService(clients, ledger, log)

	if cfg.Jobs.Enabled {
		if err := startJobs(ctx, cfg, rdb, clientsSvc, delivery, shutdown, log); err != nil {
			return errors.Join(err, shutdown.Execute(context.Background()))
		}
	}

	rules := ratelimit.NewRules(cfg.RateLimit)
	memory := ratelimit.NewMemoryLimiter(log)
	limiter := ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(rdb.Client, log), memory, log)
	probes := lifecycle.NewProbes(checker, log)

	router := api.NewRouter(api.Options{
		Clients:        clientsSvc,
		Accounts:       accountsSvc,
		Views:          viewstate.NewRedisStorage(redis.NewMetricsClient(rdb), log),
		Snapshots:      snapshots,
		Probes:         probes,
		Errors:         apperrors.NewHandler(log, cfg.Sentry.Enabled),
		Messages:       messages,
		Limiter:        limiter,
		Rules:          rules,
		Idempotency:    idempotency.NewManager(idempotency.NewRedisStore(rdb.Client, log), log),
		IdempotencyTTL: api.DefaultIdempotencyTTL,
		CORSOrigins:    cfg.Server.CORSOrigins,
		Log:            log,
	})

	config.Watch(v, func(next *config.Config) {
		logger.Level.Set(logger.ParseLevel(next.Logger.Level))
		log.Info("configuration reloaded", slog.String("log_level", next.Logger.Level))
	}, func(err error) {
		log.Warn("configuration reload rejected", slog.Any("error", err))
	})

	server := graceful.NewServer(log, api.Wrap(router, log), cfg.Server)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ratelimit.NewCleaner(rdb.Client, memory, log, cleanupInterval, rules.MaxWindow(0)).Run(gctx)
		return nil
	})
	g.Go(func() error {
		idempotency.NewCleaner(rdb.Client, log, cleanupInterval, api.DefaultIdempotencyTTL).Run(gctx)
		return nil
	})
	g.Go(func() error {
		metrics.NewStatsCollector(clientsSvc, log, statsInterval).Run(gctx)
		return nil
	})
	g.Go(func() error {
		defer probes.Drain()
		return server.ListenAndServe(gctx)
	})

	serveErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	log.Info("inovabank shutting down")
	return errors.Join(serveErr, shutdown.Execute(shutdownCtx))
}

// startJobs registers the task handlers, starts the worker and the scheduler
// and hands their shutdown to the coordinator.
func startJobs(
	ctx context.Context,
	cfg *config.Config,
	rdb *redis.Client,
	clientsSvc *client.Service,
	delivery notify.Notifier,
	shutdown *lifecycle.Shutdown,
	log *slog.Logger,
) error {
	sink, err := exportSink(ctx, cfg.Jobs, shutdown)
	if err != nil {
		return err
	}

	opt := redisOpt(cfg.Redis)

	worker := jobs.NewWorker(opt, cfg.Jobs.Concurrency, log)
	worker.RegisterHandler(jobs.TaskTypeAdminNotify, handlers.NewNotifyHandler(delivery, log))
	worker.RegisterHandler(jobs.TaskTypeClientsExport, handlers.NewExportHandler(clientsSvc, sink, redislock.New(rdb.Client), log))
	if err := worker.Start(); err != nil {
		return fmt.Errorf("start jobs worker: %w", err)
	}
	shutdown.Register("jobs worker", func(context.Context) error {
		worker.Shutdown()
		return nil
	})

	scheduler := jobs.NewScheduler(opt, strings.TrimSpace(cfg.Jobs.ExportCron), log)
	if err := scheduler.RegisterTasks(); err != nil {
		return fmt.Errorf("register scheduled tasks: %w", err)
	}
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	shutdown.Register("scheduler", func(context.Context) error {
		scheduler.Shutdown()
		return nil
	})

	return nil
}

// requestNotifier is the notifier used inside admin requests. External
// channels are reached only through the queue, so no request waits on them.
func requestNotifier(queue notify.Notifier, log *slog.Logger) notify.Notifier {
	if queue == nil {
		return notify.NewLogNotifier(log)
	}
	return notify.Multi(notify.NewLogNotifier(log), queue)
}

func exportSink(ctx context.Context, cfg config.JobsConfig, shutdown *lifecycle.Shutdown) (export.Sink, error) {
	if cfg.GCSBucket == "" {
		return export.NewDirSink(cfg.ExportDir), nil
	}

	sink, err := export.NewGCSSink(ctx, cfg.GCSBucket, "clients", cfg.GCSCredentialsJSON)
	if err != nil {
		return nil, err
	}
	shutdown.Register("gcs", func(context.Context) error { return sink.Close() })
	return sink, nil
}

func redisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}
}
