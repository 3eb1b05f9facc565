package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Proton-105/worklog-bot/internal/bot"
	"github.com/Proton-105/worklog-bot/internal/database"
	"github.com/Proton-105/worklog-bot/internal/dialog"
	apperrors "github.com/Proton-105/worklog-bot/internal/errors"
	"github.com/Proton-105/worklog-bot/internal/health"
	"github.com/Proton-105/worklog-bot/internal/idempotency"
	"github.com/Proton-105/worklog-bot/internal/jobs"
	jobhandlers "github.com/Proton-105/worklog-bot/internal/jobs/handlers"
	"github.com/Proton-105/worklog-bot/internal/lifecycle"
	"github.com/Proton-105/worklog-bot/internal/middleware"
	"github.com/Proton-105/worklog-bot/internal/ratelimit"
	"github.com/Proton-105/worklog-bot/internal/reminder"
	"github.com/Proton-105/worklog-bot/internal/settingscache"
	"github.com/Proton-105/worklog-bot/internal/state"
	"github.com/Proton-105/worklog-bot/internal/stats"
	"github.com/Proton-105/worklog-bot/internal/store"
	"github.com/Proton-105/worklog-bot/pkg/config"
	"github.com/Proton-105/worklog-bot/pkg/graceful"
	"github.com/Proton-105/worklog-bot/pkg/logger"
	"github.com/Proton-105/worklog-bot/pkg/metrics"
	redisclient "github.com/Proton-105/worklog-bot/pkg/redis"
)

const (
	stateCollectInterval    = 30 * time.Second
	rateLimitCleanupPeriod  = 5 * time.Minute
	rateLimitIdleThreshold  = 30 * time.Minute
	sentryFlushTimeout      = 2 * time.Second
	defaultShutdownDeadline = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "worklog bot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.AppEnv}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(sentryFlushTimeout)
	}

	log := logger.New(*cfg)
	slog.SetDefault(log)
	log.Info("starting worklog bot", slog.String("mode", cfg.Bot.Mode), slog.String("db_driver", cfg.Database.Driver))

	config.Watch(v, func(next *config.Config) {
		logger.SetLevel(next.Logger.Level)
		log.Info("config reloaded", slog.String("log_level", next.Logger.Level))
	}, func(err error) {
		log.Warn("ignoring invalid config change", slog.Any("error", err))
	})

	loc, err := time.LoadLocation(cfg.Dialog.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Dialog.Timezone, err)
	}
	clock := clockwork.NewRealClock()

	db, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		return err
	}

	rdb, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		_ = db.Close()
		return err
	}

	sessions := state.NewManager(state.NewRedisStorage(rdb.Client, log), log, rdb.Client)
	statsCache := stats.NewCache(cfg.Dialog.StatsTTL, cfg.Dialog.StatsSweepInterval, clock, log)
	entries := store.NewSQLStore(db, cfg.Database.Driver, log,
		store.WithInvalidator(statsCache),
		store.WithSettingsCache(settingscache.NewCache(redisclient.NewMetricsClient(rdb), settingscache.DefaultTTL)),
		store.WithClock(clock),
	)
	errHandler := apperrors.NewHandler(log, cfg.Sentry.Enabled)

	controller := dialog.NewController(dialog.Deps{
		Sessions:     sessions,
		Store:        entries,
		Stats:        statsCache,
		ComputeStats: stats.NewCalculator(entries, loc, clock).Compute,
		Errors:       errHandler,
		Clock:        clock,
		Location:     loc,
		Logger:       log,
	})

	tb, err := bot.NewTelebot(cfg.Bot, log)
	if err != nil {
		_ = rdb.Close()
		_ = db.Close()
		return err
	}
	sender := bot.NewSender(tb, log)

	reminderAt, err := reminder.ParseTimeOfDay(cfg.Reminder.Time)
	if err != nil {
		return fmt.Errorf("reminder time: %w", err)
	}
	reminderScheduler, err := reminder.NewGocronScheduler(loc, clock, log)
	if err != nil {
		return err
	}
	notifier := reminder.NewNotifier(entries, sender, apperrors.NewCircuitBreaker(apperrors.DefaultBreakerConfig, clock), clock, loc, log)
	reminders := reminder.NewRegistry(reminderScheduler, notifier, reminderAt, log,
		reminder.WithMaxJobsPerChat(cfg.Reminder.MaxJobsPerChat),
		reminder.WithRegistryClock(clock),
	)

	limiter, cleanable := newLimiter(cfg.RateLimit, rdb, clock, log)

	b := bot.New(tb, sender, bot.Deps{
		Dialog:      controller,
		Reminders:   reminders,
		Errors:      errHandler,
		Idempotency: idempotency.NewManager(idempotency.NewRedisStore(rdb.Client, log), log),
		Limiter:     limiter,
		Rules:       ratelimit.NewRules(cfg.RateLimit),
	}, log)

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	jobManager := jobs.NewManager(redisOpt, log)
	worker := jobs.NewWorker(redisOpt, jobs.DefaultQueues, log)
	worker.RegisterHandler(jobs.TaskTypeBackupSweep, jobhandlers.NewBackupHandler(entries, log))
	backupScheduler := jobs.NewScheduler(redisOpt, cfg.Backup.Schedule, loc, log)
	if err := backupScheduler.RegisterTasks(); err != nil {
		return fmt.Errorf("register backup schedule: %w", err)
	}

	checker := health.NewChecker(log)
	checker.AddCheck("database", health.NewDBChecker(db))
	checker.AddCheck("redis", health.NewRedisChecker(rdb.Client))
	checker.AddCheck("telegram", health.NewTelegramChecker(tb))
	probes := lifecycle.NewProbes(checker, log)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", checker.Handler())
	mux.Handle("/livez", lifecycle.Handler(probes.Liveness))
	mux.Handle("/readyz", lifecycle.Handler(probes.Readiness))
	httpServer := graceful.NewServer(log, cfg.Server.Port, logger.Middleware(middleware.New(log)(mux)), cfg.Server.ShutdownTimeout)

	bgCtx, cancelBackground := context.WithCancel(context.Background())
	go metrics.NewStateCollector(sessions, stateCollectInterval, log).Run(bgCtx)
	if cleanable != nil {
		go ratelimit.NewCleaner(cleanable, rateLimitIdleThreshold, rateLimitCleanupPeriod, clock, log).Run(bgCtx)
	}

	reminderScheduler.Start()
	if _, err := reminders.Restore(ctx, sessions); err != nil {
		log.Error("failed to restore reminders", slog.Any("error", err))
	}

	if err := worker.Start(); err != nil {
		cancelBackground()
		return fmt.Errorf("start jobs worker: %w", err)
	}
	if err := backupScheduler.Start(); err != nil {
		cancelBackground()
		return fmt.Errorf("start backup scheduler: %w", err)
	}
	if cfg.Backup.RunOnStart {
		if err := jobManager.EnqueueBackupSweep(ctx, "startup"); err != nil {
			log.Error("failed to enqueue startup backup", slog.Any("error", err))
		}
	}

	httpDone := make(chan error, 1)
	go func() { httpDone <- httpServer.ListenAndServe(ctx) }()

	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		b.Start()
	}()

	probes.MarkStarted()
	log.Info("worklog bot is running", slog.String("http", cfg.Server.Port))

	select {
	case <-ctx.Done():
	case err := <-httpDone:
		log.Error("http server stopped unexpectedly", slog.Any("error", err))
		httpDone <- err
		stop()
	}
	probes.MarkDraining()

	shutdown := lifecycle.NewShutdown(log)
	shutdown.Register(lifecycle.PhaseIngress, "telegram", func(ctx context.Context) error {
		b.Stop()
		select {
		case <-botDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	shutdown.Register(lifecycle.PhaseIngress, "http", func(ctx context.Context) error {
		select {
		case err := <-httpDone:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	shutdown.Register(lifecycle.PhaseWorkers, "reminders", func(context.Context) error {
		return reminderScheduler.Shutdown()
	})
	shutdown.Register(lifecycle.PhaseWorkers, "backup-scheduler", func(context.Context) error {
		backupScheduler.Shutdown()
		return nil
	})
	shutdown.Register(lifecycle.PhaseWorkers, "jobs-worker", func(context.Context) error {
		worker.Shutdown()
		return jobManager.Close()
	})
	shutdown.Register(lifecycle.PhaseWorkers, "background", func(context.Context) error {
		cancelBackground()
		return nil
	})
	shutdown.Register(lifecycle.PhaseStorage, "redis", func(context.Context) error {
		return rdb.Close()
	})
	shutdown.Register(lifecycle.PhaseStorage, "database", func(context.Context) error {
		return db.Close()
	})

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownDeadline
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := shutdown.Execute(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("worklog bot stopped")
	return nil
}

// newLimiter picks the configured backend. The second result is the limiter's cleanup target.
func newLimiter(cfg config.RateLimitConfig, rdb *redisclient.Client, clock clockwork.Clock, log *slog.Logger) (ratelimit.Limiter, ratelimit.Cleanable) {
	if cfg.Backend == "redis" {
		l := ratelimit.NewRedisLimiter(rdb.Client, clock, log)
		return l, l
	}

	l := ratelimit.NewMemoryLimiter(clock, log)
	return l, l
}
