package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/cron"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/inventory"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/ledger"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/internal/notify"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/config"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/db"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/logger"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/metrics"
	"github.com/mynameisjiajun/TECH-MINISTRY-TELEGRAM-BOT/pkg/redis"
)

const lockKey = "reminder-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: "reminder-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "reminder-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	loc, err := cfg.Rental.Location()
	if err != nil {
		logg.Error(context.Background(), "failed to resolve timezone", err)
		os.Exit(1)
	}

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	var lock cron.Lock = cron.NoopLock{}
	if cfg.Redis.URL != "" || cfg.Redis.Address != "" {
		redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		lock, err = cron.NewRedisLock(redisClient, redisClient.LockKey(lockKey), cfg.Reminder.LockTTL)
		if err != nil {
			logg.Error(context.Background(), "failed to create worker lock", err)
			os.Exit(1)
		}
	}

	itemsRepo := inventory.NewRepository(dbClient.DB())
	rentalsRepo := ledger.NewRepository(dbClient.DB())
	notifier := notify.NewLogNotifier(logg)

	reminderJob, err := cron.NewReminderJob(cron.ReminderJobParams{
		Logger:   logg,
		Rentals:  rentalsRepo,
		Notifier: notifier,
		Location: loc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reminder job", err)
		os.Exit(1)
	}
	overdueJob, err := cron.NewOverdueJob(cron.OverdueJobParams{
		Logger:   logg,
		Rentals:  rentalsRepo,
		Notifier: notifier,
		Location: loc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create overdue job", err)
		os.Exit(1)
	}
	reconcileJob, err := cron.NewReconcileJob(cron.ReconcileJobParams{
		Logger:  logg,
		Items:   itemsRepo,
		Rentals: rentalsRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile job", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(reminderJob, overdueJob, reconcileJob),
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Hour:     cfg.Reminder.Hour,
		Location: loc,
		Interval: cfg.Reminder.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	logg.Info(ctx, "starting reminder worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "reminder worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "reminder worker shutting down gracefully")
}
