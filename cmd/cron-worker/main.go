package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/ordergenie-backend/internal/bootstrap"
	"github.com/angelmondragon/ordergenie-backend/internal/cron"
	"github.com/angelmondragon/ordergenie-backend/pkg/config"
	"github.com/angelmondragon/ordergenie-backend/pkg/db"
	"github.com/angelmondragon/ordergenie-backend/pkg/enums"
	"github.com/angelmondragon/ordergenie-backend/pkg/instance"
	"github.com/angelmondragon/ordergenie-backend/pkg/logger"
	"github.com/angelmondragon/ordergenie-backend/pkg/metrics"
	"github.com/angelmondragon/ordergenie-backend/pkg/migrate"
	"github.com/angelmondragon/ordergenie-backend/pkg/redis"
)

const (
	platformSyncBatch    = 50
	webhookMaxRetries    = 5
	webhookRetentionDays = 14
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

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

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

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

	services, err := bootstrap.NewServices(cfg, logg, dbClient, prometheus.DefaultRegisterer)
	if err != nil {
		logg.Error(context.Background(), "failed to create services", err)
		os.Exit(1)
	}

	jobs, err := buildJobs(cfg, logg, dbClient, services)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron jobs", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker", cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"jobs":        len(jobs),
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, services *bootstrap.Services) ([]cron.Job, error) {
	lowStock, err := cron.NewLowStockJob(cron.LowStockJobParams{
		Logger:    logg,
		Advisor:   services.Inventory,
		Notifier:  services.Notifications,
		Channel:   enums.NotificationChannel(cfg.Cron.LowStockChannel),
		Recipient: cfg.Cron.LowStockRecipient,
	})
	if err != nil {
		return nil, fmt.Errorf("low stock job: %w", err)
	}

	platformSync, err := cron.NewPlatformSyncJob(cron.PlatformSyncJobParams{
		Logger: logg,
		Syncers: map[string]cron.PlatformSyncer{
			"fulfillments": services.Fulfillments,
			"returns":      services.Returns,
		},
		Batch: platformSyncBatch,
	})
	if err != nil {
		return nil, fmt.Errorf("platform sync job: %w", err)
	}

	webhookParams := cron.WebhookJobParams{
		Logger:     logg,
		Webhooks:   services.Webhooks,
		MaxRetries: webhookMaxRetries,
		Retention:  webhookRetentionDays,
	}
	replay, err := cron.NewWebhookReplayJob(webhookParams)
	if err != nil {
		return nil, fmt.Errorf("webhook replay job: %w", err)
	}
	cleanup, err := cron.NewWebhookCleanupJob(webhookParams)
	if err != nil {
		return nil, fmt.Errorf("webhook cleanup job: %w", err)
	}

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  services.OutboxRepo,
		Retention:   cfg.Outbox.RetentionDays,
		DeadLetters: services.OutboxDLQ,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}

	return []cron.Job{lowStock, platformSync, replay, cleanup, retention}, nil
}
