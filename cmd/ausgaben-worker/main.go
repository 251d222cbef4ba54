package main

import (
	"context"
	"os"
	"time"

	"ausgaben/internal/amqp"
	"ausgaben/internal/cli"
	applog "ausgaben/internal/log"
	"ausgaben/internal/records/livingapps"
	"ausgaben/internal/services"
	"ausgaben/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)

	logger.Info("Starting ausgaben-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.LivingAppsAPIKey == "" {
		logger.Error("LIVINGAPPS_API_KEY is required for the sync worker",
			applog.FieldErrorType, applog.ErrorTypeConfiguration)
		os.Exit(1)
	}

	// Local mirror the worker keeps in step with LivingApps
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()
	logger.Info("SQLite mirror ready", "path", cfg.SQLiteDBPath, "schema_version", repo.SchemaVersion())

	source := livingapps.New(livingapps.Config{
		BaseURL: cfg.LivingAppsBaseURL,
		APIKey:  cfg.LivingAppsAPIKey,
		Apps: livingapps.Apps{
			Categories: cfg.LivingAppsCategoriesApp,
			Expenses:   cfg.LivingAppsExpensesApp,
			Capture:    cfg.LivingAppsCaptureApp,
		},
		Timeout: cfg.HTTPClientTimeout,
	}, livingapps.WithLogger(logger.WithComponent(applog.ComponentRecords).Slog()))

	syncService := services.NewSyncService(source, repo).
		WithLogger(logger.WithComponent(applog.ComponentSync).Slog())

	// Events are optional; without a broker the schedule alone keeps the mirror fresh
	var consumer worker.Consumer
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		consumer = amqpClient
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	syncWorker, err := worker.NewSyncWorker(syncService, consumer, cfg.SyncSchedule,
		logger.WithComponent(applog.ComponentWorker).Slog())
	if err != nil {
		logger.Error("Failed to create sync worker", applog.FieldError, err, "schedule", cfg.SyncSchedule)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := syncWorker.Stop(ctx); err != nil {
			logger.Error("Sync worker stop failed", applog.FieldError, err)
		}
	})

	if err := syncWorker.Start(ctx); err != nil {
		logger.Error("Failed to start sync worker", applog.FieldError, err)
		os.Exit(1)
	}

	if last, err := repo.LastSyncRun(ctx); err == nil {
		logger.Info("Sync worker running",
			"last_sync_status", last.Status(),
			"last_sync_expenses", last.Expenses)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
