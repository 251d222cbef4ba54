package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"ausgaben/internal/backend"
	"ausgaben/internal/cache"
	"ausgaben/internal/cli"
	"ausgaben/internal/core"
	apphttp "ausgaben/internal/http"
	applog "ausgaben/internal/log"
	"ausgaben/internal/services"
	"ausgaben/internal/ui"
)

// expenseSource tags the events this process publishes.
const expenseSource = "ausgaben"

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Slog()).
		CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	dash := services.NewDashboardService(result.Backend, result.Backend,
		services.WithSnapshotTTL(cfg.SnapshotCacheTTL),
		services.WithDefaults(core.DashboardOptions{
			SeriesDays:         cfg.DashboardSeriesDays,
			TopN:               cfg.DashboardTopN,
			UncategorizedLabel: cfg.UncategorizedLabel,
		}),
		services.WithLogger(logger.WithComponent(applog.ComponentDashboard).Slog()),
	)

	var publisher services.Publisher
	if result.Events != nil {
		publisher = result.Events
	}
	expenses := services.NewExpenseService(result.Backend, dash, publisher, expenseSource).
		WithLogger(logger.WithComponent(applog.ComponentExpense).Slog())

	cacheManager := cache.NewManager(logger.WithComponent(applog.ComponentCache).Slog())
	if c := dash.Cache(); c != nil {
		cacheManager.Register(c)
	}
	cacheManager.StartCleanup(5 * time.Minute)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Dashboard: dash,
		Expenses:  expenses,
		Pinger:    result.Backend,
		Settings:  ui.Defaults(cfg.UIDarkMode),
		Logger:    logger,
	})
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		cacheManager.Stop()
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", applog.FieldError, err)
			}
		}
	})

	logger.Info("Starting ausgaben server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
