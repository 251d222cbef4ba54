package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ausgaben/internal/amqp"
	"ausgaben/internal/records/google"
	"ausgaben/internal/records/livingapps"
	"ausgaben/internal/records/memory"
	"ausgaben/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *BackendResult
		err error
	)
	switch config.Type {
	case LivingAppsBackend:
		res = f.createLivingAppsBackend(config)
	case SQLiteBackend:
		res, err = f.createSQLiteBackend(config)
	case SheetsBackend:
		res, err = f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		res = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	f.attachEvents(res, config)
	return res, nil
}

func (f *DefaultFactory) createLivingAppsBackend(config Config) *BackendResult {
	client := livingapps.New(livingapps.Config{
		BaseURL: config.LivingAppsBaseURL,
		APIKey:  config.LivingAppsAPIKey,
		Apps: livingapps.Apps{
			Categories: config.LivingAppsCategoriesApp,
			Expenses:   config.LivingAppsExpensesApp,
			Capture:    config.LivingAppsCaptureApp,
		},
		Timeout: config.HTTPClientTimeout,
	}, livingapps.WithLogger(f.logger))

	f.logger.Info("Initialized LivingApps backend",
		"base_url", client.BaseURL(),
		"api_key_set", config.LivingAppsAPIKey != "")

	return &BackendResult{Backend: client}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{Backend: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := google.New(ctx, google.Config{
		SpreadsheetID:      config.GoogleSpreadsheetID,
		ServiceAccountFile: config.GoogleServiceAccountFile,
		ServiceAccountJSON: config.GoogleServiceAccountJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend", "spreadsheet_id", config.GoogleSpreadsheetID)

	return &BackendResult{Backend: cli}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) *BackendResult {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}
	store := memory.NewFromFiles(dataDir)

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{Backend: store}
}

// attachEvents connects the optional AMQP publisher. A broker that cannot be
// reached leaves the backend usable without events.
func (f *DefaultFactory) attachEvents(res *BackendResult, config Config) {
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			res.Events = client
		}
	}

	backendCleanup := res.Cleanup
	events := res.Events
	res.Cleanup = func() error {
		var errs []error
		if events != nil {
			errs = append(errs, events.Close())
		}
		if backendCleanup != nil {
			errs = append(errs, backendCleanup())
		}
		return errors.Join(errs...)
	}
}
