package backend

import (
	"context"
	"time"

	"ausgaben/internal/amqp"
	"ausgaben/internal/records"
)

// Backend is a record store the dashboard can read from, write to and probe.
type Backend interface {
	records.Backend
	Ping(ctx context.Context) error
}

type CleanupFunc func() error

// BackendResult holds the created backend, the optional event publisher
// and a cleanup function for both.
type BackendResult struct {
	Backend Backend
	Events  *amqp.Client
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// LivingApps specific
	LivingAppsBaseURL       string
	LivingAppsAPIKey        string
	LivingAppsCategoriesApp string
	LivingAppsExpensesApp   string
	LivingAppsCaptureApp    string
	HTTPClientTimeout       time.Duration

	// SQLite specific
	SQLiteDBPath string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	// Memory backend specific
	DataDirectory string

	// Expense-changed events, optional for every backend
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

type BackendType string

const (
	LivingAppsBackend BackendType = "livingapps"
	SQLiteBackend     BackendType = "sqlite"
	SheetsBackend     BackendType = "sheets"
	MemoryBackend     BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case LivingAppsBackend, SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
