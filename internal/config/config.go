package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Backends accepted by DATA_BACKEND.
var validBackends = []string{"livingapps", "sqlite", "sheets", "memory"}

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Backend selection
	DataBackend  string
	DataDir      string
	SQLiteDBPath string

	// LivingApps record store
	LivingAppsBaseURL       string
	LivingAppsAPIKey        string
	LivingAppsCategoriesApp string
	LivingAppsExpensesApp   string
	LivingAppsCaptureApp    string
	HTTPClientTimeout       time.Duration

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	// Dashboard
	SnapshotCacheTTL    time.Duration
	DashboardSeriesDays int
	DashboardTopN       int
	UIDarkMode          bool
	UncategorizedLabel  string

	// Worker
	SyncSchedule string
}

func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		DataDir:      getEnv("DATA_DIR", "./data"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/ausgaben.db"),

		LivingAppsBaseURL:       getEnv("LIVINGAPPS_BASE_URL", "https://my.living-apps.de/rest"),
		LivingAppsAPIKey:        getEnv("LIVINGAPPS_API_KEY", ""),
		LivingAppsCategoriesApp: getEnv("LIVINGAPPS_CATEGORIES_APP", "696f822571ddec20b35bc68e"),
		LivingAppsExpensesApp:   getEnv("LIVINGAPPS_EXPENSES_APP", "696f8228ac959abad478a05a"),
		LivingAppsCaptureApp:    getEnv("LIVINGAPPS_CAPTURE_APP", "696f8229befaff34971e38ed"),
		HTTPClientTimeout:       getEnvDuration("HTTP_CLIENT_TIMEOUT", 15*time.Second),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "ausgaben"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "expense_changed"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),

		SnapshotCacheTTL:    getEnvDuration("SNAPSHOT_CACHE_TTL", 30*time.Second),
		DashboardSeriesDays: getEnvInt("DASHBOARD_SERIES_DAYS", 30),
		DashboardTopN:       getEnvInt("DASHBOARD_TOP_N", 5),
		UIDarkMode:          getEnvBool("UI_DARK_MODE", false),
		UncategorizedLabel:  getEnv("UNCATEGORIZED_LABEL", "Uncategorized"),

		SyncSchedule: getEnv("SYNC_SCHEDULE", "*/15 * * * *"),
	}
}

// Validate validates the configuration and returns an error listing every problem found
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, ok := ParseLevel(c.LogLevel); !ok {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "livingapps":
		errors = append(errors, c.validateLivingApps()...)
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	case "sheets":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets backend")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	case "memory":
		if c.DataDir == "" {
			errors = append(errors, "data directory cannot be empty when using memory backend")
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SnapshotCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid snapshot cache TTL %v: must not be negative", c.SnapshotCacheTTL))
	}
	if c.DashboardSeriesDays < 1 || c.DashboardSeriesDays > 366 {
		errors = append(errors, fmt.Sprintf("invalid dashboard series days %d: must be between 1 and 366", c.DashboardSeriesDays))
	}
	if c.DashboardTopN < 0 {
		errors = append(errors, fmt.Sprintf("invalid dashboard top N %d: must not be negative", c.DashboardTopN))
	}
	if strings.TrimSpace(c.UncategorizedLabel) == "" {
		errors = append(errors, "uncategorized label cannot be empty")
	}

	if c.SyncSchedule != "" {
		if _, err := cron.ParseStandard(c.SyncSchedule); err != nil {
			errors = append(errors, fmt.Sprintf("invalid sync schedule '%s': %v", c.SyncSchedule, err))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func (c *Config) validateLivingApps() []string {
	var errors []string
	if parsedURL, err := url.Parse(c.LivingAppsBaseURL); err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid LivingApps base URL '%s'", c.LivingAppsBaseURL))
	}
	if c.LivingAppsCategoriesApp == "" || c.LivingAppsExpensesApp == "" {
		errors = append(errors, "LivingApps categories and expenses app ids are required when using livingapps backend")
	}
	if c.HTTPClientTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid HTTP client timeout %v: must be positive", c.HTTPClientTimeout))
	}
	return errors
}

// ParseLevel maps a LOG_LEVEL value to a level name understood by the logger.
func ParseLevel(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return "debug", true
	case "", "info":
		return "info", true
	case "warn", "warning":
		return "warn", true
	case "error":
		return "error", true
	}
	return "", false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
