package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Backend names accepted by DATA_BACKEND.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendSheets = "sheets"
	BackendRemote = "remote"
)

var validBackends = []string{BackendMemory, BackendSQLite, BackendSheets, BackendRemote}

type Config struct {
	// HTTP Server
	Port      string
	LogLevel  string
	LogFormat string

	// Backend selection
	DataBackend string
	DataDir     string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleOAuthClientJSON    string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenFile     string

	// Remote transactions API
	RemoteBaseURL    string
	RemoteTimeout    time.Duration
	RemoteMaxRetries int

	// Presentation
	PageSize int
	CacheTTL time.Duration
	Timezone string

	// Snapshot worker
	SnapshotBatchSize int
	SnapshotInterval  time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:      getEnv("PORT", "8081"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DataBackend: getEnv("DATA_BACKEND", BackendMemory),
		DataDir:     getEnv("DATA_DIR", "./data"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/rewards.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "rewards"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "rewards_snapshots"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),
		GoogleOAuthClientJSON:    getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthClientFile:    getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthTokenFile:     getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),

		RemoteBaseURL:    getEnv("REMOTE_BASE_URL", ""),
		RemoteTimeout:    getEnvDuration("REMOTE_TIMEOUT", 10*time.Second),
		RemoteMaxRetries: getEnvInt("REMOTE_MAX_RETRIES", 3),

		PageSize: getEnvInt("PAGE_SIZE", 10),
		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),
		Timezone: getEnv("TIMEZONE", "Local"),

		SnapshotBatchSize: getEnvInt("SNAPSHOT_BATCH_SIZE", 10),
		SnapshotInterval:  getEnvDuration("SNAPSHOT_INTERVAL", 30*time.Second),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}
	if !validLogFormat(c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendMemory:
		if c.DataDir == "" {
			errors = append(errors, "data directory cannot be empty when using memory backend")
		}

	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}

	case BackendSheets:
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when using sheets backend")
		}
		hasJSON := c.GoogleServiceAccountJSON != ""
		hasFile := c.GoogleServiceAccountFile != ""
		hasToken := c.GoogleOAuthTokenFile != ""
		if !hasJSON && !hasFile && !hasToken {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets backend (or GOOGLE_OAUTH_TOKEN_FILE)")
		}
		if hasToken && c.GoogleOAuthClientJSON == "" && c.GoogleOAuthClientFile == "" {
			errors = append(errors, "GOOGLE_OAUTH_TOKEN_FILE requires GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}

	case BackendRemote:
		if c.RemoteBaseURL == "" {
			errors = append(errors, "REMOTE_BASE_URL is required when using remote backend")
		} else if u, err := url.Parse(c.RemoteBaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid remote base URL '%s': %v", c.RemoteBaseURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid remote base URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		}
		if c.RemoteTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("invalid remote timeout %v: must be positive", c.RemoteTimeout))
		}
		if c.RemoteMaxRetries < 0 || c.RemoteMaxRetries > 10 {
			errors = append(errors, fmt.Sprintf("invalid remote max retries %d: must be between 0 and 10", c.RemoteMaxRetries))
		}
	}

	// AMQP is optional; when set it must be complete
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

	if c.PageSize < 1 || c.PageSize > 200 {
		errors = append(errors, fmt.Sprintf("invalid page size %d: must be between 1 and 200", c.PageSize))
	}
	if c.CacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must not be negative", c.CacheTTL))
	}
	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.SnapshotBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid snapshot batch size %d: must be at least 1", c.SnapshotBatchSize))
	} else if c.SnapshotBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid snapshot batch size %d: must be at most 1000", c.SnapshotBatchSize))
	}

	if c.SnapshotInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid snapshot interval %v: must be at least 1 second", c.SnapshotInterval))
	} else if c.SnapshotInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid snapshot interval %v: must be at most 24 hours", c.SnapshotInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Location resolves Timezone. "Local" and "" mean the process time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// ParseLevel maps LOG_LEVEL values to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be one of debug, info, warn, error", s)
	}
	return level, nil
}

func validLogFormat(s string) bool {
	switch strings.ToLower(s) {
	case "", "text", "json":
		return true
	}
	return false
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
