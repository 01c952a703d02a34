// Package config reads process configuration from the environment.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"purchasing/internal/analytics"
	"purchasing/internal/core"
	"purchasing/internal/log"
)

type Config struct {
	// Backend selection
	DataBackend string

	// SQLite
	SQLiteDBPath string

	// XLSX
	XLSXPath       string
	XLSXOutputPath string

	// Memory backend seed directory (receipts.tsv, pending.tsv, history.tsv)
	DataDirectory string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleOAuthClientJSON    string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenJSON     string
	GoogleOAuthTokenFile     string
	SheetsCacheTTL           time.Duration
	SheetReceived            string
	SheetPending             string
	SheetHistory             string
	SheetSummary             string
	SheetTrend               string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Reporting
	MappingsFile      string
	StandardLocations []string
	RecurrencePolicy  string
	ReceiptWindowDays int
	HistorySince      string

	// Worker
	ReportInterval  time.Duration
	MetricsTextfile string
	// OpsAddr is the listen address of the worker's ops server; empty disables it.
	OpsAddr string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		DataBackend:    getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/purchasing.db"),
		XLSXPath:       getEnv("XLSX_PATH", ""),
		XLSXOutputPath: getEnv("XLSX_OUTPUT_PATH", ""),
		DataDirectory:  getEnv("DATA_DIRECTORY", "data"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleOAuthClientJSON:    getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthClientFile:    getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthTokenJSON:     getEnv("GOOGLE_OAUTH_TOKEN_JSON", ""),
		GoogleOAuthTokenFile:     getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),
		SheetsCacheTTL:           getEnvDuration("SHEETS_CACHE_TTL", 0),
		SheetReceived:            getEnv("SHEET_RECEIVED", "CAME IN"),
		SheetPending:             getEnv("SHEET_PENDING", "WAITING ON"),
		SheetHistory:             getEnv("SHEET_HISTORY", "LATEST 2 YEARS"),
		SheetSummary:             getEnv("SHEET_SUMMARY", "ITEM SUMMARY"),
		SheetTrend:               getEnv("SHEET_TREND", "TREND GRAPH"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "purchasing"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "report_requests"),

		MappingsFile:      getEnv("MAPPINGS_FILE", ""),
		StandardLocations: getEnvList("STANDARD_LOCATIONS"),
		RecurrencePolicy:  getEnv("RECURRENCE_POLICY", "default"),
		ReceiptWindowDays: getEnvInt("RECEIPT_WINDOW_DAYS", 730),
		HistorySince:      getEnv("HISTORY_SINCE", "2024-01-01"),

		ReportInterval:  getEnvDuration("REPORT_INTERVAL", time.Hour),
		MetricsTextfile: getEnv("METRICS_TEXTFILE", ""),
		OpsAddr:         getEnv("OPS_ADDR", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

var validBackends = []string{"memory", "sheets", "sqlite", "xlsx"}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate data backend
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}

	case "xlsx":
		if c.XLSXPath == "" {
			errors = append(errors, "XLSX_PATH is required when using xlsx backend")
		} else if ext := strings.ToLower(filepath.Ext(c.XLSXPath)); ext != ".xlsx" {
			errors = append(errors, fmt.Sprintf("invalid XLSX_PATH '%s': must end in .xlsx", c.XLSXPath))
		}
		if c.XLSXOutputPath != "" && strings.ToLower(filepath.Ext(c.XLSXOutputPath)) != ".xlsx" {
			errors = append(errors, fmt.Sprintf("invalid XLSX_OUTPUT_PATH '%s': must end in .xlsx", c.XLSXOutputPath))
		}

	case "sheets":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
		hasClient := c.GoogleOAuthClientJSON != "" || c.GoogleOAuthClientFile != ""
		hasToken := c.GoogleOAuthTokenJSON != "" || c.GoogleOAuthTokenFile != ""
		if hasClient != hasToken {
			errors = append(errors, "GOOGLE_OAUTH_CLIENT_* and GOOGLE_OAUTH_TOKEN_* must be set together")
		}
		for _, f := range []string{c.GoogleOAuthClientFile, c.GoogleOAuthTokenFile} {
			if f == "" {
				continue
			}
			if _, err := os.Stat(f); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google OAuth file does not exist: %s", f))
			}
		}
		for name, v := range map[string]string{
			"SHEET_RECEIVED": c.SheetReceived,
			"SHEET_PENDING":  c.SheetPending,
			"SHEET_HISTORY":  c.SheetHistory,
			"SHEET_SUMMARY":  c.SheetSummary,
			"SHEET_TREND":    c.SheetTrend,
		} {
			if strings.TrimSpace(v) == "" {
				errors = append(errors, fmt.Sprintf("%s cannot be empty when using sheets backend", name))
			}
		}
		if c.SheetsCacheTTL < 0 {
			errors = append(errors, fmt.Sprintf("invalid sheets cache TTL %v: must not be negative", c.SheetsCacheTTL))
		}
	}

	// Validate AMQP URL if provided
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

	if c.MappingsFile != "" {
		if _, err := os.Stat(c.MappingsFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("mappings file does not exist: %s", c.MappingsFile))
		}
	}

	if _, err := analytics.GetRecurrencePolicy(c.RecurrencePolicy); err != nil {
		errors = append(errors, fmt.Sprintf("invalid recurrence policy '%s': must be one of %v", c.RecurrencePolicy, analytics.RecurrencePolicyNames()))
	}

	if c.ReceiptWindowDays < 0 {
		errors = append(errors, fmt.Sprintf("invalid receipt window %d: must be 0 (off) or positive", c.ReceiptWindowDays))
	}
	if _, err := c.HistorySinceDate(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid HISTORY_SINCE '%s': must be YYYY-MM-DD or empty", c.HistorySince))
	}

	// Validate worker configuration
	if c.ReportInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid report interval %v: must be at least 1 minute", c.ReportInterval))
	} else if c.ReportInterval > 7*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid report interval %v: must be at most 7 days", c.ReportInterval))
	}

	if c.OpsAddr != "" {
		if _, port, err := net.SplitHostPort(c.OpsAddr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid OPS_ADDR '%s': %v", c.OpsAddr, err))
		} else if p, err := strconv.Atoi(port); err != nil || p < 0 || p > 65535 {
			errors = append(errors, fmt.Sprintf("invalid OPS_ADDR port '%s': must be 0-65535", port))
		}
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// HistorySinceDate parses HistorySince. An empty value means no cut-off.
func (c *Config) HistorySinceDate() (core.Date, error) {
	if strings.TrimSpace(c.HistorySince) == "" {
		return core.Date{}, nil
	}
	return core.ParseISODate(c.HistorySince)
}

// Logger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) Logger(component string) *log.Logger {
	lc := log.DefaultConfig()
	if level, err := log.ParseLevel(c.LogLevel); err == nil {
		lc.Level = level
	}
	lc.Format = c.LogFormat
	lc.Component = component
	return log.New(lc)
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

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
