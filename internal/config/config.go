package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
)

// Config is read from an optional TOML file (CONFIG_FILE) and then from
// the environment, which wins over the file.
type Config struct {
	// HTTP Server
	Port           string `toml:"port"`
	RateLimit      int    `toml:"rate_limit_per_minute"`
	TrustedProxies string `toml:"trusted_proxies"` // comma separated CIDRs

	// Storage
	DataBackend  string `toml:"data_backend"`
	SQLiteDBPath string `toml:"sqlite_db_path"`
	DatabaseURL  string `toml:"database_url"`

	// AMQP; an empty URL disables change publishing
	AMQPURL      string `toml:"amqp_url"`
	AMQPExchange string `toml:"amqp_exchange"`
	AMQPQueue    string `toml:"amqp_queue"`

	// Reconciliation
	RolloverWindowDays   int           `toml:"rollover_window_days"`
	LowBudgetRatio       string        `toml:"low_budget_ratio"`
	UpcomingWindow       time.Duration `toml:"upcoming_window"`
	Timezone             string        `toml:"timezone"`
	CurrencySymbol       string        `toml:"currency_symbol"`
	ReconcileConcurrency int           `toml:"reconcile_concurrency"`

	// Forecast cache
	ForecastCacheSize int           `toml:"forecast_cache_size"`
	ForecastCacheTTL  time.Duration `toml:"forecast_cache_ttl"`

	// Identity
	AuthMode   string `toml:"auth_mode"`
	AuthTokens string `toml:"auth_tokens"` // token:owner pairs, comma separated

	// Google Sheets ledger export
	GoogleSpreadsheetID      string `toml:"google_spreadsheet_id"`
	GoogleSheetName          string `toml:"google_sheet_name"`
	GoogleServiceAccountFile string `toml:"google_service_account_file"`
	GoogleServiceAccountJSON string `toml:"google_service_account_json"`

	// Logging
	LogLevel string `toml:"log_level"`
}

func defaults() *Config {
	return &Config{
		Port:                 "8081",
		RateLimit:            120,
		DataBackend:          "sqlite",
		SQLiteDBPath:         "./data/fintrack.db",
		AMQPExchange:         "fintrack",
		AMQPQueue:            "expense_changes",
		RolloverWindowDays:   5,
		LowBudgetRatio:       "0.2",
		UpcomingWindow:       7 * 24 * time.Hour,
		Timezone:             "UTC",
		CurrencySymbol:       "£",
		ReconcileConcurrency: 4,
		ForecastCacheSize:    256,
		ForecastCacheTTL:     10 * time.Minute,
		AuthMode:             "header",
		GoogleSheetName:      "Expenses",
		LogLevel:             "info",
	}
}

// Load builds the configuration. Invalid numeric or duration variables
// keep the previous value; Validate reports semantic problems.
func Load() (*Config, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.RateLimit = getEnvInt("RATE_LIMIT_PER_MINUTE", cfg.RateLimit)
	cfg.TrustedProxies = getEnv("TRUSTED_PROXIES", cfg.TrustedProxies)

	cfg.DataBackend = getEnv("DATA_BACKEND", cfg.DataBackend)
	cfg.SQLiteDBPath = getEnv("SQLITE_DB_PATH", cfg.SQLiteDBPath)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)

	cfg.AMQPURL = getEnv("AMQP_URL", cfg.AMQPURL)
	cfg.AMQPExchange = getEnv("AMQP_EXCHANGE", cfg.AMQPExchange)
	cfg.AMQPQueue = getEnv("AMQP_QUEUE", cfg.AMQPQueue)

	cfg.RolloverWindowDays = getEnvInt("ROLLOVER_WINDOW_DAYS", cfg.RolloverWindowDays)
	cfg.LowBudgetRatio = getEnv("LOW_BUDGET_RATIO", cfg.LowBudgetRatio)
	cfg.UpcomingWindow = getEnvDuration("UPCOMING_WINDOW", cfg.UpcomingWindow)
	cfg.Timezone = getEnv("TIMEZONE", cfg.Timezone)
	cfg.CurrencySymbol = getEnv("CURRENCY_SYMBOL", cfg.CurrencySymbol)
	cfg.ReconcileConcurrency = getEnvInt("RECONCILE_CONCURRENCY", cfg.ReconcileConcurrency)

	cfg.ForecastCacheSize = getEnvInt("FORECAST_CACHE_SIZE", cfg.ForecastCacheSize)
	cfg.ForecastCacheTTL = getEnvDuration("FORECAST_CACHE_TTL", cfg.ForecastCacheTTL)

	cfg.AuthMode = getEnv("AUTH_MODE", cfg.AuthMode)
	cfg.AuthTokens = getEnv("AUTH_TOKENS", cfg.AuthTokens)

	cfg.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", cfg.GoogleSpreadsheetID)
	cfg.GoogleSheetName = getEnv("GOOGLE_SHEET_NAME", cfg.GoogleSheetName)
	cfg.GoogleServiceAccountFile = getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", cfg.GoogleServiceAccountFile)
	cfg.GoogleServiceAccountJSON = getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", cfg.GoogleServiceAccountJSON)

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	return cfg, nil
}

// Location returns the time zone month boundaries are computed in.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// LowBudget returns the remaining-to-budget ratio that raises an alert.
func (c *Config) LowBudget() (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(c.LowBudgetRatio))
}

// SheetsEnabled reports whether expenses are mirrored to a spreadsheet.
func (c *Config) SheetsEnabled() bool {
	return strings.TrimSpace(c.GoogleSpreadsheetID) != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimit < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimit))
	}

	switch c.DataBackend {
	case "memory":
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [memory sqlite postgres]", c.DataBackend))
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

	if c.RolloverWindowDays < 1 || c.RolloverWindowDays > 28 {
		errors = append(errors, fmt.Sprintf("invalid rollover window %d: must be between 1 and 28 days", c.RolloverWindowDays))
	}
	if ratio, err := c.LowBudget(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid low budget ratio '%s': must be a decimal", c.LowBudgetRatio))
	} else if !ratio.IsPositive() || ratio.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		errors = append(errors, fmt.Sprintf("invalid low budget ratio %s: must be between 0 and 1", ratio))
	}
	if c.UpcomingWindow <= 0 {
		errors = append(errors, fmt.Sprintf("invalid upcoming window %v: must be positive", c.UpcomingWindow))
	}
	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}
	if c.ReconcileConcurrency < 1 || c.ReconcileConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid reconcile concurrency %d: must be between 1 and 64", c.ReconcileConcurrency))
	}
	if c.ForecastCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid forecast cache size %d: must be at least 1", c.ForecastCacheSize))
	}

	switch c.AuthMode {
	case "header":
	case "token":
		if strings.TrimSpace(c.AuthTokens) == "" {
			errors = append(errors, "AUTH_TOKENS is required when AUTH_MODE is token")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid auth mode '%s': must be 'header' or 'token'", c.AuthMode))
	}

	if c.SheetsEnabled() {
		if c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided when GOOGLE_SPREADSHEET_ID is set")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
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
