package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"ledger/internal/report"
)

type Config struct {
	// Local ledger
	DBPath    string
	Household string
	Locale    string
	Currency  string
	ExportDir string

	// Sharing
	RemoteURL     string
	RemoteKey     string
	RemoteTimeout time.Duration
	PushQueue     int
	PullPolicy    string

	// ResyncInterval is the period of full pulls by long running commands; 0 disables them.
	ResyncInterval time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Google Sheets workbook export
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Hub
	HubPort           string
	HubDatabaseURL    string
	HubJWTSecret      string
	HubAllowedOrigins []string
	HubCacheTTL       time.Duration
	HubRateLimit      int

	// AMQP fanout between hub replicas
	AMQPURL      string
	AMQPExchange string
}

const (
	PullPolicyReplace = "replace"
	PullPolicyMerge   = "merge"
)

var remoteSchemes = []string{"http", "https", "postgres", "postgresql", "memory"}

func Load() *Config {
	cfg := &Config{
		DBPath:    getEnv("LEDGER_DB_PATH", "./data/ledger.db"),
		Household: getEnv("LEDGER_HOUSEHOLD", ""),
		Locale:    getEnv("LEDGER_LOCALE", report.DefaultLocale),
		Currency:  getEnv("LEDGER_CURRENCY", "EUR"),
		ExportDir: getEnv("LEDGER_EXPORT_DIR", "."),

		RemoteURL:     getEnv("LEDGER_REMOTE_URL", ""),
		RemoteKey:     getEnv("LEDGER_REMOTE_KEY", ""),
		RemoteTimeout: getEnvDuration("LEDGER_REMOTE_TIMEOUT", 10*time.Second),
		PushQueue:     getEnvInt("LEDGER_PUSH_QUEUE", 64),
		PullPolicy:    getEnv("LEDGER_PULL_POLICY", PullPolicyReplace),

		ResyncInterval: getEnvDuration("LEDGER_RESYNC_INTERVAL", 5*time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		HubPort:           getEnv("HUB_PORT", "8090"),
		HubDatabaseURL:    getEnv("HUB_DATABASE_URL", ""),
		HubJWTSecret:      getEnv("HUB_JWT_SECRET", ""),
		HubAllowedOrigins: getEnvList("HUB_ALLOWED_ORIGINS", []string{"*"}),
		HubCacheTTL:       getEnvDuration("HUB_CACHE_TTL", 30*time.Second),
		HubRateLimit:      getEnvInt("HUB_RATE_LIMIT", 120),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "ledger.changes"),
	}

	return cfg
}

// SharingEnabled reports whether both halves of the remote credential are set.
func (c *Config) SharingEnabled() bool {
	return c.RemoteURL != "" && c.RemoteKey != ""
}

// SheetsEnabled reports whether workbook export goes to Google Sheets.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the client configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if c.DBPath == "" {
		errors = append(errors, "database path cannot be empty")
	} else {
		dir := filepath.Dir(c.DBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if !slices.Contains(report.Locales(), c.Locale) {
		errors = append(errors, fmt.Sprintf("invalid locale '%s': must be one of %v", c.Locale, report.Locales()))
	}
	if c.Currency == "" {
		errors = append(errors, "currency cannot be empty")
	}

	if (c.RemoteURL == "") != (c.RemoteKey == "") {
		errors = append(errors, "LEDGER_REMOTE_URL and LEDGER_REMOTE_KEY must be set together")
	}
	if c.RemoteURL != "" {
		if parsedURL, err := url.Parse(c.RemoteURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid remote URL '%s': %v", c.RemoteURL, err))
		} else if !slices.Contains(remoteSchemes, parsedURL.Scheme) {
			errors = append(errors, fmt.Sprintf("invalid remote URL scheme '%s': must be one of %v", parsedURL.Scheme, remoteSchemes))
		}
	}
	if c.Household != "" && !c.SharingEnabled() {
		errors = append(errors, "LEDGER_HOUSEHOLD requires a configured remote")
	}

	if c.RemoteTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid remote timeout %v: must be at least 1 second", c.RemoteTimeout))
	} else if c.RemoteTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid remote timeout %v: must be at most 5 minutes", c.RemoteTimeout))
	}
	if c.PushQueue < 1 {
		errors = append(errors, fmt.Sprintf("invalid push queue size %d: must be at least 1", c.PushQueue))
	} else if c.PushQueue > 10000 {
		errors = append(errors, fmt.Sprintf("invalid push queue size %d: must be at most 10000", c.PushQueue))
	}
	if c.PullPolicy != PullPolicyReplace && c.PullPolicy != PullPolicyMerge {
		errors = append(errors, fmt.Sprintf("invalid pull policy '%s': must be '%s' or '%s'", c.PullPolicy, PullPolicyReplace, PullPolicyMerge))
	}

	if c.ResyncInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid resync interval %v: must not be negative", c.ResyncInterval))
	} else if c.ResyncInterval > 0 && c.ResyncInterval < 10*time.Second {
		errors = append(errors, fmt.Sprintf("invalid resync interval %v: must be 0 or at least 10 seconds", c.ResyncInterval))
	}

	errors = append(errors, c.validateLogging()...)

	if c.SheetsEnabled() && c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	return combine(errors)
}

// ValidateHub validates the settings read by ledger-hub.
func (c *Config) ValidateHub() error {
	var errors []string

	if port, err := strconv.Atoi(c.HubPort); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.HubPort))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if len(c.HubJWTSecret) < 32 {
		errors = append(errors, "HUB_JWT_SECRET must be at least 32 characters")
	}

	if c.HubDatabaseURL != "" {
		if parsedURL, err := url.Parse(c.HubDatabaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid hub database URL: %v", err))
		} else if parsedURL.Scheme != "postgres" && parsedURL.Scheme != "postgresql" && parsedURL.Scheme != "memory" {
			errors = append(errors, fmt.Sprintf("invalid hub database URL scheme '%s': must be 'postgres', 'postgresql' or 'memory'", parsedURL.Scheme))
		}
	}

	if len(c.HubAllowedOrigins) == 0 {
		errors = append(errors, "HUB_ALLOWED_ORIGINS cannot be empty")
	}
	if c.HubCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid hub cache TTL %v: must not be negative", c.HubCacheTTL))
	}
	if c.HubRateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid hub rate limit %d: must be at least 1", c.HubRateLimit))
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
	}

	errors = append(errors, c.validateLogging()...)

	return combine(errors)
}

func (c *Config) validateLogging() []string {
	var errors []string
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s'", c.LogLevel))
	}
	switch c.LogFormat {
	case "text", "json", "tint":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text, json or tint", c.LogFormat))
	}
	return errors
}

func combine(errors []string) error {
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

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
