package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	EmailTransportLog   = "log"
	EmailTransportGmail = "gmail"
)

type Config struct {
	// Logging
	LogLevel  string
	LogFormat string

	// HTTP Server
	Port            string
	MaxReceiptBytes int64

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Gemini
	GeminiAPIKey string
	GeminiModel  string

	// Email
	EmailTransport       string
	EmailFrom            string
	EmailCharts          bool
	AppURL               string
	GmailOAuthClientFile string
	GmailOAuthTokenFile  string
	GmailOAuthClientJSON string
	GmailOAuthTokenJSON  string

	// Receipt archive (Google Cloud Storage); empty disables archiving
	ReceiptBucket string

	// Rate limits
	TransactionRateLimit  int
	TransactionRateWindow time.Duration
	RecurringThrottle     int
	RecurringWindow       time.Duration

	// Stats cache
	StatsCacheSize int
	StatsCacheTTL  time.Duration

	// Schedules (standard 5-field cron)
	BudgetAlertSchedule   string
	RecurringSchedule     string
	MonthlyReportSchedule string
}

func Load() *Config {
	return &Config{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		Port:            getEnv("PORT", "8081"),
		MaxReceiptBytes: int64(getEnvInt("MAX_RECEIPT_BYTES", 5<<20)),
		SQLiteDBPath:    getEnv("SQLITE_DB_PATH", "./data/welth.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "welth"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "recurring_transactions"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		EmailTransport:       getEnv("EMAIL_TRANSPORT", EmailTransportLog),
		EmailFrom:            getEnv("EMAIL_FROM", ""),
		EmailCharts:          getEnvBool("EMAIL_CHARTS", true),
		AppURL:               getEnv("APP_URL", ""),
		GmailOAuthClientFile: getEnv("GMAIL_OAUTH_CLIENT_FILE", ""),
		GmailOAuthTokenFile:  getEnv("GMAIL_OAUTH_TOKEN_FILE", ""),
		GmailOAuthClientJSON: getEnv("GMAIL_OAUTH_CLIENT_JSON", ""),
		GmailOAuthTokenJSON:  getEnv("GMAIL_OAUTH_TOKEN_JSON", ""),

		ReceiptBucket: getEnv("RECEIPT_BUCKET", ""),

		TransactionRateLimit:  getEnvInt("TRANSACTION_RATE_LIMIT", 10),
		TransactionRateWindow: getEnvDuration("TRANSACTION_RATE_WINDOW", time.Hour),
		RecurringThrottle:     getEnvInt("RECURRING_THROTTLE", 10),
		RecurringWindow:       getEnvDuration("RECURRING_THROTTLE_WINDOW", time.Minute),

		StatsCacheSize: getEnvInt("STATS_CACHE_SIZE", 1000),
		StatsCacheTTL:  getEnvDuration("STATS_CACHE_TTL", 5*time.Minute),

		BudgetAlertSchedule:   getEnv("BUDGET_ALERT_SCHEDULE", "0 */6 * * *"),
		RecurringSchedule:     getEnv("RECURRING_SCHEDULE", "0 0 * * *"),
		MonthlyReportSchedule: getEnv("MONTHLY_REPORT_SCHEDULE", "0 0 1 * *"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
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

	switch c.EmailTransport {
	case EmailTransportLog:
	case EmailTransportGmail:
		if c.EmailFrom == "" {
			errors = append(errors, "EMAIL_FROM is required when using the gmail transport")
		}
		hasClientFile := c.GmailOAuthClientFile != ""
		if !hasClientFile && c.GmailOAuthClientJSON == "" {
			errors = append(errors, "either GMAIL_OAUTH_CLIENT_FILE or GMAIL_OAUTH_CLIENT_JSON must be provided for gmail transport")
		}
		hasTokenFile := c.GmailOAuthTokenFile != ""
		if !hasTokenFile && c.GmailOAuthTokenJSON == "" {
			errors = append(errors, "either GMAIL_OAUTH_TOKEN_FILE or GMAIL_OAUTH_TOKEN_JSON must be provided for gmail transport")
		}
		if hasClientFile {
			if _, err := os.Stat(c.GmailOAuthClientFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Gmail OAuth client file does not exist: %s", c.GmailOAuthClientFile))
			}
		}
		if hasTokenFile {
			if _, err := os.Stat(c.GmailOAuthTokenFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Gmail OAuth token file does not exist: %s", c.GmailOAuthTokenFile))
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid email transport '%s': must be one of [%s %s]", c.EmailTransport, EmailTransportLog, EmailTransportGmail))
	}

	if c.AppURL != "" {
		if u, err := url.Parse(c.AppURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid APP_URL '%s': must be an http(s) URL", c.AppURL))
		}
	}

	if c.MaxReceiptBytes < 1024 {
		errors = append(errors, fmt.Sprintf("invalid max receipt size %d: must be at least 1024 bytes", c.MaxReceiptBytes))
	}

	if c.TransactionRateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid transaction rate limit %d: must be at least 1", c.TransactionRateLimit))
	}
	if c.TransactionRateWindow < time.Second {
		errors = append(errors, fmt.Sprintf("invalid transaction rate window %v: must be at least 1 second", c.TransactionRateWindow))
	}
	if c.RecurringThrottle < 1 {
		errors = append(errors, fmt.Sprintf("invalid recurring throttle %d: must be at least 1", c.RecurringThrottle))
	}
	if c.RecurringWindow < time.Second {
		errors = append(errors, fmt.Sprintf("invalid recurring throttle window %v: must be at least 1 second", c.RecurringWindow))
	}

	if c.StatsCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid stats cache size %d: must be at least 1", c.StatsCacheSize))
	}

	schedules := []struct{ name, expr string }{
		{"BUDGET_ALERT_SCHEDULE", c.BudgetAlertSchedule},
		{"RECURRING_SCHEDULE", c.RecurringSchedule},
		{"MONTHLY_REPORT_SCHEDULE", c.MonthlyReportSchedule},
	}
	for _, s := range schedules {
		if _, err := cron.ParseStandard(s.expr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': %v", s.name, s.expr, err))
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
