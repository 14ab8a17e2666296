// Package cli holds the bootstrap steps shared by the welth binaries.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"welth/internal/ai"
	"welth/internal/amqp"
	"welth/internal/config"
	applog "welth/internal/log"
	"welth/internal/notify"
	"welth/internal/storage"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// Bootstrap loads .env and configuration, installs the process logger for
// component and validates the configuration. It exits on invalid config.
func Bootstrap(component string) (*config.Config, *applog.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := applog.Setup(component, cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg, logger
}

// InitSQLite opens the database and applies migrations, exiting on failure.
func InitSQLite(logger *applog.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// NewAIClient returns nil when no API key is configured.
func NewAIClient(ctx context.Context, cfg *config.Config) (*ai.Client, error) {
	client, err := ai.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if errors.Is(err, ai.ErrMissingAPIKey) {
		slog.InfoContext(ctx, "AI features disabled - no GEMINI_API_KEY provided")
		return nil, nil
	}
	return client, err
}

// NewReceiptArchive returns nil when no bucket is configured.
func NewReceiptArchive(ctx context.Context, cfg *config.Config) (*ai.ReceiptArchive, error) {
	if cfg.ReceiptBucket == "" {
		return nil, nil
	}
	return ai.NewReceiptArchive(ctx, cfg.ReceiptBucket)
}

// NewAMQPClient returns nil when AMQP_URL is empty.
func NewAMQPClient(cfg *config.Config) (*amqp.Client, error) {
	if cfg.AMQPURL == "" {
		return nil, nil
	}
	return amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
}

// NewNotifier builds the email dispatcher for the configured transport.
func NewNotifier(ctx context.Context, cfg *config.Config) (*notify.Dispatcher, error) {
	renderer, err := notify.NewRenderer(cfg.AppURL, cfg.EmailCharts)
	if err != nil {
		return nil, err
	}

	var sender notify.Sender
	switch cfg.EmailTransport {
	case config.EmailTransportGmail:
		sender, err = notify.NewGmailSender(ctx, notify.GmailConfig{
			From:       cfg.EmailFrom,
			ClientJSON: cfg.GmailOAuthClientJSON,
			ClientFile: cfg.GmailOAuthClientFile,
			TokenJSON:  cfg.GmailOAuthTokenJSON,
			TokenFile:  cfg.GmailOAuthTokenFile,
		})
		if err != nil {
			return nil, fmt.Errorf("gmail sender: %w", err)
		}
	case config.EmailTransportLog, "":
		sender = notify.NewLogSender()
	default:
		return nil, fmt.Errorf("unknown email transport %q", cfg.EmailTransport)
	}
	slog.InfoContext(ctx, "Email notifier initialized", "transport", cfg.EmailTransport, "charts", cfg.EmailCharts)
	return notify.NewDispatcher(sender, renderer), nil
}
