package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"welth/internal/cache"
	"welth/internal/cli"
	"welth/internal/core"
	apphttp "welth/internal/http"
	applog "welth/internal/log"
	"welth/internal/middleware/ratelimit"
	"welth/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentApp)
	logger.Info("Starting welth server")

	ctx, stop := cli.SignalContext()
	defer stop()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Stats cache, swept once a minute
	cacheManager := cache.NewManager()
	statsCache := cache.NewLRUCache[core.MonthlyStats](cfg.StatsCacheSize, cfg.StatsCacheTTL)
	cacheManager.Register(statsCache)
	cacheManager.StartCleanup(time.Minute)
	defer cacheManager.Stop()

	stats := services.NewStatsAggregator(repo, statsCache)

	txLimiter := ratelimit.NewLimiter(ratelimit.Config{
		Requests: cfg.TransactionRateLimit,
		Period:   cfg.TransactionRateWindow,
	})
	defer txLimiter.Stop()

	ledger := services.NewLedgerService(repo, txLimiter, stats)

	opts := apphttp.Options{
		Ledger:                ledger,
		Stats:                 stats,
		Ready:                 repo.Ping,
		MaxReceiptBytes:       cfg.MaxReceiptBytes,
		TransactionRetryAfter: cfg.TransactionRateWindow,
		ClientLimit:           ratelimit.DefaultConfig(),
		Logger:                logger.WithComponent(applog.ComponentHTTP),
	}

	aiClient, err := cli.NewAIClient(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize AI client", "error", err)
		os.Exit(1)
	}
	if aiClient != nil {
		opts.Receipts = aiClient
	}

	archive, err := cli.NewReceiptArchive(ctx, cfg)
	if err != nil {
		// scanning still works without archiving
		logger.Warn("Receipt archive unavailable", "error", err, "bucket", cfg.ReceiptBucket)
	} else if archive != nil {
		defer archive.Close()
		opts.Archive = archive
		logger.Info("Receipt archive enabled", "bucket", cfg.ReceiptBucket)
	}

	srv := apphttp.NewServer(":"+cfg.Port, opts)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("Listening", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	<-shutdownDone
	logger.Info("Server stopped gracefully")
}
