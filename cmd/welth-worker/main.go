// Command welth-worker runs the background side of welth: the cron schedule
// for recurring transactions, budget alerts and monthly reports, plus the
// AMQP consumer that processes queued recurring items.
//
// Usage:
//
//	welth-worker            run the scheduler and consumer until signalled
//	welth-worker run <job>  run one job immediately and exit
//	welth-worker jobs       list job names
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"welth/internal/ai"
	"welth/internal/cache"
	"welth/internal/cli"
	"welth/internal/config"
	"welth/internal/core"
	"welth/internal/jobs"
	applog "welth/internal/log"
	"welth/internal/middleware/ratelimit"
	"welth/internal/services"
	"welth/internal/storage"
	"welth/internal/worker"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentWorker)

	ctx, stop := cli.SignalContext()
	defer stop()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	amqpClient, err := cli.NewAMQPClient(cfg)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	var publisher services.Publisher
	if amqpClient != nil {
		defer amqpClient.Close()
		publisher = amqpClient
	} else {
		logger.Info("AMQP disabled - recurring transactions are processed inline")
	}

	d, err := buildDeps(ctx, cfg, repo, publisher)
	if err != nil {
		logger.Error("Failed to initialize worker", "error", err)
		os.Exit(1)
	}
	defer d.throttle.Stop()

	scheduler, err := jobs.NewScheduler(
		jobs.RecurringTriggerJob(cfg.RecurringSchedule, d.recurring),
		jobs.BudgetAlertsJob(cfg.BudgetAlertSchedule, d.alerts),
		jobs.MonthlyReportsJob(cfg.MonthlyReportSchedule, d.reports),
	)
	if err != nil {
		logger.Error("Invalid job schedule", "error", err)
		os.Exit(1)
	}

	args := os.Args[1:]
	switch {
	case len(args) == 0:
	case args[0] == "jobs":
		fmt.Println(strings.Join(scheduler.Names(), "\n"))
		return
	case args[0] == "run" && len(args) == 2:
		if err := scheduler.RunNow(ctx, args[1]); err != nil {
			logger.Error("Job failed", applog.FieldJob, args[1], "error", err)
			os.Exit(1)
		}
		return
	default:
		fmt.Fprintln(os.Stderr, "usage: welth-worker [jobs | run <job>]")
		os.Exit(2)
	}

	logger.Info("Starting welth worker", "jobs", scheduler.Names(), "amqp", amqpClient != nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := scheduler.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return scheduler.Stop(shutdownCtx)
	})
	if amqpClient != nil {
		rw := worker.NewRecurringWorker(d.recurring)
		g.Go(func() error {
			err := amqpClient.ConsumeRecurringProcess(gctx, rw.HandleRecurringMessage)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}

type deps struct {
	recurring *services.RecurringProcessor
	alerts    *services.BudgetAlertEvaluator
	reports   *services.ReportService
	throttle  *ratelimit.Limiter
}

func buildDeps(ctx context.Context, cfg *config.Config, repo *storage.SQLiteRepository, publisher services.Publisher) (*deps, error) {
	notifier, err := cli.NewNotifier(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("notifier: %w", err)
	}

	stats := services.NewStatsAggregator(repo, cache.NewLRUCache[core.MonthlyStats](cfg.StatsCacheSize, cfg.StatsCacheTTL))

	throttle := ratelimit.NewLimiter(ratelimit.Config{
		Requests: cfg.RecurringThrottle,
		Period:   cfg.RecurringWindow,
	})

	var insights services.InsightGenerator
	aiClient, err := cli.NewAIClient(ctx, cfg)
	if err != nil {
		throttle.Stop()
		return nil, fmt.Errorf("ai client: %w", err)
	}
	if aiClient != nil {
		insights = aiClient
	}

	return &deps{
		recurring: services.NewRecurringProcessor(repo, publisher, throttle, stats),
		alerts:    services.NewBudgetAlertEvaluator(repo, notifier),
		reports:   services.NewReportService(repo, stats, insights, notifier, ai.FallbackInsights),
		throttle:  throttle,
	}, nil
}
