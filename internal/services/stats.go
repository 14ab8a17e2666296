package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"welth/internal/cache"
	"welth/internal/core"
)

// StatsAggregator computes per-month income and expense summaries. Results
// are cached per user and month until the user writes again.
type StatsAggregator struct {
	store Transactions
	cache cache.Cache[core.MonthlyStats]

	// generations counts revalidations per user; a read only fills the
	// cache if no revalidation happened while it was computing.
	mu          sync.Mutex
	generations map[string]uint64
}

// NewStatsAggregator wires the aggregator. c may be nil to disable caching.
func NewStatsAggregator(store Transactions, c cache.Cache[core.MonthlyStats]) *StatsAggregator {
	return &StatsAggregator{store: store, cache: c, generations: make(map[string]uint64)}
}

func (a *StatsAggregator) generation(userID string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.generations[userID]
}

func statsKeyPrefix(userID string) string { return "stats:" + userID + ":" }

func statsKey(userID string, month time.Time) string {
	return statsKeyPrefix(userID) + month.Format("2006-01")
}

// MonthlyStats aggregates the user's transactions dated within month.
func (a *StatsAggregator) MonthlyStats(ctx context.Context, userID string, month time.Time) (core.MonthlyStats, error) {
	if err := requireUser(userID); err != nil {
		return core.MonthlyStats{}, err
	}
	from, to := core.MonthRange(month)
	key := statsKey(userID, from)
	if a.cache != nil {
		if s, ok := a.cache.Get(key); ok {
			return s.Clone(), nil
		}
	}
	gen := a.generation(userID)

	txs, err := a.store.ListTransactionsInRange(ctx, userID, from, to)
	if err != nil {
		return core.MonthlyStats{}, fmt.Errorf("monthly stats: %w", err)
	}
	stats := core.NewMonthlyStats(from)
	for _, t := range txs {
		stats.Add(t)
	}

	if a.cache != nil {
		a.mu.Lock()
		if a.generations[userID] == gen {
			a.cache.Set(key, stats.Clone())
		}
		a.mu.Unlock()
	}
	return stats, nil
}

// Revalidate drops every cached month for userID.
func (a *StatsAggregator) Revalidate(_ context.Context, userID string) error {
	if a.cache == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.generations[userID]++
	a.cache.DeletePrefix(statsKeyPrefix(userID))
	return nil
}
