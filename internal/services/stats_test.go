package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"welth/internal/cache"
	"welth/internal/core"
)

func TestStatsAggregator_MonthlyStats(t *testing.T) {
	store := newMemStore()
	march := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	store.addTx(core.Transaction{ID: "1", UserID: "u1", Type: core.Income, Amount: dec("1000"), Category: "salary", Date: march})
	store.addTx(core.Transaction{ID: "2", UserID: "u1", Type: core.Expense, Amount: dec("400"), Category: "rent", Date: march.AddDate(0, 0, 10)})
	store.addTx(core.Transaction{ID: "3", UserID: "u1", Type: core.Expense, Amount: dec("200"), Category: "food", Date: core.EndOfMonth(march)})
	store.addTx(core.Transaction{ID: "4", UserID: "u1", Type: core.Expense, Amount: dec("999"), Category: "food", Date: march.AddDate(0, 1, 0)})
	store.addTx(core.Transaction{ID: "5", UserID: "u2", Type: core.Expense, Amount: dec("999"), Category: "food", Date: march})

	agg := NewStatsAggregator(store, nil)
	stats, err := agg.MonthlyStats(context.Background(), "u1", march.AddDate(0, 0, 14))
	if err != nil {
		t.Fatalf("MonthlyStats() error = %v", err)
	}
	if !stats.TotalIncome.Equal(dec("1000")) || !stats.TotalExpenses.Equal(dec("600")) {
		t.Errorf("totals = %s / %s", stats.TotalIncome, stats.TotalExpenses)
	}
	if stats.TransactionCount != 3 {
		t.Errorf("count = %d, want 3", stats.TransactionCount)
	}
	if !stats.SavingsRate().Equal(dec("40")) {
		t.Errorf("savings rate = %s, want 40", stats.SavingsRate())
	}
	if _, ok := stats.ByCategory["salary"]; ok {
		t.Error("income must not appear in the category breakdown")
	}

	if _, err := agg.MonthlyStats(context.Background(), "", march); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("missing user error = %v", err)
	}
}

func TestStatsAggregator_CacheAndRevalidate(t *testing.T) {
	store := newMemStore()
	store.addAccount("u1", "acc1", "Main", "0", true)
	march := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	c := cache.NewLRUCache[core.MonthlyStats](16, time.Hour)
	agg := NewStatsAggregator(store, c)
	ledger := NewLedgerService(store, nil, agg)
	ctx := context.Background()

	before, _ := agg.MonthlyStats(ctx, "u1", march)
	if before.TransactionCount != 0 {
		t.Fatalf("count = %d, want 0", before.TransactionCount)
	}

	in := expenseInput("acc1", "20")
	in.Date = march
	if _, err := ledger.CreateTransaction(ctx, "u1", in); err != nil {
		t.Fatal(err)
	}

	after, _ := agg.MonthlyStats(ctx, "u1", march)
	if after.TransactionCount != 1 {
		t.Errorf("count after write = %d, want 1 (cache should be revalidated)", after.TransactionCount)
	}
}

// writeDuringRead commits a write and revalidates while a stats read is
// between its query and its cache fill.
type writeDuringRead struct {
	Transactions
	during func()
}

func (s *writeDuringRead) ListTransactionsInRange(ctx context.Context, userID string, from, to time.Time) ([]core.Transaction, error) {
	txs, err := s.Transactions.ListTransactionsInRange(ctx, userID, from, to)
	if f := s.during; f != nil {
		s.during = nil
		f()
	}
	return txs, err
}

func TestStatsAggregator_StaleReadIsNotCached(t *testing.T) {
	store := newMemStore()
	march := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	racing := &writeDuringRead{Transactions: store}
	agg := NewStatsAggregator(racing, cache.NewLRUCache[core.MonthlyStats](16, time.Hour))
	ctx := context.Background()

	racing.during = func() {
		store.addTx(core.Transaction{ID: "late", UserID: "u1", Type: core.Expense, Amount: dec("20"), Category: "food", Date: march})
		if err := agg.Revalidate(ctx, "u1"); err != nil {
			t.Fatal(err)
		}
	}
	if stale, _ := agg.MonthlyStats(ctx, "u1", march); stale.TransactionCount != 0 {
		t.Fatalf("first read count = %d, want 0", stale.TransactionCount)
	}

	fresh, err := agg.MonthlyStats(ctx, "u1", march)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.TransactionCount != 1 {
		t.Errorf("count after concurrent write = %d, want 1", fresh.TransactionCount)
	}
}

func TestStatsAggregator_CachedStatsAreCopies(t *testing.T) {
	store := newMemStore()
	march := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	store.addTx(core.Transaction{ID: "1", UserID: "u1", Type: core.Expense, Amount: dec("20"), Category: "food", Date: march})
	agg := NewStatsAggregator(store, cache.NewLRUCache[core.MonthlyStats](16, time.Hour))
	ctx := context.Background()

	first, _ := agg.MonthlyStats(ctx, "u1", march)
	first.ByCategory["food"] = dec("999")
	delete(first.ByCategory, "food")
	first.ByCategory["hacked"] = dec("1")

	second, _ := agg.MonthlyStats(ctx, "u1", march)
	second.ByCategory["other"] = dec("5")

	third, _ := agg.MonthlyStats(ctx, "u1", march)
	if len(third.ByCategory) != 1 || !third.ByCategory["food"].Equal(dec("20")) {
		t.Errorf("cached categories = %v, want only food 20", third.ByCategory)
	}
}
