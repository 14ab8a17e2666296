package storage

import (
	"context"
	"fmt"
	"time"

	"welth/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UpsertBudget sets the user's monthly budget amount. Updating an existing
// budget keeps its last alert timestamp.
func (r *SQLiteRepository) UpsertBudget(ctx context.Context, userID string, amount decimal.Decimal) (core.Budget, error) {
	now := r.now()
	err := r.queries.UpsertBudget(ctx, core.Budget{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", err)
	}
	return r.GetBudget(ctx, userID)
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, userID string) (core.Budget, error) {
	b, err := r.queries.GetBudgetByUser(ctx, userID)
	if err != nil {
		return core.Budget{}, notFound(err, "budget")
	}
	return b, nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	budgets, err := r.queries.ListBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return budgets, nil
}

func (r *SQLiteRepository) MarkBudgetAlerted(ctx context.Context, budgetID string, at time.Time) error {
	if err := r.queries.SetBudgetAlertSent(ctx, budgetID, at); err != nil {
		return fmt.Errorf("stamp budget alert: %w", err)
	}
	return nil
}
