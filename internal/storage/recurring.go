package storage

import (
	"context"
	"fmt"
	"time"

	"welth/internal/core"

	"github.com/google/uuid"
)

// ListDueRecurring returns every recurring template whose next occurrence is
// at or before now, plus templates that were never processed.
func (r *SQLiteRepository) ListDueRecurring(ctx context.Context, now time.Time) ([]core.Transaction, error) {
	txs, err := r.queries.ListDueRecurring(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list due recurring transactions: %w", err)
	}
	return txs, nil
}

// ProcessRecurring generates one occurrence of a recurring template. The due
// guard is re-checked inside the database transaction, so a template that a
// concurrent run already advanced is left alone and false is returned.
func (r *SQLiteRepository) ProcessRecurring(ctx context.Context, userID, templateID string, now time.Time) (core.Transaction, bool, error) {
	var (
		created   core.Transaction
		processed bool
	)
	err := r.withTx(ctx, func(q *Queries) error {
		template, err := q.GetTransaction(ctx, templateID, userID)
		if err != nil {
			return notFound(err, "recurring transaction "+templateID)
		}
		if !template.IsDue(now) {
			return nil
		}

		next, err := core.NextRecurringDate(now, template.RecurringInterval)
		if err != nil {
			return fmt.Errorf("next date of %s: %w", templateID, err)
		}

		stamp := r.now()
		created = template.RecurringCopy(now)
		created.ID = uuid.NewString()
		created.CreatedAt, created.UpdatedAt = stamp, stamp

		if err := q.CreateTransaction(ctx, created); err != nil {
			return fmt.Errorf("insert recurring copy: %w", err)
		}
		if err := applyDelta(ctx, q, created.AccountID, created.Delta(), stamp); err != nil {
			return err
		}
		if err := q.MarkRecurringProcessed(ctx, template.ID, now, next); err != nil {
			return fmt.Errorf("mark recurring processed: %w", err)
		}
		processed = true
		return nil
	})
	if err != nil {
		return core.Transaction{}, false, err
	}
	return created, processed, nil
}
