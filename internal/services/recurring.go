package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"welth/internal/core"
)

// RecurringProcessor turns due recurring templates into real transactions.
// The daily scan fans out one work item per template; each item is processed
// independently and throttled per user.
type RecurringProcessor struct {
	store       Recurring
	publisher   Publisher
	throttle    Throttle
	revalidator Revalidator
}

// NewRecurringProcessor wires the processor. Without a publisher TriggerDue
// processes items inline. throttle and revalidator may be nil.
func NewRecurringProcessor(store Recurring, publisher Publisher, throttle Throttle, revalidator Revalidator) *RecurringProcessor {
	return &RecurringProcessor{
		store:       store,
		publisher:   publisher,
		throttle:    throttle,
		revalidator: revalidator,
	}
}

// TriggerSummary reports what one due-scan did.
type TriggerSummary struct {
	Due       int
	Published int
	Processed int
	Failed    int
}

// TriggerDue scans for due templates and enqueues one item per template.
func (p *RecurringProcessor) TriggerDue(ctx context.Context, now time.Time) (TriggerSummary, error) {
	due, err := p.store.ListDueRecurring(ctx, now)
	if err != nil {
		return TriggerSummary{}, fmt.Errorf("scan due recurring: %w", err)
	}
	summary := TriggerSummary{Due: len(due)}

	if p.publisher == nil {
		slog.WarnContext(ctx, "No broker configured, processing recurring transactions inline", "due", len(due))
		processed, failed := p.processAll(ctx, due, now)
		summary.Processed, summary.Failed = processed, failed
		return summary, nil
	}

	for _, t := range due {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := p.publisher.PublishRecurringProcess(ctx, t.ID, t.UserID); err != nil {
			summary.Failed++
			slog.ErrorContext(ctx, "Failed to publish recurring item",
				"transaction_id", t.ID,
				"user_id", t.UserID,
				"error", err)
			continue
		}
		summary.Published++
	}

	slog.InfoContext(ctx, "Recurring due-scan complete",
		"due", summary.Due,
		"published", summary.Published,
		"failed", summary.Failed)
	return summary, nil
}

// ProcessDue processes every due template in this process.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (TriggerSummary, error) {
	due, err := p.store.ListDueRecurring(ctx, now)
	if err != nil {
		return TriggerSummary{}, fmt.Errorf("scan due recurring: %w", err)
	}
	processed, failed := p.processAll(ctx, due, now)
	return TriggerSummary{Due: len(due), Processed: processed, Failed: failed}, nil
}

func (p *RecurringProcessor) processAll(ctx context.Context, due []core.Transaction, now time.Time) (processed, failed int) {
	for _, t := range due {
		if ctx.Err() != nil {
			return processed, failed
		}
		ok, err := p.ProcessOne(ctx, t.UserID, t.ID, now)
		switch {
		case err != nil:
			failed++
			slog.ErrorContext(ctx, "Failed to process recurring transaction",
				"transaction_id", t.ID,
				"user_id", t.UserID,
				"error", err)
		case ok:
			processed++
		}
	}
	slog.InfoContext(ctx, "Recurring processing complete",
		"due", len(due),
		"processed", processed,
		"failed", failed)
	return processed, failed
}

// ProcessOne generates one occurrence of templateID if it is still due. It
// returns false without error when the template is gone or no longer due.
func (p *RecurringProcessor) ProcessOne(ctx context.Context, userID, templateID string, now time.Time) (bool, error) {
	if userID == "" || templateID == "" {
		return false, fmt.Errorf("%w: recurring item needs user and transaction ids", core.ErrInvalidInput)
	}
	if p.throttle != nil {
		if err := p.throttle.Wait(ctx, userID); err != nil {
			return false, fmt.Errorf("throttle: %w", err)
		}
	}

	created, ok, err := p.store.ProcessRecurring(ctx, userID, templateID, now)
	if errors.Is(err, core.ErrNotFound) {
		slog.InfoContext(ctx, "Recurring template no longer exists", "transaction_id", templateID)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !ok {
		slog.DebugContext(ctx, "Recurring template not due", "transaction_id", templateID)
		return false, nil
	}

	slog.InfoContext(ctx, "Created transaction from recurring template",
		"template_id", templateID,
		"transaction_id", created.ID,
		"user_id", userID,
		"amount", created.Amount.String())

	if p.revalidator != nil {
		if err := p.revalidator.Revalidate(ctx, userID); err != nil {
			slog.WarnContext(ctx, "Revalidation failed after recurring copy",
				"user_id", userID,
				"error", fmt.Errorf("%w: %w", core.ErrRevalidation, err))
		}
	}
	return true, nil
}
