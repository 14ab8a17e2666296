package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"welth/internal/core"
	"welth/internal/notify"

	"github.com/shopspring/decimal"
)

// DefaultAlertThreshold is the share of the budget, in percent, at which an
// alert is sent.
var DefaultAlertThreshold = decimal.NewFromInt(80)

// BudgetAlertEvaluator checks every budget against spending on the owner's
// default account and sends at most one alert per calendar month.
type BudgetAlertEvaluator struct {
	store     Store
	notifier  Notifier
	threshold decimal.Decimal
}

func NewBudgetAlertEvaluator(store Store, notifier Notifier) *BudgetAlertEvaluator {
	return &BudgetAlertEvaluator{store: store, notifier: notifier, threshold: DefaultAlertThreshold}
}

type AlertSummary struct {
	Checked int
	Alerted int
	Skipped int // no default account
	Failed  int
}

// Evaluate runs one pass over all budgets. Failures on one budget are logged
// and do not stop the pass.
func (e *BudgetAlertEvaluator) Evaluate(ctx context.Context, now time.Time) (AlertSummary, error) {
	budgets, err := e.store.ListBudgets(ctx)
	if err != nil {
		return AlertSummary{}, fmt.Errorf("list budgets: %w", err)
	}

	var summary AlertSummary
	for _, b := range budgets {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Checked++

		alerted, err := e.evaluateOne(ctx, b, now)
		switch {
		case errors.Is(err, errNoDefaultAccount):
			summary.Skipped++
		case err != nil:
			summary.Failed++
			slog.ErrorContext(ctx, "Budget check failed",
				"budget_id", b.ID,
				"user_id", b.UserID,
				"error", err)
		case alerted:
			summary.Alerted++
		}
	}

	slog.InfoContext(ctx, "Budget alert pass complete",
		"checked", summary.Checked,
		"alerted", summary.Alerted,
		"skipped", summary.Skipped,
		"failed", summary.Failed)
	return summary, nil
}

var errNoDefaultAccount = errors.New("user has no default account")

// ShouldAlert reports whether usage crossed the threshold and no alert went
// out yet this calendar month.
func ShouldAlert(percentageUsed, threshold decimal.Decimal, lastAlert *time.Time, now time.Time) bool {
	if percentageUsed.LessThan(threshold) {
		return false
	}
	return lastAlert == nil || core.IsNewMonth(*lastAlert, now)
}

func (e *BudgetAlertEvaluator) evaluateOne(ctx context.Context, b core.Budget, now time.Time) (bool, error) {
	acc, err := e.store.GetDefaultAccount(ctx, b.UserID)
	if errors.Is(err, core.ErrNotFound) {
		return false, errNoDefaultAccount
	}
	if err != nil {
		return false, err
	}

	spent, err := e.store.SumExpenses(ctx, acc.ID, core.StartOfMonth(now), now)
	if err != nil {
		return false, err
	}
	pct := core.Percentage(spent, b.Amount)
	if !ShouldAlert(pct, e.threshold, b.LastAlertSent, now) {
		return false, nil
	}

	user, err := e.store.GetUser(ctx, b.UserID)
	if err != nil {
		return false, err
	}

	err = e.notifier.Dispatch(ctx, notify.Notification{
		Kind:     notify.KindBudgetAlert,
		To:       user.Email,
		UserName: user.Name,
		Data: notify.BudgetAlertData{
			AccountName:    acc.Name,
			Category:       "Overall Budget",
			PercentageUsed: pct.Round(2),
			BudgetAmount:   b.Amount,
			TotalExpenses:  spent,
			Remaining:      b.Amount.Sub(spent),
			DaysLeft:       core.DaysLeftInMonth(now),
		},
	})
	if err != nil {
		return false, fmt.Errorf("send budget alert: %w", err)
	}

	if err := e.store.MarkBudgetAlerted(ctx, b.ID, now); err != nil {
		return false, err
	}
	slog.InfoContext(ctx, "Budget alert sent",
		"budget_id", b.ID,
		"user_id", b.UserID,
		"percentage_used", pct.StringFixed(2))
	return true, nil
}
