package jobs

import (
	"context"
	"time"

	"welth/internal/services"
)

const (
	BudgetAlerts     = "budget-alerts"
	RecurringTrigger = "recurring-trigger"
	MonthlyReports   = "monthly-reports"
)

// BudgetAlertsJob checks every budget against its default account.
func BudgetAlertsJob(schedule string, e *services.BudgetAlertEvaluator) Job {
	return Job{
		Name:     BudgetAlerts,
		Schedule: schedule,
		Timeout:  30 * time.Minute,
		Run: func(ctx context.Context, now time.Time) error {
			_, err := e.Evaluate(ctx, now)
			return err
		},
	}
}

// RecurringTriggerJob fans due recurring templates out to the worker queue.
func RecurringTriggerJob(schedule string, p *services.RecurringProcessor) Job {
	return Job{
		Name:     RecurringTrigger,
		Schedule: schedule,
		Timeout:  time.Hour,
		Run: func(ctx context.Context, now time.Time) error {
			_, err := p.TriggerDue(ctx, now)
			return err
		},
	}
}

// MonthlyReportsJob emails every user a report on the previous month.
func MonthlyReportsJob(schedule string, r *services.ReportService) Job {
	return Job{
		Name:     MonthlyReports,
		Schedule: schedule,
		Timeout:  2 * time.Hour,
		Run: func(ctx context.Context, now time.Time) error {
			_, err := r.SendMonthlyReports(ctx, now)
			return err
		},
	}
}
