package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"welth/internal/core"
	"welth/internal/notify"
)

// ReportService mails every user a summary of the previous month.
type ReportService struct {
	users    Users
	stats    *StatsAggregator
	insights InsightGenerator
	notifier Notifier
	fallback func(core.MonthlyStats) []string
}

// NewReportService wires the monthly report job. insights may be nil, in which
// case fallback insights are always used.
func NewReportService(users Users, stats *StatsAggregator, insights InsightGenerator, notifier Notifier, fallback func(core.MonthlyStats) []string) *ReportService {
	return &ReportService{
		users:    users,
		stats:    stats,
		insights: insights,
		notifier: notifier,
		fallback: fallback,
	}
}

type ReportSummary struct {
	Users  int
	Sent   int
	Failed int
}

// SendMonthlyReports reports on the calendar month before now.
func (s *ReportService) SendMonthlyReports(ctx context.Context, now time.Time) (ReportSummary, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return ReportSummary{}, fmt.Errorf("list users: %w", err)
	}
	month := core.PreviousMonth(now)

	summary := ReportSummary{Users: len(users)}
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := s.sendOne(ctx, u, month); err != nil {
			summary.Failed++
			slog.ErrorContext(ctx, "Monthly report failed", "user_id", u.ID, "error", err)
			continue
		}
		summary.Sent++
	}

	slog.InfoContext(ctx, "Monthly reports complete",
		"month", month.Format("2006-01"),
		"users", summary.Users,
		"sent", summary.Sent,
		"failed", summary.Failed)
	return summary, nil
}

func (s *ReportService) sendOne(ctx context.Context, u core.User, month time.Time) error {
	stats, err := s.stats.MonthlyStats(ctx, u.ID, month)
	if err != nil {
		return err
	}
	monthName := month.Month().String()

	return s.notifier.Dispatch(ctx, notify.Notification{
		Kind:     notify.KindMonthlyReport,
		To:       u.Email,
		UserName: u.Name,
		Data: notify.MonthlyReportData{
			Month:    monthName,
			Year:     month.Year(),
			Stats:    stats,
			Insights: s.insightsFor(ctx, stats, monthName),
		},
	})
}

func (s *ReportService) insightsFor(ctx context.Context, stats core.MonthlyStats, monthName string) []string {
	if s.insights != nil {
		out, err := s.insights.GenerateInsights(ctx, stats, monthName)
		if err == nil {
			return out
		}
		slog.WarnContext(ctx, "Falling back to default insights", "error", err)
	}
	if s.fallback == nil {
		return nil
	}
	return s.fallback(stats)
}
