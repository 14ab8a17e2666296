// Package notify renders and delivers user emails: the monthly report and the
// budget alert. Rendering is pure; delivery goes through a Sender so the
// transport can be swapped between Gmail and a logging sink.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"welth/internal/core"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindMonthlyReport Kind = "monthly-report"
	KindBudgetAlert   Kind = "budget-alert"
)

const Brand = "Welth"

var ErrUnknownKind = errors.New("unknown notification kind")

// Notification is one email request. Data must be MonthlyReportData for
// KindMonthlyReport and BudgetAlertData for KindBudgetAlert.
type Notification struct {
	Kind     Kind
	To       string
	UserName string
	Data     any
}

type MonthlyReportData struct {
	Month    string // e.g. "March"
	Year     int
	Stats    core.MonthlyStats
	Insights []string
}

type BudgetAlertData struct {
	AccountName    string
	Category       string
	PercentageUsed decimal.Decimal
	BudgetAmount   decimal.Decimal
	TotalExpenses  decimal.Decimal
	Remaining      decimal.Decimal
	DaysLeft       int
}

type Attachment struct {
	ContentID   string
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a rendered email ready for a Sender.
type Message struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment // inline, referenced from HTML by cid:
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Dispatcher struct {
	sender   Sender
	renderer *Renderer
}

func NewDispatcher(sender Sender, renderer *Renderer) *Dispatcher {
	return &Dispatcher{sender: sender, renderer: renderer}
}

// Dispatch renders n and hands it to the sender. Send failures wrap
// core.ErrExternalService.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) error {
	if n.To == "" {
		return fmt.Errorf("%w: notification has no recipient", core.ErrInvalidInput)
	}

	start := time.Now()
	msg, err := d.renderer.Render(n)
	if err != nil {
		return fmt.Errorf("render %s: %w", n.Kind, err)
	}

	if err := d.sender.Send(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to send email",
			"kind", n.Kind,
			"to", n.To,
			"error", err)
		return fmt.Errorf("%w: send %s: %v", core.ErrExternalService, n.Kind, err)
	}

	slog.InfoContext(ctx, "Email sent",
		"kind", n.Kind,
		"to", n.To,
		"subject", msg.Subject,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// AlertColor picks the banner color for a budget usage percentage.
func AlertColor(percentageUsed decimal.Decimal) string {
	switch {
	case percentageUsed.GreaterThanOrEqual(decimal.NewFromInt(90)):
		return "#ef4444"
	case percentageUsed.GreaterThanOrEqual(decimal.NewFromInt(75)):
		return "#f59e0b"
	default:
		return "#10b981"
	}
}

// categoryColor colors a category bar by its share of total expenses.
func categoryColor(share decimal.Decimal) string {
	switch {
	case share.GreaterThan(decimal.NewFromInt(30)):
		return "#ef4444"
	case share.GreaterThan(decimal.NewFromInt(20)):
		return "#f59e0b"
	default:
		return "#10b981"
	}
}
