package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"

	"welth/internal/core"

	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templatesFS embed.FS

type Renderer struct {
	tmpl   *template.Template
	appURL string
	charts bool
}

// NewRenderer parses the embedded email templates. appURL is linked from the
// call-to-action buttons; withCharts attaches the category pie chart to
// monthly reports.
func NewRenderer(appURL string, withCharts bool) (*Renderer, error) {
	tmpl, err := template.New("email").Funcs(template.FuncMap{
		"money":   core.FormatMoney,
		"percent": func(d decimal.Decimal) string { return d.StringFixed(2) },
		"clamp": func(d decimal.Decimal) string {
			if d.GreaterThan(decimal.NewFromInt(100)) {
				return "100"
			}
			return d.StringFixed(1)
		},
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	return &Renderer{tmpl: tmpl, appURL: appURL, charts: withCharts}, nil
}

type categoryRow struct {
	Name   string
	Amount decimal.Decimal
	Share  string
	Color  string
}

type reportView struct {
	Brand    string
	UserName string
	Month    string
	Year     int
	Income   decimal.Decimal
	Expenses decimal.Decimal
	Savings  decimal.Decimal
	Rate     decimal.Decimal
	Rows     []categoryRow
	Insights []string
	ChartCID string
	AppURL   string
}

type alertView struct {
	Brand       string
	UserName    string
	AccountName string
	Category    string
	Percentage  decimal.Decimal
	Budget      decimal.Decimal
	Spent       decimal.Decimal
	Remaining   decimal.Decimal
	Over        bool
	DaysLeft    int
	Color       string
	AppURL      string
}

// Render produces the email for n without sending it.
func (r *Renderer) Render(n Notification) (Message, error) {
	switch n.Kind {
	case KindMonthlyReport:
		data, ok := n.Data.(MonthlyReportData)
		if !ok {
			return Message{}, fmt.Errorf("%w: monthly report requires MonthlyReportData", core.ErrInvalidInput)
		}
		return r.renderReport(n, data)
	case KindBudgetAlert:
		data, ok := n.Data.(BudgetAlertData)
		if !ok {
			return Message{}, fmt.Errorf("%w: budget alert requires BudgetAlertData", core.ErrInvalidInput)
		}
		return r.renderAlert(n, data)
	default:
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownKind, n.Kind)
	}
}

// MonthlyReportSubject is the subject line for a report covering month/year.
func MonthlyReportSubject(month string, year int) string {
	return fmt.Sprintf("Your Monthly Financial Report - %s %d", month, year)
}

// BudgetAlertSubject is the subject line for an alert on accountName.
func BudgetAlertSubject(accountName string) string {
	return "Budget Alert for " + accountName
}

func (r *Renderer) renderReport(n Notification, data MonthlyReportData) (Message, error) {
	stats := data.Stats
	view := reportView{
		Brand:    Brand,
		UserName: displayName(n.UserName),
		Month:    data.Month,
		Year:     data.Year,
		Income:   stats.TotalIncome,
		Expenses: stats.TotalExpenses,
		Savings:  stats.Savings(),
		Rate:     stats.SavingsRate(),
		Insights: data.Insights,
		AppURL:   r.appURL,
	}
	for _, c := range stats.Categories() {
		share := core.Percentage(c.Amount, stats.TotalExpenses)
		view.Rows = append(view.Rows, categoryRow{
			Name:   c.Name,
			Amount: c.Amount,
			Share:  share.StringFixed(1),
			Color:  categoryColor(share),
		})
	}

	msg := Message{To: n.To, Subject: MonthlyReportSubject(data.Month, data.Year)}
	if r.charts {
		png, err := CategoryPie(stats)
		if err != nil {
			// the report is still useful without the chart
			slog.Warn("Skipping category chart", "error", err)
		} else if png != nil {
			view.ChartCID = chartContentID
			msg.Attachments = append(msg.Attachments, Attachment{
				ContentID:   chartContentID,
				Filename:    "categories.png",
				ContentType: "image/png",
				Data:        png,
			})
		}
	}

	html, err := r.execute("monthly_report.html", view)
	if err != nil {
		return Message{}, err
	}
	msg.HTML = html
	return msg, nil
}

func (r *Renderer) renderAlert(n Notification, data BudgetAlertData) (Message, error) {
	category := data.Category
	if category == "" {
		category = "Overall Budget"
	}
	view := alertView{
		Brand:       Brand,
		UserName:    displayName(n.UserName),
		AccountName: data.AccountName,
		Category:    category,
		Percentage:  data.PercentageUsed,
		Budget:      data.BudgetAmount,
		Spent:       data.TotalExpenses,
		Remaining:   data.Remaining.Abs(),
		Over:        data.Remaining.IsNegative(),
		DaysLeft:    data.DaysLeft,
		Color:       AlertColor(data.PercentageUsed),
		AppURL:      r.appURL,
	}

	html, err := r.execute("budget_alert.html", view)
	if err != nil {
		return Message{}, err
	}
	return Message{To: n.To, Subject: BudgetAlertSubject(data.AccountName), HTML: html}, nil
}

func (r *Renderer) execute(name string, view any) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, view); err != nil {
		return "", fmt.Errorf("execute %s: %w", name, err)
	}
	return buf.String(), nil
}

func displayName(name string) string {
	if name == "" {
		return "there"
	}
	return name
}
