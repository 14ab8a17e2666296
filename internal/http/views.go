package http

import (
	"time"

	"welth/internal/ai"
	"welth/internal/core"
	"welth/internal/services"

	"github.com/shopspring/decimal"
)

// Amounts are rendered as fixed two-place strings so clients never see
// binary floating point.
func money(d decimal.Decimal) string { return d.StringFixed(2) }

type accountView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Balance   string    `json:"balance"`
	IsDefault bool      `json:"isDefault"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newAccountView(a core.Account) accountView {
	return accountView{
		ID:        a.ID,
		Name:      a.Name,
		Type:      string(a.Type),
		Balance:   money(a.Balance),
		IsDefault: a.IsDefault,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

type transactionView struct {
	ID                string     `json:"id"`
	AccountID         string     `json:"accountId"`
	Type              string     `json:"type"`
	Amount            string     `json:"amount"`
	Description       string     `json:"description"`
	Date              time.Time  `json:"date"`
	Category          string     `json:"category"`
	ReceiptURL        string     `json:"receiptUrl,omitempty"`
	IsRecurring       bool       `json:"isRecurring"`
	RecurringInterval string     `json:"recurringInterval,omitempty"`
	NextRecurringDate *time.Time `json:"nextRecurringDate,omitempty"`
	LastProcessed     *time.Time `json:"lastProcessed,omitempty"`
	Status            string     `json:"status"`
	CreatedAt         time.Time  `json:"createdAt"`
}

func newTransactionView(t core.Transaction) transactionView {
	return transactionView{
		ID:                t.ID,
		AccountID:         t.AccountID,
		Type:              string(t.Type),
		Amount:            money(t.Amount),
		Description:       t.Description,
		Date:              t.Date,
		Category:          t.Category,
		ReceiptURL:        t.ReceiptURL,
		IsRecurring:       t.IsRecurring,
		RecurringInterval: string(t.RecurringInterval),
		NextRecurringDate: t.NextRecurringDate,
		LastProcessed:     t.LastProcessed,
		Status:            string(t.Status),
		CreatedAt:         t.CreatedAt,
	}
}

func newTransactionViews(txs []core.Transaction) []transactionView {
	out := make([]transactionView, 0, len(txs))
	for _, t := range txs {
		out = append(out, newTransactionView(t))
	}
	return out
}

type accountDetailView struct {
	accountView
	TransactionCount int               `json:"transactionCount"`
	Transactions     []transactionView `json:"transactions"`
}

func newAccountDetailView(d services.AccountDetail) accountDetailView {
	return accountDetailView{
		accountView:      newAccountView(d.Account),
		TransactionCount: d.Count(),
		Transactions:     newTransactionViews(d.Transactions),
	}
}

type categoryView struct {
	Category string `json:"category"`
	Amount   string `json:"amount"`
}

type monthlyStatsView struct {
	Year             int            `json:"year"`
	Month            int            `json:"month"`
	TotalIncome      string         `json:"totalIncome"`
	TotalExpenses    string         `json:"totalExpenses"`
	Savings          string         `json:"savings"`
	SavingsRate      string         `json:"savingsRate"`
	TransactionCount int            `json:"transactionCount"`
	ByCategory       []categoryView `json:"byCategory"`
}

func newMonthlyStatsView(s core.MonthlyStats) monthlyStatsView {
	v := monthlyStatsView{
		Year:             s.Month.Year(),
		Month:            int(s.Month.Month()),
		TotalIncome:      money(s.TotalIncome),
		TotalExpenses:    money(s.TotalExpenses),
		Savings:          money(s.Savings()),
		SavingsRate:      s.SavingsRate().StringFixed(1),
		TransactionCount: s.TransactionCount,
		ByCategory:       []categoryView{},
	}
	for _, c := range s.Categories() {
		v.ByCategory = append(v.ByCategory, categoryView{Category: c.Name, Amount: money(c.Amount)})
	}
	return v
}

type budgetView struct {
	ID            string     `json:"id"`
	Amount        string     `json:"amount"`
	LastAlertSent *time.Time `json:"lastAlertSent,omitempty"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func newBudgetView(b core.Budget) budgetView {
	return budgetView{ID: b.ID, Amount: money(b.Amount), LastAlertSent: b.LastAlertSent, UpdatedAt: b.UpdatedAt}
}

type budgetStatusView struct {
	Budget          *budgetView `json:"budget"`
	CurrentExpenses string      `json:"currentExpenses"`
	PercentageUsed  string      `json:"percentageUsed"`
	AccountID       string      `json:"accountId,omitempty"`
}

func newBudgetStatusView(s services.BudgetStatus) budgetStatusView {
	v := budgetStatusView{
		CurrentExpenses: money(s.CurrentExpense),
		PercentageUsed:  "0.00",
		AccountID:       s.AccountID,
	}
	if s.Budget != nil {
		b := newBudgetView(*s.Budget)
		v.Budget = &b
		v.PercentageUsed = core.Percentage(s.CurrentExpense, s.Budget.Amount).StringFixed(2)
	}
	return v
}

type receiptView struct {
	Amount       string    `json:"amount"`
	Date         time.Time `json:"date"`
	Description  string    `json:"description"`
	MerchantName string    `json:"merchantName"`
	Category     string    `json:"category"`
	ReceiptURL   string    `json:"receiptUrl,omitempty"`
}

func newReceiptView(d ai.ReceiptData, url string) receiptView {
	return receiptView{
		Amount:       money(d.Amount),
		Date:         d.Date,
		Description:  d.Description,
		MerchantName: d.MerchantName,
		Category:     d.Category,
		ReceiptURL:   url,
	}
}
