package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount decimal.Decimal
}

// MonthlyStats summarizes one user's transactions over a calendar month.
type MonthlyStats struct {
	Month            time.Time // first instant of the month
	TotalIncome      decimal.Decimal
	TotalExpenses    decimal.Decimal
	ByCategory       map[string]decimal.Decimal // expenses only
	TransactionCount int
}

// NewMonthlyStats returns empty stats for month.
func NewMonthlyStats(month time.Time) MonthlyStats {
	return MonthlyStats{
		Month:         StartOfMonth(month),
		TotalIncome:   decimal.Zero,
		TotalExpenses: decimal.Zero,
		ByCategory:    make(map[string]decimal.Decimal),
	}
}

// Clone returns a copy that shares no map with s.
func (s MonthlyStats) Clone() MonthlyStats {
	out := s
	out.ByCategory = make(map[string]decimal.Decimal, len(s.ByCategory))
	for k, v := range s.ByCategory {
		out.ByCategory[k] = v
	}
	return out
}

// Add folds one transaction into the totals.
func (s *MonthlyStats) Add(t Transaction) {
	switch t.Type {
	case Income:
		s.TotalIncome = s.TotalIncome.Add(t.Amount)
	case Expense:
		s.TotalExpenses = s.TotalExpenses.Add(t.Amount)
		s.ByCategory[t.Category] = s.ByCategory[t.Category].Add(t.Amount)
	}
	s.TransactionCount++
}

func (s MonthlyStats) Savings() decimal.Decimal {
	return s.TotalIncome.Sub(s.TotalExpenses)
}

// SavingsRate is savings as a percentage of income, zero without income.
func (s MonthlyStats) SavingsRate() decimal.Decimal {
	return Percentage(s.Savings(), s.TotalIncome)
}

// Categories returns the expense breakdown sorted by amount, largest first.
// Ties are broken by name so the order is stable.
func (s MonthlyStats) Categories() []CategoryAmount {
	out := make([]CategoryAmount, 0, len(s.ByCategory))
	for name, amount := range s.ByCategory {
		out = append(out, CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// TopCategory returns the largest expense category, if any.
func (s MonthlyStats) TopCategory() (CategoryAmount, bool) {
	cats := s.Categories()
	if len(cats) == 0 {
		return CategoryAmount{}, false
	}
	return cats[0], true
}
