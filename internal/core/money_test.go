package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.5", true},
		{"-1", "", false},
		{"+1", "", false},
		{"0", "", false},
		{"0.001", "", false},
		{"1e3", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestFormatMoney(t *testing.T) {
	if got := FormatMoney(decimal.RequireFromString("1234.5")); got != "₹1234.50" {
		t.Errorf("got %q", got)
	}
	if got := FormatMoney(decimal.RequireFromString("-3")); got != "-₹3.00" {
		t.Errorf("got %q", got)
	}
}

func TestMonthlyStats(t *testing.T) {
	month := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	s := NewMonthlyStats(month)
	s.Add(Transaction{Type: Income, Amount: decimal.NewFromInt(1000), Category: "salary"})
	s.Add(Transaction{Type: Expense, Amount: decimal.NewFromInt(500), Category: "groceries"})
	s.Add(Transaction{Type: Expense, Amount: decimal.NewFromInt(100), Category: "groceries"})

	if !s.TotalIncome.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("income = %s", s.TotalIncome)
	}
	if !s.TotalExpenses.Equal(decimal.NewFromInt(600)) {
		t.Errorf("expenses = %s", s.TotalExpenses)
	}
	if len(s.ByCategory) != 1 || !s.ByCategory["groceries"].Equal(decimal.NewFromInt(600)) {
		t.Errorf("by category = %v", s.ByCategory)
	}
	if s.TransactionCount != 3 {
		t.Errorf("count = %d", s.TransactionCount)
	}
	if !s.Savings().Equal(decimal.NewFromInt(400)) {
		t.Errorf("savings = %s", s.Savings())
	}
	if !s.SavingsRate().Equal(decimal.NewFromInt(40)) {
		t.Errorf("savings rate = %s", s.SavingsRate())
	}
	top, ok := s.TopCategory()
	if !ok || top.Name != "groceries" {
		t.Errorf("top = %+v", top)
	}
}

func TestMonthlyStats_NoIncome(t *testing.T) {
	s := NewMonthlyStats(time.Now())
	s.Add(Transaction{Type: Expense, Amount: decimal.NewFromInt(50), Category: "food"})
	if !s.SavingsRate().IsZero() {
		t.Errorf("savings rate without income = %s, want 0", s.SavingsRate())
	}
	if !s.Savings().Equal(decimal.NewFromInt(-50)) {
		t.Errorf("savings = %s", s.Savings())
	}
}

func TestMonthlyStats_CategoriesOrder(t *testing.T) {
	s := NewMonthlyStats(time.Now())
	s.Add(Transaction{Type: Expense, Amount: decimal.NewFromInt(10), Category: "b"})
	s.Add(Transaction{Type: Expense, Amount: decimal.NewFromInt(10), Category: "a"})
	s.Add(Transaction{Type: Expense, Amount: decimal.NewFromInt(30), Category: "c"})
	cats := s.Categories()
	if cats[0].Name != "c" || cats[1].Name != "a" || cats[2].Name != "b" {
		t.Errorf("order = %+v", cats)
	}
}
