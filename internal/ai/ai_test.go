package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"welth/internal/core"

	"github.com/shopspring/decimal"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	text  string
	err   error
	parts []*genai.Part
}

func (f *fakeGenerator) Generate(_ context.Context, parts []*genai.Part) (string, error) {
	f.parts = parts
	return f.text, f.err
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n[\"x\"]\n```\n", `["x"]`},
		{"whitespace", "  \n{}\n ", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.in); got != tt.want {
				t.Errorf("cleanModelJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseReceipt(t *testing.T) {
	text := "```json\n" + `{"amount": 42.567, "date": "2024-03-09T00:00:00Z", "description": "Weekly shop", "merchantName": "FreshMart", "category": "Groceries"}` + "\n```"

	got, err := ParseReceipt(text)
	if err != nil {
		t.Fatalf("ParseReceipt() error = %v", err)
	}
	want := ReceiptData{
		Amount:       decimal.RequireFromString("42.567"),
		Date:         time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC),
		Description:  "Weekly shop",
		MerchantName: "FreshMart",
		Category:     "Groceries",
	}
	if !got.Amount.Equal(want.Amount) || !got.Date.Equal(want.Date) ||
		got.Description != want.Description || got.MerchantName != want.MerchantName || got.Category != want.Category {
		t.Errorf("ParseReceipt() = %+v, want %+v", got, want)
	}
}

func TestParseReceiptErrors(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr error
	}{
		{"empty object", "{}", ErrNotReceipt},
		{"prose", "I could not read this image.", core.ErrInvalidResponseFormat},
		{"missing amount", `{"description":"x"}`, core.ErrInvalidResponseFormat},
		{"array", `["a"]`, core.ErrInvalidResponseFormat},
		{"unparseable date", `{"amount": 3, "date": "last tuesday"}`, core.ErrInvalidResponseFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReceipt(tt.text)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseReceipt() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseReceiptKeepsModelValues(t *testing.T) {
	got, err := ParseReceipt(`{"amount": 3, "category": "spaceships", "date": "2024-01-02"}`)
	if err != nil {
		t.Fatalf("ParseReceipt() error = %v", err)
	}
	if got.Category != "spaceships" {
		t.Errorf("Category = %q, want spaceships", got.Category)
	}
	if got.Date.Day() != 2 {
		t.Errorf("Date = %v", got.Date)
	}

	got, err = ParseReceipt(`{"amount": 3}`)
	if err != nil {
		t.Fatalf("ParseReceipt() without date error = %v", err)
	}
	if !got.Date.IsZero() {
		t.Errorf("Date = %v, want zero for a missing date", got.Date)
	}
}

func TestParseInsights(t *testing.T) {
	got, err := ParseInsights("```json\n[\"one\", \" \", \"two\", \"three\", \"four\"]\n```")
	if err != nil {
		t.Fatalf("ParseInsights() error = %v", err)
	}
	want := []string{"one", "two", "three"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("ParseInsights() = %v, want %v", got, want)
	}

	if _, err := ParseInsights(`{"insights": []}`); !errors.Is(err, core.ErrInvalidResponseFormat) {
		t.Errorf("object response error = %v, want ErrInvalidResponseFormat", err)
	}
	if _, err := ParseInsights(`[]`); !errors.Is(err, core.ErrInvalidResponseFormat) {
		t.Errorf("empty array error = %v, want ErrInvalidResponseFormat", err)
	}
}

func statsFor(income string, cats map[string]string) core.MonthlyStats {
	s := core.NewMonthlyStats(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	if income != "" {
		s.Add(core.Transaction{Type: core.Income, Amount: decimal.RequireFromString(income), Category: "salary"})
	}
	for name, amt := range cats {
		s.Add(core.Transaction{Type: core.Expense, Amount: decimal.RequireFromString(amt), Category: name})
	}
	return s
}

func TestFallbackInsights(t *testing.T) {
	tests := []struct {
		name      string
		stats     core.MonthlyStats
		wantFirst string
		wantLen   int
	}{
		{
			name:      "high savings",
			stats:     statsFor("1000", map[string]string{"food": "300"}),
			wantFirst: "Great job!",
			wantLen:   3,
		},
		{
			name:      "overspent",
			stats:     statsFor("100", map[string]string{"rent": "500"}),
			wantFirst: "You spent more than you earned",
			wantLen:   3,
		},
		{
			name:      "no activity",
			stats:     statsFor("", nil),
			wantFirst: "Your savings rate is positive.",
			wantLen:   2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FallbackInsights(tt.stats)
			if len(got) != tt.wantLen {
				t.Fatalf("len = %d, want %d: %v", len(got), tt.wantLen, got)
			}
			if !strings.HasPrefix(got[0], tt.wantFirst) {
				t.Errorf("first insight = %q, want prefix %q", got[0], tt.wantFirst)
			}
		})
	}

	got := FallbackInsights(statsFor("1000", map[string]string{"food": "300", "rent": "400"}))
	if got[1] != "Your highest spending category was rent at ₹400.00." {
		t.Errorf("category insight = %q", got[1])
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		in   error
		want error
	}{
		{errors.New("googleapi: API key not valid"), ErrMissingAPIKey},
		{errors.New("Error 429: Quota exceeded"), ErrQuota},
		{errors.New("dial tcp: lookup generativelanguage: no such host"), ErrNetwork},
		{context.DeadlineExceeded, ErrNetwork},
		{errors.New("safety block"), ErrModel},
	}
	for _, tt := range tests {
		got := classifyError(tt.in)
		if !errors.Is(got, tt.want) {
			t.Errorf("classifyError(%v) = %v, want %v", tt.in, got, tt.want)
		}
		if !errors.Is(got, core.ErrExternalService) {
			t.Errorf("classifyError(%v) does not wrap ErrExternalService", tt.in)
		}
	}
}

func TestScanReceipt(t *testing.T) {
	gen := &fakeGenerator{text: `{"amount": 12, "date": "2024-02-01", "description": "Lunch", "merchantName": "Cafe", "category": "food"}`}
	c := &Client{gen: gen}

	got, err := c.ScanReceipt(context.Background(), []byte{0xff, 0xd8}, "image/jpeg")
	if err != nil {
		t.Fatalf("ScanReceipt() error = %v", err)
	}
	if got.Description != "Lunch" || got.Category != "food" {
		t.Errorf("ScanReceipt() = %+v", got)
	}
	if len(gen.parts) != 2 || gen.parts[0].InlineData == nil || gen.parts[0].InlineData.MIMEType != "image/jpeg" {
		t.Errorf("unexpected parts sent to model: %+v", gen.parts)
	}

	if _, err := c.ScanReceipt(context.Background(), nil, "image/jpeg"); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("empty image error = %v, want ErrInvalidInput", err)
	}
	if _, err := c.ScanReceipt(context.Background(), []byte("x"), "text/plain"); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("text upload error = %v, want ErrInvalidInput", err)
	}

	c.gen = &fakeGenerator{err: errors.New("quota exhausted")}
	if _, err := c.ScanReceipt(context.Background(), []byte("x"), "image/png"); !errors.Is(err, ErrQuota) {
		t.Errorf("quota error = %v, want ErrQuota", err)
	}
}

func TestGenerateInsightsPrompt(t *testing.T) {
	gen := &fakeGenerator{text: `["a","b","c"]`}
	c := &Client{gen: gen}

	stats := statsFor("1000", map[string]string{"food": "600"})
	if _, err := c.GenerateInsights(context.Background(), stats, "May"); err != nil {
		t.Fatalf("GenerateInsights() error = %v", err)
	}
	prompt := gen.parts[0].Text
	for _, want := range []string{"for May", "Total Income: ₹1000.00", "Savings Rate: 40.0%", "food: ₹600.00"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestObjectName(t *testing.T) {
	name := ObjectName("u1", time.Date(2024, 7, 3, 0, 0, 0, 0, time.UTC), "image/png")
	if !strings.HasPrefix(name, "receipts/u1/2024-07/") || !strings.HasSuffix(name, ".png") {
		t.Errorf("ObjectName() = %q", name)
	}
}
