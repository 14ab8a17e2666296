package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"welth/internal/core"
)

func TestParseMonthParams(t *testing.T) {
	now := time.Date(2024, 5, 17, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		query   string
		want    MonthParams
		wantErr bool
	}{
		{"defaults to now", "", MonthParams{2024, 5}, false},
		{"explicit", "year=2023&month=12", MonthParams{2023, 12}, false},
		{"month only", "month=2", MonthParams{2024, 2}, false},
		{"month out of range", "month=13", MonthParams{}, true},
		{"non numeric year", "year=abc", MonthParams{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			got, err := ParseMonthParams(q, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMonthParams() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, core.ErrInvalidInput) {
					t.Errorf("error %v is not ErrInvalidInput", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseMonthParams() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2024-01-31", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), false},
		{"2024-01-31T10:30:00Z", time.Date(2024, 1, 31, 10, 30, 0, 0, time.UTC), false},
		{"31/01/2024", time.Time{}, true},
		{"", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := parseDate(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseDate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && !got.Equal(tt.want) {
			t.Errorf("parseDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTransactionRequestToInput(t *testing.T) {
	req := transactionRequest{
		AccountID:         " acc-1 ",
		Type:              "expense",
		Amount:            json.Number("12,345"),
		Description:       "  Lunch\x00 ",
		Date:              "2024-03-10",
		Category:          "food",
		IsRecurring:       true,
		RecurringInterval: "monthly",
	}
	in, err := req.toInput()
	if err != nil {
		t.Fatalf("toInput() error = %v", err)
	}
	if in.AccountID != "acc-1" || in.Type != core.Expense || in.RecurringInterval != core.Monthly {
		t.Errorf("toInput() = %+v", in)
	}
	if in.Amount.String() != "12.35" {
		t.Errorf("Amount = %s, want 12.35", in.Amount)
	}
	if in.Description != "Lunch" {
		t.Errorf("Description = %q, want sanitized", in.Description)
	}
	if err := in.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	req.Amount = "-5"
	if _, err := req.toInput(); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("negative amount error = %v", err)
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"ids":["a"]}`, false},
		{"empty", ``, true},
		{"unknown field", `{"ids":[],"force":true}`, true},
		{"trailing object", `{"ids":[]}{"ids":[]}`, true},
		{"malformed", `{"ids":`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst bulkDeleteRequest
			err := decodeJSON(httptest.NewRecorder(), r, &dst)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, core.ErrInvalidInput) {
				t.Errorf("error %v is not ErrInvalidInput", err)
			}
		})
	}
}
