// This file implements decoding and validation of JSON request bodies and
// query parameters into domain inputs.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"welth/internal/core"

	"github.com/shopspring/decimal"
)

// maxJSONBody bounds every JSON request body.
const maxJSONBody = 1 << 20

// decodeJSON reads one JSON object from the request body into dst. Unknown
// fields and trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", core.ErrInvalidInput)
		}
		return fmt.Errorf("%w: malformed JSON: %v", core.ErrInvalidInput, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: request body must contain a single JSON object", core.ErrInvalidInput)
	}
	return nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// parseDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, core.ErrMissingDate
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD or RFC 3339", core.ErrInvalidInput, s)
	}
	return t, nil
}

// parseAmount accepts a JSON number or numeric string.
func parseAmount(n json.Number) (decimal.Decimal, error) {
	return core.ParseAmount(n.String())
}

type transactionRequest struct {
	AccountID         string      `json:"accountId"`
	Type              string      `json:"type"`
	Amount            json.Number `json:"amount"`
	Description       string      `json:"description"`
	Date              string      `json:"date"`
	Category          string      `json:"category"`
	ReceiptURL        string      `json:"receiptUrl"`
	IsRecurring       bool        `json:"isRecurring"`
	RecurringInterval string      `json:"recurringInterval"`
}

// toInput converts the request into a domain input. Field-level validation
// beyond parsing is left to core.TransactionInput.Validate.
func (req transactionRequest) toInput() (core.TransactionInput, error) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return core.TransactionInput{}, err
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return core.TransactionInput{}, err
	}
	in := core.TransactionInput{
		AccountID:   strings.TrimSpace(req.AccountID),
		Type:        core.TransactionType(strings.ToUpper(strings.TrimSpace(req.Type))),
		Amount:      amount,
		Description: sanitizeInput(req.Description),
		Date:        date,
		Category:    sanitizeInput(req.Category),
		ReceiptURL:  strings.TrimSpace(req.ReceiptURL),
		IsRecurring: req.IsRecurring,
	}
	if req.IsRecurring {
		in.RecurringInterval = core.RecurringInterval(strings.ToUpper(strings.TrimSpace(req.RecurringInterval)))
	}
	return in, nil
}

type accountRequest struct {
	Name      string      `json:"name"`
	Type      string      `json:"type"`
	Balance   json.Number `json:"balance"`
	IsDefault bool        `json:"isDefault"`
}

func (req accountRequest) toInput() (core.AccountInput, error) {
	balance := decimal.Zero
	if req.Balance != "" {
		b, err := decimal.NewFromString(req.Balance.String())
		if err != nil {
			return core.AccountInput{}, fmt.Errorf("%w: balance must be a number", core.ErrInvalidInput)
		}
		balance = b
	}
	return core.AccountInput{
		Name:      sanitizeInput(req.Name),
		Type:      core.AccountType(strings.ToUpper(strings.TrimSpace(req.Type))),
		Balance:   balance,
		IsDefault: req.IsDefault,
	}, nil
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

type budgetRequest struct {
	Amount json.Number `json:"amount"`
}

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// Time returns the first instant of the month in UTC.
func (p MonthParams) Time() time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
}

// ParseMonthParams extracts year and month from query parameters, using now
// for missing values. Present but invalid values are errors.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{Year: now.Year(), Month: int(now.Month())}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1970 || y > 9999 {
			return MonthParams{}, fmt.Errorf("%w: invalid year %q", core.ErrInvalidInput, v)
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return MonthParams{}, fmt.Errorf("%w: invalid month %q", core.ErrInvalidInput, v)
		}
		params.Month = m
	}
	return params, nil
}
