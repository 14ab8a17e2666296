package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"

	Daily   RecurringInterval = "DAILY"
	Weekly  RecurringInterval = "WEEKLY"
	Monthly RecurringInterval = "MONTHLY"
	Yearly  RecurringInterval = "YEARLY"

	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"

	Current AccountType = "CURRENT"
	Savings AccountType = "SAVINGS"

	// RecurringSuffix is appended to the description of every generated copy.
	RecurringSuffix = " (Recurring)"

	maxDescriptionLen = 200
)

type (
	TransactionType   string
	RecurringInterval string
	TransactionStatus string
	AccountType       string

	User struct {
		ID          string
		AuthSubject string // opaque id issued by the identity provider
		Email       string
		Name        string
		ImageURL    string
		CreatedAt   time.Time
	}

	Account struct {
		ID        string
		UserID    string
		Name      string
		Type      AccountType
		Balance   decimal.Decimal
		IsDefault bool
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	Transaction struct {
		ID                string
		AccountID         string
		UserID            string
		Type              TransactionType
		Amount            decimal.Decimal
		Description       string
		Date              time.Time
		Category          string
		ReceiptURL        string
		IsRecurring       bool
		RecurringInterval RecurringInterval
		NextRecurringDate *time.Time
		LastProcessed     *time.Time
		Status            TransactionStatus
		CreatedAt         time.Time
		UpdatedAt         time.Time
	}

	Budget struct {
		ID            string
		UserID        string
		Amount        decimal.Decimal
		LastAlertSent *time.Time
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}

	// TransactionInput is the caller-supplied part of a transaction.
	TransactionInput struct {
		AccountID         string
		Type              TransactionType
		Amount            decimal.Decimal
		Description       string
		Date              time.Time
		Category          string
		ReceiptURL        string
		IsRecurring       bool
		RecurringInterval RecurringInterval
	}

	AccountInput struct {
		Name      string
		Type      AccountType
		Balance   decimal.Decimal
		IsDefault bool
	}
)

var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrNotFound              = errors.New("not found")
	ErrInvalidInput          = errors.New("invalid input")
	ErrRateLimited           = errors.New("too many requests")
	ErrExternalService       = errors.New("external service failure")
	ErrInvalidResponseFormat = errors.New("invalid response format")
	ErrUnknownInterval       = errors.New("unknown recurring interval")

	// ErrRevalidation marks a failed cache refresh after a committed write.
	// It is logged and never returned to callers.
	ErrRevalidation = errors.New("partial revalidation failure")

	ErrInvalidAmount    = fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	ErrInvalidType      = fmt.Errorf("%w: type must be INCOME or EXPENSE", ErrInvalidInput)
	ErrEmptyAccount     = fmt.Errorf("%w: account is required", ErrInvalidInput)
	ErrEmptyCategory    = fmt.Errorf("%w: category is required", ErrInvalidInput)
	ErrMissingDate      = fmt.Errorf("%w: date is required", ErrInvalidInput)
	ErrMissingInterval  = fmt.Errorf("%w: recurring interval is required for recurring transactions", ErrInvalidInput)
	ErrEmptyAccountName = fmt.Errorf("%w: account name is required", ErrInvalidInput)
)

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (i RecurringInterval) Valid() bool {
	_, ok := recurrenceSteps[i]
	return ok
}

func (a AccountType) Valid() bool {
	return a == Current || a == Savings
}

// Validate checks the fields a caller must supply before any write happens.
func (in TransactionInput) Validate() error {
	if strings.TrimSpace(in.AccountID) == "" {
		return ErrEmptyAccount
	}
	if !in.Type.Valid() {
		return ErrInvalidType
	}
	if !in.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if in.Date.IsZero() {
		return ErrMissingDate
	}
	if strings.TrimSpace(in.Category) == "" {
		return ErrEmptyCategory
	}
	if len(in.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description too long (max %d characters)", ErrInvalidInput, maxDescriptionLen)
	}
	if in.IsRecurring {
		if in.RecurringInterval == "" {
			return ErrMissingInterval
		}
		if !in.RecurringInterval.Valid() {
			return fmt.Errorf("%w: %w %q", ErrInvalidInput, ErrUnknownInterval, in.RecurringInterval)
		}
	}
	return nil
}

func (in AccountInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrEmptyAccountName
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: account type must be CURRENT or SAVINGS", ErrInvalidInput)
	}
	return nil
}

// BalanceDelta is the signed effect of a transaction on its account balance.
func BalanceDelta(t TransactionType, amount decimal.Decimal) decimal.Decimal {
	if t == Expense {
		return amount.Neg()
	}
	return amount
}

// Delta returns the signed balance effect of this transaction.
func (t Transaction) Delta() decimal.Decimal {
	return BalanceDelta(t.Type, t.Amount)
}

// RecurringCopy builds the non-recurring instance generated from a template at now.
func (t Transaction) RecurringCopy(now time.Time) Transaction {
	return Transaction{
		AccountID:   t.AccountID,
		UserID:      t.UserID,
		Type:        t.Type,
		Amount:      t.Amount,
		Description: t.Description + RecurringSuffix,
		Date:        now,
		Category:    t.Category,
		Status:      StatusCompleted,
	}
}
