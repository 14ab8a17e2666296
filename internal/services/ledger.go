package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"welth/internal/core"

	"github.com/shopspring/decimal"
)

// Identity is what the auth layer knows about the caller.
type Identity struct {
	Subject  string
	Email    string
	Name     string
	ImageURL string
}

// LedgerService owns every user-initiated write to accounts, transactions and
// budgets. Balance updates happen in the same database transaction as the
// row changes they follow from.
type LedgerService struct {
	store       Store
	limiter     Limiter
	revalidator Revalidator
	now         func() time.Time
}

// NewLedgerService wires the ledger. limiter and revalidator may be nil.
func NewLedgerService(store Store, limiter Limiter, revalidator Revalidator) *LedgerService {
	return &LedgerService{
		store:       store,
		limiter:     limiter,
		revalidator: revalidator,
		now:         time.Now,
	}
}

// ResolveUser maps an identity to a user, creating the user on first sight.
func (s *LedgerService) ResolveUser(ctx context.Context, id Identity) (core.User, error) {
	if strings.TrimSpace(id.Subject) == "" {
		return core.User{}, core.ErrUnauthorized
	}
	u, err := s.store.GetOrCreateUser(ctx, core.User{
		AuthSubject: id.Subject,
		Email:       id.Email,
		Name:        id.Name,
		ImageURL:    id.ImageURL,
	})
	if err != nil {
		return core.User{}, fmt.Errorf("resolve user: %w", err)
	}
	return u, nil
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return core.ErrUnauthorized
	}
	return nil
}

// CreateTransaction validates input, stores the transaction and applies its
// balance effect atomically. Recurring transactions get their first
// next_recurring_date computed from the transaction date.
func (s *LedgerService) CreateTransaction(ctx context.Context, userID string, in core.TransactionInput) (core.Transaction, error) {
	if err := requireUser(userID); err != nil {
		return core.Transaction{}, err
	}
	if s.limiter != nil && !s.limiter.Allow(userID) {
		slog.WarnContext(ctx, "Transaction rate limit exceeded", "user_id", userID)
		return core.Transaction{}, core.ErrRateLimited
	}
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	t, err := buildTransaction(userID, in)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Status = core.StatusCompleted

	created, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	s.revalidate(ctx, userID)
	return created, nil
}

// UpdateTransaction replaces a transaction's editable fields, moving its
// balance effect if the amount, type or account changed. The recurring
// schedule stays with the store, which only takes the proposed next date for
// templates that have not run yet.
func (s *LedgerService) UpdateTransaction(ctx context.Context, userID, id string, in core.TransactionInput) (core.Transaction, error) {
	if err := requireUser(userID); err != nil {
		return core.Transaction{}, err
	}
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	t, err := buildTransaction(userID, in)
	if err != nil {
		return core.Transaction{}, err
	}
	t.ID = id

	updated, err := s.store.UpdateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	s.revalidate(ctx, userID)
	return updated, nil
}

func buildTransaction(userID string, in core.TransactionInput) (core.Transaction, error) {
	t := core.Transaction{
		AccountID:   in.AccountID,
		UserID:      userID,
		Type:        in.Type,
		Amount:      in.Amount.Round(2),
		Description: strings.TrimSpace(in.Description),
		Date:        in.Date,
		Category:    strings.TrimSpace(in.Category),
		ReceiptURL:  in.ReceiptURL,
		IsRecurring: in.IsRecurring,
	}
	if in.IsRecurring {
		next, err := core.NextRecurringDate(in.Date, in.RecurringInterval)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("%w: %w", core.ErrInvalidInput, err)
		}
		t.RecurringInterval = in.RecurringInterval
		t.NextRecurringDate = &next
	}
	return t, nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	if err := requireUser(userID); err != nil {
		return core.Transaction{}, err
	}
	return s.store.GetTransaction(ctx, userID, id)
}

// BulkDeleteTransactions deletes the caller's transactions among ids and
// reverses their balance effects in one database transaction.
func (s *LedgerService) BulkDeleteTransactions(ctx context.Context, userID string, ids []string) ([]core.Transaction, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	ids = compactIDs(ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no transaction ids given", core.ErrInvalidInput)
	}

	deleted, err := s.store.DeleteTransactions(ctx, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("bulk delete: %w", err)
	}
	s.revalidate(ctx, userID)
	return deleted, nil
}

func compactIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ---- accounts ----

func (s *LedgerService) CreateAccount(ctx context.Context, userID string, in core.AccountInput) (core.Account, error) {
	if err := requireUser(userID); err != nil {
		return core.Account{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Type == "" {
		in.Type = core.Current
	}
	if err := in.Validate(); err != nil {
		return core.Account{}, err
	}
	in.Balance = in.Balance.Round(2)

	acc, err := s.store.CreateAccount(ctx, userID, in)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	s.revalidate(ctx, userID)
	return acc, nil
}

func (s *LedgerService) ListAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return s.store.ListAccounts(ctx, userID)
}

// SetDefaultAccount makes accountID the user's only default account.
func (s *LedgerService) SetDefaultAccount(ctx context.Context, userID, accountID string) (core.Account, error) {
	if err := requireUser(userID); err != nil {
		return core.Account{}, err
	}
	acc, err := s.store.SetDefaultAccount(ctx, userID, accountID)
	if err != nil {
		return core.Account{}, fmt.Errorf("set default account: %w", err)
	}
	s.revalidate(ctx, userID)
	return acc, nil
}

// AccountDetail is an account with its transactions, newest first.
type AccountDetail struct {
	Account      core.Account
	Transactions []core.Transaction
}

func (d AccountDetail) Count() int { return len(d.Transactions) }

func (s *LedgerService) GetAccountWithTransactions(ctx context.Context, userID, accountID string) (AccountDetail, error) {
	if err := requireUser(userID); err != nil {
		return AccountDetail{}, err
	}
	acc, txs, err := s.store.GetAccountWithTransactions(ctx, userID, accountID)
	if err != nil {
		return AccountDetail{}, err
	}
	return AccountDetail{Account: acc, Transactions: txs}, nil
}

// ---- budget ----

// BudgetStatus is a budget with spending on the default account so far this
// month. Budget is nil when the user has none.
type BudgetStatus struct {
	Budget         *core.Budget
	CurrentExpense decimal.Decimal
	AccountID      string
}

func (s *LedgerService) UpsertBudget(ctx context.Context, userID string, amount decimal.Decimal) (core.Budget, error) {
	if err := requireUser(userID); err != nil {
		return core.Budget{}, err
	}
	if !amount.IsPositive() {
		return core.Budget{}, core.ErrInvalidAmount
	}
	b, err := s.store.UpsertBudget(ctx, userID, amount.Round(2))
	if err != nil {
		return core.Budget{}, err
	}
	s.revalidate(ctx, userID)
	return b, nil
}

// GetBudget returns the budget and current-month expenses on the default
// account. Missing budget or default account are not errors.
func (s *LedgerService) GetBudget(ctx context.Context, userID string) (BudgetStatus, error) {
	if err := requireUser(userID); err != nil {
		return BudgetStatus{}, err
	}
	status := BudgetStatus{CurrentExpense: decimal.Zero}

	b, err := s.store.GetBudget(ctx, userID)
	switch {
	case err == nil:
		status.Budget = &b
	case !errors.Is(err, core.ErrNotFound):
		return BudgetStatus{}, fmt.Errorf("get budget: %w", err)
	}

	acc, err := s.store.GetDefaultAccount(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return status, nil
	}
	if err != nil {
		return BudgetStatus{}, fmt.Errorf("get default account: %w", err)
	}
	status.AccountID = acc.ID

	now := s.now()
	total, err := s.store.SumExpenses(ctx, acc.ID, core.StartOfMonth(now), now)
	if err != nil {
		return BudgetStatus{}, err
	}
	status.CurrentExpense = total
	return status, nil
}

func (s *LedgerService) revalidate(ctx context.Context, userID string) {
	if s.revalidator == nil {
		return
	}
	if err := s.revalidator.Revalidate(ctx, userID); err != nil {
		slog.WarnContext(ctx, "Revalidation failed after write",
			"user_id", userID,
			"error", fmt.Errorf("%w: %w", core.ErrRevalidation, err))
	}
}
