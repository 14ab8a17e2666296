package services

import (
	"context"
	"time"

	"welth/internal/core"
	"welth/internal/notify"

	"github.com/shopspring/decimal"
)

// Users resolves identities issued by the auth provider.
type Users interface {
	GetOrCreateUser(ctx context.Context, u core.User) (core.User, error)
	GetUser(ctx context.Context, id string) (core.User, error)
	ListUsers(ctx context.Context) ([]core.User, error)
}

type Accounts interface {
	CreateAccount(ctx context.Context, userID string, in core.AccountInput) (core.Account, error)
	GetAccount(ctx context.Context, userID, accountID string) (core.Account, error)
	ListAccounts(ctx context.Context, userID string) ([]core.Account, error)
	GetDefaultAccount(ctx context.Context, userID string) (core.Account, error)
	SetDefaultAccount(ctx context.Context, userID, accountID string) (core.Account, error)
	GetAccountWithTransactions(ctx context.Context, userID, accountID string) (core.Account, []core.Transaction, error)
}

type Transactions interface {
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	DeleteTransactions(ctx context.Context, userID string, ids []string) ([]core.Transaction, error)
	ListTransactionsInRange(ctx context.Context, userID string, from, to time.Time) ([]core.Transaction, error)
	SumExpenses(ctx context.Context, accountID string, from, to time.Time) (decimal.Decimal, error)
}

type Recurring interface {
	ListDueRecurring(ctx context.Context, now time.Time) ([]core.Transaction, error)
	ProcessRecurring(ctx context.Context, userID, templateID string, now time.Time) (core.Transaction, bool, error)
}

type Budgets interface {
	UpsertBudget(ctx context.Context, userID string, amount decimal.Decimal) (core.Budget, error)
	GetBudget(ctx context.Context, userID string) (core.Budget, error)
	ListBudgets(ctx context.Context) ([]core.Budget, error)
	MarkBudgetAlerted(ctx context.Context, budgetID string, at time.Time) error
}

// Store is everything the services need from persistence. The SQLite
// repository satisfies it.
type Store interface {
	Users
	Accounts
	Transactions
	Recurring
	Budgets
}

// Limiter is a keyed admission check.
type Limiter interface {
	Allow(key string) bool
}

// Throttle blocks until key may proceed.
type Throttle interface {
	Wait(ctx context.Context, key string) error
}

// Notifier delivers user emails.
type Notifier interface {
	Dispatch(ctx context.Context, n notify.Notification) error
}

// Publisher enqueues one recurring work item.
type Publisher interface {
	PublishRecurringProcess(ctx context.Context, transactionID, userID string) error
}

// Revalidator refreshes derived views after a committed write. Failures are
// logged by the caller and never undo the write.
type Revalidator interface {
	Revalidate(ctx context.Context, userID string) error
}

// InsightGenerator produces short advice lines for a month of activity.
type InsightGenerator interface {
	GenerateInsights(ctx context.Context, stats core.MonthlyStats, monthName string) ([]string, error)
}
