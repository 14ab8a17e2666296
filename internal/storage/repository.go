package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"welth/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SQLiteRepository owns the database handle. Every operation that touches an
// account balance runs in one database transaction together with the
// transaction rows it derives from.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

// dsnParams enables foreign keys, waits on a locked database instead of
// failing, and takes the write lock at BEGIN so read-modify-write balance
// updates cannot interleave.
const dsnParams = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite has a single writer; one connection serializes writes in-process.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(r.queries.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func applyDelta(ctx context.Context, q *Queries, accountID string, delta decimal.Decimal, now time.Time) error {
	balance, err := q.GetAccountBalance(ctx, accountID)
	if err != nil {
		return notFound(err, "account "+accountID)
	}
	if err := q.SetAccountBalance(ctx, accountID, balance.Add(delta), now); err != nil {
		return fmt.Errorf("update balance of account %s: %w", accountID, err)
	}
	return nil
}

// ---- users ----

// GetOrCreateUser returns the user for an auth subject, inserting it on first sight.
func (r *SQLiteRepository) GetOrCreateUser(ctx context.Context, u core.User) (core.User, error) {
	existing, err := r.queries.GetUserBySubject(ctx, u.AuthSubject)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("get user by subject: %w", err)
	}

	u.ID = uuid.NewString()
	u.CreatedAt = r.now()
	if err := r.queries.CreateUser(ctx, u); err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	// A concurrent first request may have won the insert; read back the stored row.
	created, err := r.queries.GetUserBySubject(ctx, u.AuthSubject)
	if err != nil {
		return core.User{}, fmt.Errorf("read created user: %w", err)
	}
	slog.InfoContext(ctx, "User created", "user_id", created.ID, "email", created.Email)
	return created, nil
}

func (r *SQLiteRepository) GetUserBySubject(ctx context.Context, subject string) (core.User, error) {
	u, err := r.queries.GetUserBySubject(ctx, subject)
	if err != nil {
		return core.User{}, notFound(err, "user")
	}
	return u, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (core.User, error) {
	u, err := r.queries.GetUser(ctx, id)
	if err != nil {
		return core.User{}, notFound(err, "user "+id)
	}
	return u, nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	users, err := r.queries.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ---- accounts ----

// CreateAccount inserts an account. The first account of a user, or one
// flagged as default, becomes the only default account.
func (r *SQLiteRepository) CreateAccount(ctx context.Context, userID string, in core.AccountInput) (core.Account, error) {
	now := r.now()
	acc := core.Account{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      in.Name,
		Type:      in.Type,
		Balance:   in.Balance,
		IsDefault: in.IsDefault,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := r.withTx(ctx, func(q *Queries) error {
		count, err := q.CountAccounts(ctx, userID)
		if err != nil {
			return fmt.Errorf("count accounts: %w", err)
		}
		if count == 0 {
			acc.IsDefault = true
		}
		if acc.IsDefault {
			if err := q.ClearDefaultAccounts(ctx, userID, now); err != nil {
				return fmt.Errorf("clear default accounts: %w", err)
			}
		}
		if err := q.CreateAccount(ctx, acc); err != nil {
			return fmt.Errorf("insert account: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.Account{}, err
	}
	return acc, nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, userID, accountID string) (core.Account, error) {
	acc, err := r.queries.GetAccount(ctx, accountID, userID)
	if err != nil {
		return core.Account{}, notFound(err, "account "+accountID)
	}
	return acc, nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	accounts, err := r.queries.ListAccounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

func (r *SQLiteRepository) GetDefaultAccount(ctx context.Context, userID string) (core.Account, error) {
	acc, err := r.queries.GetDefaultAccount(ctx, userID)
	if err != nil {
		return core.Account{}, notFound(err, "default account")
	}
	return acc, nil
}

// SetDefaultAccount clears the user's current default and flags accountID,
// both in one database transaction.
func (r *SQLiteRepository) SetDefaultAccount(ctx context.Context, userID, accountID string) (core.Account, error) {
	now := r.now()
	var acc core.Account
	err := r.withTx(ctx, func(q *Queries) error {
		if _, err := q.GetAccount(ctx, accountID, userID); err != nil {
			return notFound(err, "account "+accountID)
		}
		if err := q.ClearDefaultAccounts(ctx, userID, now); err != nil {
			return fmt.Errorf("clear default accounts: %w", err)
		}
		if _, err := q.MarkAccountDefault(ctx, accountID, userID, now); err != nil {
			return fmt.Errorf("mark default account: %w", err)
		}
		var err error
		acc, err = q.GetAccount(ctx, accountID, userID)
		return err
	})
	if err != nil {
		return core.Account{}, err
	}
	return acc, nil
}

// GetAccountWithTransactions returns the account and its transactions, newest first.
func (r *SQLiteRepository) GetAccountWithTransactions(ctx context.Context, userID, accountID string) (core.Account, []core.Transaction, error) {
	acc, err := r.GetAccount(ctx, userID, accountID)
	if err != nil {
		return core.Account{}, nil, err
	}
	txs, err := r.queries.ListTransactionsByAccount(ctx, accountID)
	if err != nil {
		return core.Account{}, nil, fmt.Errorf("list account transactions: %w", err)
	}
	return acc, txs, nil
}

// ---- transactions ----

// CreateTransaction inserts t and applies its balance delta atomically.
// The account must belong to t.UserID.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	now := r.now()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = core.StatusCompleted
	}
	t.CreatedAt, t.UpdatedAt = now, now

	err := r.withTx(ctx, func(q *Queries) error {
		if _, err := q.GetAccount(ctx, t.AccountID, t.UserID); err != nil {
			return notFound(err, "account "+t.AccountID)
		}
		if err := q.CreateTransaction(ctx, t); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return applyDelta(ctx, q, t.AccountID, t.Delta(), now)
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"account_id", t.AccountID,
		"type", t.Type,
		"amount", t.Amount.String(),
		"recurring", t.IsRecurring)
	return t, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	t, err := r.queries.GetTransaction(ctx, id, userID)
	if err != nil {
		return core.Transaction{}, notFound(err, "transaction "+id)
	}
	return t, nil
}

// UpdateTransaction replaces the editable fields of a transaction. The old
// balance effect is reversed and the new one applied, possibly on another
// account, in the same database transaction.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, updated core.Transaction) (core.Transaction, error) {
	now := r.now()
	err := r.withTx(ctx, func(q *Queries) error {
		old, err := q.GetTransaction(ctx, updated.ID, updated.UserID)
		if err != nil {
			return notFound(err, "transaction "+updated.ID)
		}
		if _, err := q.GetAccount(ctx, updated.AccountID, updated.UserID); err != nil {
			return notFound(err, "account "+updated.AccountID)
		}

		updated.Status = old.Status
		updated.LastProcessed = old.LastProcessed
		updated.NextRecurringDate = nextDateAfterEdit(old, updated)
		updated.CreatedAt = old.CreatedAt
		updated.UpdatedAt = now

		if err := applyDelta(ctx, q, old.AccountID, old.Delta().Neg(), now); err != nil {
			return err
		}
		if err := applyDelta(ctx, q, updated.AccountID, updated.Delta(), now); err != nil {
			return err
		}
		if err := q.UpdateTransaction(ctx, updated); err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return updated, nil
}

// nextDateAfterEdit keeps the schedule the recurring processor owns. A
// proposed next date is only accepted when the edit starts a new schedule
// (recurrence turned on or interval changed) on a never-processed template.
func nextDateAfterEdit(old, updated core.Transaction) *time.Time {
	restarted := updated.IsRecurring &&
		(!old.IsRecurring || old.RecurringInterval != updated.RecurringInterval)
	if restarted && old.LastProcessed == nil {
		return updated.NextRecurringDate
	}
	return old.NextRecurringDate
}

// DeleteTransactions removes the user's transactions among ids and reverses
// their balance effects, grouped per account, in one database transaction.
// IDs that do not exist or belong to someone else are ignored; if none
// match, ErrNotFound is returned and nothing changes.
func (r *SQLiteRepository) DeleteTransactions(ctx context.Context, userID string, ids []string) ([]core.Transaction, error) {
	now := r.now()
	var deleted []core.Transaction
	err := r.withTx(ctx, func(q *Queries) error {
		found, err := q.GetTransactionsByIDs(ctx, userID, ids)
		if err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}
		if len(found) == 0 {
			return fmt.Errorf("transactions: %w", core.ErrNotFound)
		}

		changes := make(map[string]decimal.Decimal)
		var order []string
		matched := make([]string, 0, len(found))
		for _, t := range found {
			if _, ok := changes[t.AccountID]; !ok {
				order = append(order, t.AccountID)
			}
			changes[t.AccountID] = changes[t.AccountID].Sub(t.Delta())
			matched = append(matched, t.ID)
		}

		if _, err := q.DeleteTransactions(ctx, userID, matched); err != nil {
			return fmt.Errorf("delete transactions: %w", err)
		}
		for _, accountID := range order {
			if err := applyDelta(ctx, q, accountID, changes[accountID], now); err != nil {
				return err
			}
		}
		deleted = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Transactions deleted", "user_id", userID, "count", len(deleted))
	return deleted, nil
}

func (r *SQLiteRepository) ListTransactionsInRange(ctx context.Context, userID string, from, to time.Time) ([]core.Transaction, error) {
	txs, err := r.queries.ListTransactionsInRange(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list transactions in range: %w", err)
	}
	return txs, nil
}

// SumExpenses totals EXPENSE amounts on an account with from <= date <= to.
func (r *SQLiteRepository) SumExpenses(ctx context.Context, accountID string, from, to time.Time) (decimal.Decimal, error) {
	amounts, err := r.queries.ListExpenseAmounts(ctx, accountID, from, to)
	if err != nil {
		return decimal.Zero, fmt.Errorf("list expense amounts: %w", err)
	}
	return decimal.Sum(decimal.Zero, amounts...), nil
}
