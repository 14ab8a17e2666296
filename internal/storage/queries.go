package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"welth/internal/core"

	"github.com/shopspring/decimal"
)

// timeLayout is fixed width so stored instants compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds the single-statement operations. Multi-statement writes live
// on SQLiteRepository and run Queries bound to a transaction.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// ---- users ----

const userColumns = `id, auth_subject, email, name, image_url, created_at`

func scanUser(row rowScanner) (core.User, error) {
	var (
		u       core.User
		created string
	)
	if err := row.Scan(&u.ID, &u.AuthSubject, &u.Email, &u.Name, &u.ImageURL, &created); err != nil {
		return core.User{}, err
	}
	var err error
	u.CreatedAt, err = parseTime(created)
	return u, err
}

func (q *Queries) GetUserBySubject(ctx context.Context, subject string) (core.User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE auth_subject = ?`, subject)
	return scanUser(row)
}

func (q *Queries) GetUser(ctx context.Context, id string) (core.User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (q *Queries) CreateUser(ctx context.Context, u core.User) error {
	now := formatTime(u.CreatedAt)
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO users (id, auth_subject, email, name, image_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(auth_subject) DO NOTHING`,
		u.ID, u.AuthSubject, u.Email, u.Name, u.ImageURL, now, now)
	return err
}

func (q *Queries) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ---- accounts ----

const accountColumns = `id, user_id, name, type, balance, is_default, created_at, updated_at`

func scanAccount(row rowScanner) (core.Account, error) {
	var (
		a                core.Account
		balance          string
		created, updated string
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Type, &balance, &a.IsDefault, &created, &updated); err != nil {
		return core.Account{}, err
	}
	var err error
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return core.Account{}, fmt.Errorf("parse balance of account %s: %w", a.ID, err)
	}
	if a.CreatedAt, err = parseTime(created); err != nil {
		return core.Account{}, err
	}
	if a.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Account{}, err
	}
	return a, nil
}

func (q *Queries) CreateAccount(ctx context.Context, a core.Account) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO accounts (id, user_id, name, type, balance, is_default, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Name, a.Type, a.Balance.String(), a.IsDefault, formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	return err
}

// GetAccount returns the account only if it belongs to userID.
func (q *Queries) GetAccount(ctx context.Context, id, userID string) (core.Account, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ? AND user_id = ?`, id, userID)
	return scanAccount(row)
}

func (q *Queries) ListAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q *Queries) CountAccounts(ctx context.Context, userID string) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

func (q *Queries) GetDefaultAccount(ctx context.Context, userID string) (core.Account, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = ? AND is_default = 1`, userID)
	return scanAccount(row)
}

func (q *Queries) ClearDefaultAccounts(ctx context.Context, userID string, now time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE accounts SET is_default = 0, updated_at = ? WHERE user_id = ? AND is_default = 1`,
		formatTime(now), userID)
	return err
}

func (q *Queries) MarkAccountDefault(ctx context.Context, id, userID string, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE accounts SET is_default = 1, updated_at = ? WHERE id = ? AND user_id = ?`,
		formatTime(now), id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) GetAccountBalance(ctx context.Context, id string) (decimal.Decimal, error) {
	var s string
	if err := q.db.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = ?`, id).Scan(&s); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(s)
}

func (q *Queries) SetAccountBalance(ctx context.Context, id string, balance decimal.Decimal, now time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?`,
		balance.String(), formatTime(now), id)
	return err
}

// ---- transactions ----

const transactionColumns = `id, account_id, user_id, type, amount, description, date, category, receipt_url,
	is_recurring, recurring_interval, next_recurring_date, last_processed, status, created_at, updated_at`

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t                core.Transaction
		amount, date     string
		next, last       sql.NullString
		created, updated string
	)
	if err := row.Scan(&t.ID, &t.AccountID, &t.UserID, &t.Type, &amount, &t.Description, &date, &t.Category,
		&t.ReceiptURL, &t.IsRecurring, &t.RecurringInterval, &next, &last, &t.Status, &created, &updated); err != nil {
		return core.Transaction{}, err
	}
	var err error
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount of transaction %s: %w", t.ID, err)
	}
	if t.Date, err = parseTime(date); err != nil {
		return core.Transaction{}, err
	}
	if t.NextRecurringDate, err = parseNullTime(next); err != nil {
		return core.Transaction{}, err
	}
	if t.LastProcessed, err = parseNullTime(last); err != nil {
		return core.Transaction{}, err
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return core.Transaction{}, err
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	defer rows.Close()
	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (q *Queries) CreateTransaction(ctx context.Context, t core.Transaction) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AccountID, t.UserID, t.Type, t.Amount.String(), t.Description, formatTime(t.Date), t.Category,
		t.ReceiptURL, t.IsRecurring, t.RecurringInterval, nullTime(t.NextRecurringDate), nullTime(t.LastProcessed),
		t.Status, formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	return err
}

func (q *Queries) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE transactions SET account_id = ?, type = ?, amount = ?, description = ?, date = ?, category = ?,
		 receipt_url = ?, is_recurring = ?, recurring_interval = ?, next_recurring_date = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		t.AccountID, t.Type, t.Amount.String(), t.Description, formatTime(t.Date), t.Category,
		t.ReceiptURL, t.IsRecurring, t.RecurringInterval, nullTime(t.NextRecurringDate), formatTime(t.UpdatedAt),
		t.ID, t.UserID)
	return err
}

// GetTransaction returns the transaction only if it belongs to userID.
func (q *Queries) GetTransaction(ctx context.Context, id, userID string) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	return scanTransaction(row)
}

func (q *Queries) GetTransactionsByIDs(ctx context.Context, userID string, ids []string) ([]core.Transaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = ? AND id IN (`+placeholders(len(ids))+`)`,
		args...)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

func (q *Queries) DeleteTransactions(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE user_id = ? AND id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) ListTransactionsByAccount(ctx context.Context, accountID string) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE account_id = ? ORDER BY date DESC, created_at DESC`,
		accountID)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

// ListTransactionsInRange returns the user's transactions with from <= date <= to.
func (q *Queries) ListTransactionsInRange(ctx context.Context, userID string, from, to time.Time) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE user_id = ? AND date >= ? AND date <= ? ORDER BY date`,
		userID, formatTime(from), formatTime(to))
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

// ListExpenseAmounts returns EXPENSE amounts on an account with from <= date <= to.
// Amounts are summed by the caller so no floating point is involved.
func (q *Queries) ListExpenseAmounts(ctx context.Context, accountID string, from, to time.Time) ([]decimal.Decimal, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT amount FROM transactions
		 WHERE account_id = ? AND type = 'EXPENSE' AND date >= ? AND date <= ?`,
		accountID, formatTime(from), formatTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []decimal.Decimal
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (q *Queries) ListDueRecurring(ctx context.Context, now time.Time) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE is_recurring = 1 AND status = 'COMPLETED'
		   AND (last_processed IS NULL OR next_recurring_date IS NULL OR next_recurring_date <= ?)
		 ORDER BY created_at`,
		formatTime(now))
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

func (q *Queries) MarkRecurringProcessed(ctx context.Context, id string, processed, next time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE transactions SET last_processed = ?, next_recurring_date = ?, updated_at = ? WHERE id = ?`,
		formatTime(processed), formatTime(next), formatTime(processed), id)
	return err
}

// ---- budgets ----

const budgetColumns = `id, user_id, amount, last_alert_sent, created_at, updated_at`

func scanBudget(row rowScanner) (core.Budget, error) {
	var (
		b                core.Budget
		amount           string
		lastAlert        sql.NullString
		created, updated string
	)
	if err := row.Scan(&b.ID, &b.UserID, &amount, &lastAlert, &created, &updated); err != nil {
		return core.Budget{}, err
	}
	var err error
	if b.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Budget{}, fmt.Errorf("parse amount of budget %s: %w", b.ID, err)
	}
	if b.LastAlertSent, err = parseNullTime(lastAlert); err != nil {
		return core.Budget{}, err
	}
	if b.CreatedAt, err = parseTime(created); err != nil {
		return core.Budget{}, err
	}
	if b.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

func (q *Queries) UpsertBudget(ctx context.Context, b core.Budget) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO budgets (id, user_id, amount, last_alert_sent, created_at, updated_at)
		 VALUES (?, ?, ?, NULL, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET amount = excluded.amount, updated_at = excluded.updated_at`,
		b.ID, b.UserID, b.Amount.String(), formatTime(b.CreatedAt), formatTime(b.UpdatedAt))
	return err
}

func (q *Queries) GetBudgetByUser(ctx context.Context, userID string) (core.Budget, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE user_id = ?`, userID)
	return scanBudget(row)
}

func (q *Queries) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+budgetColumns+` FROM budgets ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (q *Queries) SetBudgetAlertSent(ctx context.Context, id string, at time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE budgets SET last_alert_sent = ?, updated_at = ? WHERE id = ?`,
		formatTime(at), formatTime(at), id)
	return err
}

// notFound maps sql.ErrNoRows onto the domain sentinel.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", what, err)
}
