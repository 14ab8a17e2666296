package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"welth/internal/core"
	"welth/internal/notify"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// memStore is an in-memory Store with the same ownership and atomicity rules
// as the SQLite repository, minus persistence.
type memStore struct {
	mu       sync.Mutex
	seq      int
	users    map[string]core.User
	accounts map[string]core.Account
	txs      map[string]core.Transaction
	budgets  map[string]core.Budget // by user id

	failSum error
}

var _ Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]core.User{},
		accounts: map[string]core.Account{},
		txs:      map[string]core.Transaction{},
		budgets:  map[string]core.Budget{},
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s%d", prefix, m.seq)
}

func (m *memStore) addUser(id, email string) core.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := core.User{ID: id, AuthSubject: "sub-" + id, Email: email, Name: "User " + id}
	m.users[id] = u
	return u
}

func (m *memStore) addAccount(userID, id, name string, balance string, isDefault bool) core.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := core.Account{ID: id, UserID: userID, Name: name, Type: core.Current, Balance: dec(balance), IsDefault: isDefault}
	m.accounts[id] = a
	return a
}

func (m *memStore) addTx(t core.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.Status == "" {
		t.Status = core.StatusCompleted
	}
	m.txs[t.ID] = t
}

func (m *memStore) balance(accountID string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[accountID].Balance
}

func (m *memStore) GetOrCreateUser(_ context.Context, u core.User) (core.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.AuthSubject == u.AuthSubject {
			return existing, nil
		}
	}
	u.ID = m.nextID("u")
	m.users[u.ID] = u
	return u, nil
}

func (m *memStore) GetUser(_ context.Context, id string) (core.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return u, nil
}

func (m *memStore) ListUsers(context.Context) ([]core.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.User
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreateAccount(_ context.Context, userID string, in core.AccountInput) (core.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	first := true
	for _, a := range m.accounts {
		if a.UserID == userID {
			first = false
		}
	}
	a := core.Account{ID: m.nextID("a"), UserID: userID, Name: in.Name, Type: in.Type, Balance: in.Balance, IsDefault: in.IsDefault || first}
	if a.IsDefault {
		m.clearDefaults(userID)
	}
	m.accounts[a.ID] = a
	return a, nil
}

func (m *memStore) clearDefaults(userID string) {
	for id, a := range m.accounts {
		if a.UserID == userID {
			a.IsDefault = false
			m.accounts[id] = a
		}
	}
}

func (m *memStore) GetAccount(_ context.Context, userID, accountID string) (core.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok || a.UserID != userID {
		return core.Account{}, core.ErrNotFound
	}
	return a, nil
}

func (m *memStore) ListAccounts(_ context.Context, userID string) ([]core.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Account
	for _, a := range m.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) GetDefaultAccount(_ context.Context, userID string) (core.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.UserID == userID && a.IsDefault {
			return a, nil
		}
	}
	return core.Account{}, core.ErrNotFound
}

func (m *memStore) SetDefaultAccount(_ context.Context, userID, accountID string) (core.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok || a.UserID != userID {
		return core.Account{}, core.ErrNotFound
	}
	m.clearDefaults(userID)
	a.IsDefault = true
	m.accounts[accountID] = a
	return a, nil
}

func (m *memStore) GetAccountWithTransactions(ctx context.Context, userID, accountID string) (core.Account, []core.Transaction, error) {
	a, err := m.GetAccount(ctx, userID, accountID)
	if err != nil {
		return core.Account{}, nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Transaction
	for _, t := range m.txs {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return a, out, nil
}

func (m *memStore) applyDelta(accountID string, delta decimal.Decimal) {
	a := m.accounts[accountID]
	a.Balance = a.Balance.Add(delta)
	m.accounts[accountID] = a
}

func (m *memStore) CreateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[t.AccountID]
	if !ok || a.UserID != t.UserID {
		return core.Transaction{}, core.ErrNotFound
	}
	t.ID = m.nextID("t")
	m.txs[t.ID] = t
	m.applyDelta(t.AccountID, t.Delta())
	return t, nil
}

func (m *memStore) GetTransaction(_ context.Context, userID, id string) (core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[id]
	if !ok || t.UserID != userID {
		return core.Transaction{}, core.ErrNotFound
	}
	return t, nil
}

func (m *memStore) UpdateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.txs[t.ID]
	if !ok || old.UserID != t.UserID {
		return core.Transaction{}, core.ErrNotFound
	}
	if a, ok := m.accounts[t.AccountID]; !ok || a.UserID != t.UserID {
		return core.Transaction{}, core.ErrNotFound
	}
	t.Status = old.Status
	m.applyDelta(old.AccountID, old.Delta().Neg())
	m.applyDelta(t.AccountID, t.Delta())
	m.txs[t.ID] = t
	return t, nil
}

func (m *memStore) DeleteTransactions(_ context.Context, userID string, ids []string) ([]core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found []core.Transaction
	for _, id := range ids {
		if t, ok := m.txs[id]; ok && t.UserID == userID {
			found = append(found, t)
		}
	}
	if len(found) == 0 {
		return nil, core.ErrNotFound
	}
	for _, t := range found {
		delete(m.txs, t.ID)
		m.applyDelta(t.AccountID, t.Delta().Neg())
	}
	return found, nil
}

func (m *memStore) ListTransactionsInRange(_ context.Context, userID string, from, to time.Time) ([]core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Transaction
	for _, t := range m.txs {
		if t.UserID == userID && !t.Date.Before(from) && !t.Date.After(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) SumExpenses(_ context.Context, accountID string, from, to time.Time) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSum != nil {
		return decimal.Zero, m.failSum
	}
	total := decimal.Zero
	for _, t := range m.txs {
		if t.AccountID == accountID && t.Type == core.Expense && !t.Date.Before(from) && !t.Date.After(to) {
			total = total.Add(t.Amount)
		}
	}
	return total, nil
}

func (m *memStore) ListDueRecurring(_ context.Context, now time.Time) ([]core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Transaction
	for _, t := range m.txs {
		if t.IsDue(now) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ProcessRecurring(_ context.Context, userID, templateID string, now time.Time) (core.Transaction, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tmpl, ok := m.txs[templateID]
	if !ok || tmpl.UserID != userID {
		return core.Transaction{}, false, core.ErrNotFound
	}
	if !tmpl.IsDue(now) {
		return core.Transaction{}, false, nil
	}
	next, err := core.NextRecurringDate(now, tmpl.RecurringInterval)
	if err != nil {
		return core.Transaction{}, false, err
	}
	created := tmpl.RecurringCopy(now)
	created.ID = m.nextID("t")
	m.txs[created.ID] = created
	m.applyDelta(created.AccountID, created.Delta())

	processed := now
	tmpl.LastProcessed = &processed
	tmpl.NextRecurringDate = &next
	m.txs[templateID] = tmpl
	return created, true, nil
}

func (m *memStore) UpsertBudget(_ context.Context, userID string, amount decimal.Decimal) (core.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.budgets[userID]
	if !ok {
		b = core.Budget{ID: m.nextID("b"), UserID: userID}
	}
	b.Amount = amount
	m.budgets[userID] = b
	return b, nil
}

func (m *memStore) GetBudget(_ context.Context, userID string) (core.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.budgets[userID]
	if !ok {
		return core.Budget{}, core.ErrNotFound
	}
	return b, nil
}

func (m *memStore) ListBudgets(context.Context) ([]core.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Budget
	for _, b := range m.budgets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *memStore) MarkBudgetAlerted(_ context.Context, budgetID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for uid, b := range m.budgets {
		if b.ID == budgetID {
			// SQLite hands timestamps back in UTC
			stamp := at.UTC()
			b.LastAlertSent = &stamp
			m.budgets[uid] = b
			return nil
		}
	}
	return core.ErrNotFound
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
	err  error
}

func (r *recordingNotifier) Dispatch(_ context.Context, n notify.Notification) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(string) bool { return false }

type countingRevalidator struct {
	calls int
	err   error
}

func (c *countingRevalidator) Revalidate(context.Context, string) error {
	c.calls++
	return c.err
}

type recordingPublisher struct {
	items []string
	fail  map[string]bool
}

func (p *recordingPublisher) PublishRecurringProcess(_ context.Context, transactionID, userID string) error {
	if p.fail[transactionID] {
		return errors.New("broker unavailable")
	}
	p.items = append(p.items, userID+"/"+transactionID)
	return nil
}
