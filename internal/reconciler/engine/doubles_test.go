package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rehive/adapter-framework/internal/domain/account"
	"github.com/rehive/adapter-framework/internal/domain/audit"
	"github.com/rehive/adapter-framework/internal/domain/transaction"
	"github.com/rehive/adapter-framework/internal/domain/user"
	"github.com/rehive/adapter-framework/internal/platform/ledgerapi"
	"github.com/rehive/adapter-framework/internal/provider"
	"github.com/stretchr/testify/mock"
)

// memRepo stores copies so the engine never shares memory with the store,
// and enforces the same version check as the Postgres repository. With
// honourCancel set, writes fail on a done context like a database call does.
type memRepo struct {
	mu           sync.Mutex
	txs          map[uuid.UUID]transaction.Transaction
	honourCancel bool
}

func newMemRepo() *memRepo {
	return &memRepo{txs: make(map[uuid.UUID]transaction.Transaction)}
}

func (r *memRepo) Create(ctx context.Context, tx *transaction.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.honourCancel && ctx.Err() != nil {
		return ctx.Err()
	}
	if tx.ExternalID != "" {
		for _, existing := range r.txs {
			if existing.ExternalID == tx.ExternalID {
				return transaction.ErrDuplicateExternalID{ExternalID: tx.ExternalID}
			}
		}
	}
	r.txs[tx.ID] = *tx
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok {
		return nil, transaction.ErrTransactionNotFound{TransactionID: id}
	}
	return &tx, nil
}

func (r *memRepo) GetByExternalID(_ context.Context, externalID string) (*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range r.txs {
		if tx.ExternalID == externalID {
			return &tx, nil
		}
	}
	return nil, nil
}

func (r *memRepo) Update(ctx context.Context, tx *transaction.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.honourCancel && ctx.Err() != nil {
		return ctx.Err()
	}
	stored, ok := r.txs[tx.ID]
	if !ok {
		return transaction.ErrTransactionNotFound{TransactionID: tx.ID}
	}
	if stored.Version != tx.Version-1 {
		return transaction.ErrConcurrentModification{TransactionID: tx.ID}
	}
	r.txs[tx.ID] = *tx
	return nil
}

func (r *memRepo) ListStale(_ context.Context, before time.Time, limit int) ([]*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*transaction.Transaction
	for _, tx := range r.txs {
		if !tx.Status.IsTerminal() && tx.UpdatedAt.Before(before) && len(out) < limit {
			tx := tx
			out = append(out, &tx)
		}
	}
	return out, nil
}

func (r *memRepo) get(id uuid.UUID) transaction.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.txs[id]
}

type keyLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func (l *keyLocker) WithLock(ctx context.Context, key uuid.UUID, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[uuid.UUID]*sync.Mutex)
	}
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}

type MockPlatform struct {
	mock.Mock
}

func (m *MockPlatform) CreateTransaction(ctx context.Context, txType string, req *ledgerapi.CreateTransactionRequest) (*ledgerapi.Result, error) {
	args := m.Called(ctx, txType, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerapi.Result), args.Error(1)
}

func (m *MockPlatform) ConfirmTransaction(ctx context.Context, txCode string) (*ledgerapi.Result, error) {
	args := m.Called(ctx, txCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerapi.Result), args.Error(1)
}

type scheduledRetry struct {
	TransactionID uuid.UUID
	Attempt       int
	Cause         error
}

type recordingRetries struct {
	mu        sync.Mutex
	scheduled []scheduledRetry
	cancelled []uuid.UUID
}

func (r *recordingRetries) ScheduleRetry(_ context.Context, id uuid.UUID, attempt int, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled = append(r.scheduled, scheduledRetry{TransactionID: id, Attempt: attempt, Cause: cause})
	return nil
}

func (r *recordingRetries) CancelRetries(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, id)
	return nil
}

type memAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (a *memAudit) Append(_ context.Context, event *audit.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, *event)
	return nil
}

func (a *memAudit) statuses(id uuid.UUID) []transaction.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []transaction.Status
	for _, e := range a.events {
		if e.TransactionID == id && e.ToStatus != "" {
			out = append(out, e.ToStatus)
		}
	}
	return out
}

type memUsers map[string]*user.User

func (m memUsers) GetByIdentifier(_ context.Context, identifier string) (*user.User, error) {
	return m[identifier], nil
}

// stubProvider answers Execute with a canned result or error and remembers
// what it was asked.
type stubProvider struct {
	mu        sync.Mutex
	requests  []provider.ExecuteRequest
	result    *provider.ExecuteResult
	err       error
	onExecute func()
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) AccountReference(_ context.Context, acct *account.Account) (string, error) {
	return "stub:" + acct.Name, nil
}

func (p *stubProvider) UserReference(_ context.Context, _ *account.Account, u *user.User) (string, error) {
	return "stub:" + u.Identifier, nil
}

func (p *stubProvider) AccountBalance(context.Context, *account.Account) (*provider.Balance, error) {
	return &provider.Balance{Amount: 0, Currency: "USD"}, nil
}

func (p *stubProvider) Execute(_ context.Context, _ *account.Account, req *provider.ExecuteRequest) (*provider.ExecuteResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, *req)
	if p.onExecute != nil {
		p.onExecute()
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

func platformResult(code string) *ledgerapi.Result {
	raw, _ := json.Marshal(map[string]any{"data": map[string]string{"tx_code": code}})
	return &ledgerapi.Result{TxCode: code, Raw: raw}
}
