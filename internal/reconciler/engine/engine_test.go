package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rehive/adapter-framework/internal/domain/account"
	"github.com/rehive/adapter-framework/internal/domain/shared"
	"github.com/rehive/adapter-framework/internal/domain/transaction"
	"github.com/rehive/adapter-framework/internal/domain/user"
	"github.com/rehive/adapter-framework/internal/platform/ledgerapi"
	"github.com/rehive/adapter-framework/internal/provider"
	"github.com/rehive/adapter-framework/internal/provider/manual"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type harness struct {
	engine   *Engine
	repo     *memRepo
	platform *MockPlatform
	retries  *recordingRetries
	audit    *memAudit
	stub     *stubProvider
	users    memUsers
}

func newHarness(t *testing.T, fastComplete ...string) *harness {
	t.Helper()

	mustAccount := func(name string, typ account.Type, prov string, isDefault bool, ledgerDiv, providerDiv int32) *account.Account {
		acct, err := account.NewAccount(name, typ, prov, isDefault, ledgerDiv, providerDiv)
		require.NoError(t, err)
		return acct
	}
	dir, err := account.NewDirectory([]*account.Account{
		mustAccount("deposit-main", account.TypeDeposit, manual.Name, true, 2, 2),
		mustAccount("withdraw-main", account.TypeWithdraw, "stub", true, 2, 8),
		mustAccount("withdraw-alt", account.TypeWithdraw, manual.Name, false, 2, 2),
		mustAccount("send-main", account.TypeSend, manual.Name, true, 2, 2),
		mustAccount("receive-main", account.TypeReceive, manual.Name, true, 2, 8),
	})
	require.NoError(t, err)

	stub := &stubProvider{}
	registry, err := provider.NewRegistry(manual.New(), stub)
	require.NoError(t, err)

	h := &harness{
		repo:     newMemRepo(),
		platform: new(MockPlatform),
		retries:  &recordingRetries{},
		audit:    &memAudit{},
		stub:     stub,
		users:    memUsers{},
	}
	h.engine = New(Dependencies{
		Transactions: h.repo,
		Users:        h.users,
		Accounts:     dir,
		Providers:    registry,
		Platform:     h.platform,
		Locker:       &keyLocker{},
		Retries:      h.retries,
		Audit:        h.audit,
	}, NewPolicy(fastComplete), slog.New(slog.NewTextHandler(io.Discard, nil)))
	return h
}

func (h *harness) addUser(identifier string) *user.User {
	u := &user.User{ID: uuid.New(), Identifier: identifier}
	h.users[identifier] = u
	return u
}

func (h *harness) createDeposit(t *testing.T, u *user.User) *transaction.Transaction {
	t.Helper()
	tx, err := h.engine.CreateTransaction(context.Background(), &CreateRequest{
		Type:          transaction.TypeDeposit,
		User:          u,
		Amount:        1000,
		Currency:      "USD",
		FromReference: "bank-1",
	})
	require.NoError(t, err)
	return tx
}

func TestEngine_WithdrawReachesComplete(t *testing.T) {
	h := newHarness(t, "deposit")
	ctx := context.Background()
	u := h.addUser("U1")
	h.stub.result = &provider.ExecuteResult{ExternalID: "ext-1", RawResponse: json.RawMessage(`{"id":"ext-1"}`)}

	h.platform.On("CreateTransaction", mock.Anything, "withdraw", mock.MatchedBy(func(req *ledgerapi.CreateTransactionRequest) bool {
		return req.Amount == 500000 && req.Currency == "USD" && req.FromReference == "U1" && req.ToReference == ""
	})).Return(platformResult("TXC-100"), nil).Once()
	h.platform.On("ConfirmTransaction", mock.Anything, "TXC-100").Return(platformResult("TXC-100"), nil).Once()

	created, err := h.engine.CreateTransaction(ctx, &CreateRequest{
		Type:     transaction.TypeWithdraw,
		User:     u,
		Amount:   500000,
		Currency: "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusWaiting, created.Status)
	assert.Equal(t, "U1", created.FromReference)

	tx, err := h.engine.Process(ctx, created.ID)
	require.NoError(t, err)

	assert.Equal(t, transaction.StatusComplete, tx.Status)
	assert.Equal(t, "ext-1", tx.ExternalID)
	assert.Equal(t, "TXC-100", tx.PlatformCode)
	require.NotNil(t, tx.CompletedAt)
	assert.False(t, tx.CompletedAt.Before(tx.CreatedAt))

	require.Len(t, h.stub.requests, 1)
	assert.Equal(t, int64(500000000000), h.stub.requests[0].Amount, "ledger cents rescaled to provider divisibility 8")
	assert.Equal(t, int64(500000), h.stub.requests[0].LedgerAmount)

	stored := h.repo.get(created.ID)
	assert.Equal(t, transaction.StatusComplete, stored.Status)
	assert.Equal(t, []transaction.Status{
		transaction.StatusWaiting,
		transaction.StatusConfirmed,
		transaction.StatusPending,
		transaction.StatusComplete,
	}, h.audit.statuses(created.ID))
	h.platform.AssertExpectations(t)
}

func TestEngine_DepositFastPath(t *testing.T) {
	h := newHarness(t, "deposit")
	ctx := context.Background()
	created := h.createDeposit(t, h.addUser("U1"))
	assert.Equal(t, "U1", created.ToReference)

	h.platform.On("CreateTransaction", mock.Anything, "deposit", mock.MatchedBy(func(req *ledgerapi.CreateTransactionRequest) bool {
		return req.ToReference == "U1" && req.FromReference == "bank-1" && req.Metadata != nil
	})).Return(platformResult("TXC-1"), nil).Once()

	tx, err := h.engine.Process(ctx, created.ID)
	require.NoError(t, err)

	assert.Equal(t, transaction.StatusComplete, tx.Status)
	assert.NotContains(t, h.audit.statuses(created.ID), transaction.StatusPending)
	h.platform.AssertNotCalled(t, "ConfirmTransaction", mock.Anything, mock.Anything)

	_, err = h.engine.Cancel(ctx, created.ID)
	assert.ErrorIs(t, err, &transaction.InvalidStateError{})
}

func TestEngine_CancelledTransactionRejectsEveryStep(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.createDeposit(t, h.addUser("U1"))

	tx, err := h.engine.Cancel(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusCancelled, tx.Status)
	assert.Equal(t, []uuid.UUID{created.ID}, h.retries.cancelled)

	before := h.repo.get(created.ID)

	_, err = h.engine.Execute(ctx, created.ID)
	assert.ErrorIs(t, err, &transaction.InvalidStateError{})
	_, err = h.engine.UploadToPlatform(ctx, created.ID, 0)
	assert.ErrorIs(t, err, &transaction.InvalidStateError{})
	_, err = h.engine.ConfirmOnPlatform(ctx, created.ID, 0)
	assert.ErrorIs(t, err, &transaction.InvalidStateError{})

	again, err := h.engine.Cancel(ctx, created.ID)
	require.NoError(t, err, "cancelling twice is a no-op")
	assert.Equal(t, transaction.StatusCancelled, again.Status)

	assert.Equal(t, before, h.repo.get(created.ID))
	h.platform.AssertNotCalled(t, "CreateTransaction", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, h.stub.requests)
}

func TestEngine_ExecuteTwice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.createDeposit(t, h.addUser("U1"))

	tx, err := h.engine.Execute(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusConfirmed, tx.Status)
	assert.Equal(t, "manual-"+created.ID.String(), tx.ExternalID)

	_, err = h.engine.Execute(ctx, created.ID)
	assert.ErrorIs(t, err, &transaction.AlreadyExecutedError{})
}

func TestEngine_ProviderFailureFailsTransaction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.addUser("U1")
	h.stub.err = &provider.Error{Provider: "stub", Op: "execute", Err: errors.New("insufficient funds")}

	created, err := h.engine.CreateTransaction(ctx, &CreateRequest{Type: transaction.TypeWithdraw, User: u, Amount: 100, Currency: "USD"})
	require.NoError(t, err)

	tx, err := h.engine.Process(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusFailed, tx.Status)

	var diagnostic map[string]string
	require.NoError(t, json.Unmarshal(tx.ProviderResponse, &diagnostic))
	assert.Equal(t, "insufficient funds", diagnostic["error"])
	assert.Equal(t, "stub", diagnostic["provider"])
	h.platform.AssertNotCalled(t, "CreateTransaction", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_UploadIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.createDeposit(t, h.addUser("U1"))

	h.platform.On("CreateTransaction", mock.Anything, "deposit", mock.Anything).Return(platformResult("TXC-7"), nil).Once()

	tx, err := h.engine.UploadToPlatform(ctx, created.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusPending, tx.Status)
	assert.Equal(t, "TXC-7", tx.PlatformCode)

	// Not yet settled with the provider, so a second upload has nothing to do.
	tx, err = h.engine.UploadToPlatform(ctx, created.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusPending, tx.Status)

	h.platform.On("ConfirmTransaction", mock.Anything, "TXC-7").Return(platformResult("TXC-7"), nil).Once()
	stored := h.repo.get(created.ID)
	stored.ProviderConfirmed = true
	stored.Version++
	require.NoError(t, h.repo.Update(ctx, &stored))

	tx, err = h.engine.UploadToPlatform(ctx, created.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusComplete, tx.Status)
	assert.Equal(t, "TXC-7", tx.PlatformCode)

	h.platform.AssertNumberOfCalls(t, "CreateTransaction", 1)
	h.platform.AssertExpectations(t)
}

func TestEngine_ConcurrentUploadsCreateOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.createDeposit(t, h.addUser("U1"))

	h.platform.On("CreateTransaction", mock.Anything, "deposit", mock.Anything).Return(platformResult("TXC-9"), nil).Once()

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.UploadToPlatform(ctx, created.ID, 0)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	h.platform.AssertNumberOfCalls(t, "CreateTransaction", 1)
	assert.Equal(t, "TXC-9", h.repo.get(created.ID).PlatformCode)
}

func TestEngine_PlatformRejectionFailsTransaction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.createDeposit(t, h.addUser("U1"))

	rejection := &shared.RejectionError{Op: "create deposit transaction", StatusCode: 400, Body: []byte(`{"message":"unknown user"}`)}
	h.platform.On("CreateTransaction", mock.Anything, "deposit", mock.Anything).Return(nil, rejection).Once()

	tx, err := h.engine.UploadToPlatform(ctx, created.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusFailed, tx.Status)
	assert.Empty(t, h.retries.scheduled)

	var diagnostic struct {
		Status int            `json:"status"`
		Data   map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(h.repo.get(created.ID).PlatformResponse, &diagnostic))
	assert.Equal(t, 400, diagnostic.Status)
	assert.Equal(t, "unknown user", diagnostic.Data["message"])
}

func TestEngine_TransportFailureSchedulesRetry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.createDeposit(t, h.addUser("U1"))
	before := h.repo.get(created.ID)

	cause := &shared.TransportError{Op: "create deposit transaction", Err: errors.New("connection refused")}
	h.platform.On("CreateTransaction", mock.Anything, "deposit", mock.Anything).Return(nil, cause).Once()

	tx, err := h.engine.UploadToPlatform(ctx, created.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusWaiting, tx.Status)

	require.Len(t, h.retries.scheduled, 1)
	assert.Equal(t, created.ID, h.retries.scheduled[0].TransactionID)
	assert.Equal(t, 4, h.retries.scheduled[0].Attempt)
	assert.ErrorIs(t, h.retries.scheduled[0].Cause, cause)

	assert.Equal(t, before, h.repo.get(created.ID), "transport failures leave the record untouched")
}

func TestEngine_ConfirmTransportFailureKeepsPlatformCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.addUser("U1")
	h.stub.result = &provider.ExecuteResult{ExternalID: "ext-2", RawResponse: json.RawMessage(`{}`)}

	created, err := h.engine.CreateTransaction(ctx, &CreateRequest{Type: transaction.TypeWithdraw, User: u, Amount: 100, Currency: "USD"})
	require.NoError(t, err)

	h.platform.On("CreateTransaction", mock.Anything, "withdraw", mock.Anything).Return(platformResult("TXC-2"), nil).Once()
	h.platform.On("ConfirmTransaction", mock.Anything, "TXC-2").Return(nil, &shared.TransportError{Op: "confirm transaction", Err: context.DeadlineExceeded}).Once()

	tx, err := h.engine.Process(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusPending, tx.Status)
	assert.Equal(t, "TXC-2", tx.PlatformCode)
	require.Len(t, h.retries.scheduled, 1)
	assert.Equal(t, 1, h.retries.scheduled[0].Attempt)

	h.platform.On("ConfirmTransaction", mock.Anything, "TXC-2").Return(platformResult("TXC-2"), nil).Once()
	tx, err = h.engine.UploadToPlatform(ctx, created.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusComplete, tx.Status)
	h.platform.AssertNumberOfCalls(t, "CreateTransaction", 1)
}

func TestEngine_StoresPlatformCodeWhenCallerGivesUp(t *testing.T) {
	h := newHarness(t)
	h.repo.honourCancel = true
	u := h.addUser("U1")
	h.stub.result = &provider.ExecuteResult{ExternalID: "ext-3", RawResponse: json.RawMessage(`{}`)}

	created, err := h.engine.CreateTransaction(context.Background(), &CreateRequest{Type: transaction.TypeWithdraw, User: u, Amount: 100, Currency: "USD"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.platform.On("CreateTransaction", mock.Anything, "withdraw", mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(platformResult("TXC-100"), nil).Once()
	h.platform.On("ConfirmTransaction", mock.Anything, "TXC-100").
		Return(nil, &shared.TransportError{Op: "confirm transaction", Err: context.Canceled}).Once()

	tx, err := h.engine.Process(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusPending, tx.Status)

	stored := h.repo.get(created.ID)
	assert.Equal(t, "TXC-100", stored.PlatformCode)
	assert.Equal(t, transaction.StatusPending, stored.Status)
	require.Len(t, h.retries.scheduled, 1)
	assert.Equal(t, 1, h.retries.scheduled[0].Attempt)

	h.platform.On("ConfirmTransaction", mock.Anything, "TXC-100").Return(platformResult("TXC-100"), nil).Once()
	tx, err = h.engine.UploadToPlatform(context.Background(), created.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusComplete, tx.Status)
	h.platform.AssertNumberOfCalls(t, "CreateTransaction", 1)
}

func TestEngine_StoresExecutionWhenCallerGivesUp(t *testing.T) {
	h := newHarness(t)
	h.repo.honourCancel = true
	u := h.addUser("U1")

	created, err := h.engine.CreateTransaction(context.Background(), &CreateRequest{Type: transaction.TypeWithdraw, User: u, Amount: 100, Currency: "USD"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.stub.result = &provider.ExecuteResult{ExternalID: "ext-4", RawResponse: json.RawMessage(`{}`)}
	h.stub.onExecute = cancel

	tx, err := h.engine.Execute(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusConfirmed, tx.Status)

	stored := h.repo.get(created.ID)
	assert.Equal(t, "ext-4", stored.ExternalID)
	assert.True(t, stored.ProviderConfirmed)

	_, err = h.engine.Execute(context.Background(), created.ID)
	assert.ErrorIs(t, err, &transaction.AlreadyExecutedError{})
	assert.Len(t, h.stub.requests, 1)
}

func TestEngine_ConfirmRequiresProviderSettlement(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.createDeposit(t, h.addUser("U1"))

	h.platform.On("CreateTransaction", mock.Anything, "deposit", mock.Anything).Return(platformResult("TXC-5"), nil).Once()
	tx, err := h.engine.UploadToPlatform(ctx, created.ID, 0)
	require.NoError(t, err)
	require.Equal(t, transaction.StatusPending, tx.Status)
	require.False(t, tx.ProviderConfirmed)
	before := h.repo.get(created.ID)

	_, err = h.engine.ConfirmOnPlatform(ctx, created.ID, 0)
	var stateErr *transaction.InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, transaction.StatusPending, stateErr.Status)

	assert.Equal(t, before, h.repo.get(created.ID))
	h.platform.AssertNotCalled(t, "ConfirmTransaction", mock.Anything, mock.Anything)
}

func TestEngine_CompletedNeverBeforeCreated(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.createDeposit(t, h.addUser("U1"))

	h.engine.now = func() time.Time { return created.CreatedAt.Add(-time.Hour) }
	tx, err := h.engine.Cancel(ctx, created.ID)
	require.NoError(t, err)

	require.NotNil(t, tx.CompletedAt)
	assert.False(t, tx.CompletedAt.Before(tx.CreatedAt))
}

func TestEngine_FailExhausted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.createDeposit(t, h.addUser("U1"))

	require.NoError(t, h.engine.FailExhausted(ctx, created.ID, errors.New("platform unreachable")))
	stored := h.repo.get(created.ID)
	assert.Equal(t, transaction.StatusFailed, stored.Status)
	assert.JSONEq(t, `{"error":"platform unreachable"}`, string(stored.PlatformResponse))

	require.NoError(t, h.engine.FailExhausted(ctx, created.ID, errors.New("again")))
	assert.Equal(t, stored, h.repo.get(created.ID))
}

func TestEngine_CreateTransaction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.addUser("U1")

	t.Run("NamedAccount", func(t *testing.T) {
		tx, err := h.engine.CreateTransaction(ctx, &CreateRequest{
			Type: transaction.TypeWithdraw, User: u, AccountName: "withdraw-alt", Amount: 10, Currency: "USD",
		})
		require.NoError(t, err)
		assert.Equal(t, "U1", tx.FromReference)
		assert.Equal(t, &u.ID, tx.UserID)
	})

	t.Run("AdminSend", func(t *testing.T) {
		tx, err := h.engine.CreateTransaction(ctx, &CreateRequest{
			Type: transaction.TypeSend, Amount: 10, Currency: "USD", FromReference: "ops", ToReference: "U2",
		})
		require.NoError(t, err)
		assert.Nil(t, tx.UserID)
		assert.Equal(t, "ops", tx.FromReference)
		assert.Equal(t, "U2", tx.ToReference)
	})

	failures := []struct {
		name   string
		req    *CreateRequest
		target error
	}{
		{"AccountOfOtherType", &CreateRequest{Type: transaction.TypeWithdraw, User: u, AccountName: "deposit-main", Amount: 1, Currency: "USD"}, account.ErrAccountTypeMismatch},
		{"UnknownAccount", &CreateRequest{Type: transaction.TypeDeposit, User: u, AccountName: "nope", Amount: 1, Currency: "USD"}, account.ErrUnknownAccountName},
		{"NegativeAmount", &CreateRequest{Type: transaction.TypeDeposit, User: u, Amount: -1, Currency: "USD"}, transaction.ErrNegativeAmount},
		{"MissingCurrency", &CreateRequest{Type: transaction.TypeDeposit, User: u, Amount: 1}, transaction.ErrMissingCurrency},
		{"SendWithoutReferences", &CreateRequest{Type: transaction.TypeSend, Amount: 1, Currency: "USD"}, transaction.ErrMissingReference},
		{"UnknownType", &CreateRequest{Type: "refund", Amount: 1, Currency: "USD"}, transaction.ErrInvalidType},
	}
	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.engine.CreateTransaction(ctx, tc.req)
			var reqErr *RequestError
			require.ErrorAs(t, err, &reqErr)
			assert.ErrorIs(t, err, tc.target)
		})
	}

	t.Run("DuplicateExternalID", func(t *testing.T) {
		req := &CreateRequest{Type: transaction.TypeDeposit, User: u, Amount: 1, Currency: "USD", ExternalID: "dup-1"}
		_, err := h.engine.CreateTransaction(ctx, req)
		require.NoError(t, err)

		_, err = h.engine.CreateTransaction(ctx, req)
		var reqErr *RequestError
		assert.ErrorAs(t, err, &reqErr)
	})
}
