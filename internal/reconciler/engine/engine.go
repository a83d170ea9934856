// Package engine drives transactions through provider execution and platform
// reconciliation. Every step runs under the transaction's lock and re-reads
// the record first, so concurrent callers and retries never act on a stale
// status.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rehive/adapter-framework/internal/domain/account"
	"github.com/rehive/adapter-framework/internal/domain/audit"
	"github.com/rehive/adapter-framework/internal/domain/money"
	"github.com/rehive/adapter-framework/internal/domain/shared"
	"github.com/rehive/adapter-framework/internal/domain/transaction"
	"github.com/rehive/adapter-framework/internal/platform/ledgerapi"
	"github.com/rehive/adapter-framework/internal/platform/metrics"
	"github.com/rehive/adapter-framework/internal/provider"
)

const (
	opExecute = "execute"
	opUpload  = "upload"
	opConfirm = "confirm"
	opCancel  = "cancel"
	opReceive = "receive"
	opExhaust = "exhaust retries"
)

// Dependencies are the collaborators an Engine is built from.
type Dependencies struct {
	Transactions transaction.Repository
	Users        UserFinder
	Accounts     *account.Directory
	Providers    ProviderResolver
	Platform     PlatformClient
	Locker       Locker
	Retries      RetryScheduler
	Audit        AuditRecorder
}

// Engine is the transaction reconciliation state machine.
type Engine struct {
	transactions transaction.Repository
	users        UserFinder
	accounts     *account.Directory
	providers    ProviderResolver
	platform     PlatformClient
	locker       Locker
	retries      RetryScheduler
	audit        AuditRecorder
	policy       Policy
	now          func() time.Time
	logger       *slog.Logger
}

func New(deps Dependencies, policy Policy, logger *slog.Logger) *Engine {
	return &Engine{
		transactions: deps.Transactions,
		users:        deps.Users,
		accounts:     deps.Accounts,
		providers:    deps.Providers,
		platform:     deps.Platform,
		locker:       deps.Locker,
		retries:      deps.Retries,
		audit:        deps.Audit,
		policy:       policy,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       logger.With("component", "engine"),
	}
}

// Get returns the stored transaction.
func (e *Engine) Get(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	return e.transactions.GetByID(ctx, id)
}

// Process runs the synchronous pipeline used by the gateway: execute with
// the provider, then upload (and confirm when due) on the platform.
func (e *Engine) Process(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	tx, err := e.Execute(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.Status.IsTerminal() {
		return tx, nil
	}
	return e.UploadToPlatform(ctx, id, 0)
}

// Execute asks the account's provider to move the funds. A provider failure
// fails the transaction; it is never retried.
func (e *Engine) Execute(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	var result *transaction.Transaction
	err := e.locker.WithLock(ctx, id, func(ctx context.Context) error {
		tx, err := e.transactions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.CheckExecutable(); err != nil {
			return err
		}

		acct, err := e.accounts.ByID(tx.AccountID)
		if err != nil {
			return err
		}
		prov, err := e.providers.For(acct)
		if err != nil {
			return err
		}

		amount, err := money.Rescale(tx.Amount, acct.LedgerDivisibility, acct.ProviderDivisibility)
		if err != nil {
			return e.failExecution(ctx, tx, prov.Name(), &provider.Error{Provider: prov.Name(), Op: opExecute, Err: err}, &result)
		}

		res, err := prov.Execute(ctx, acct, &provider.ExecuteRequest{
			TransactionID: tx.ID,
			Type:          string(tx.Type),
			Amount:        amount,
			LedgerAmount:  tx.Amount,
			Currency:      tx.Currency,
			FromReference: tx.FromReference,
			ToReference:   tx.ToReference,
			Metadata:      tx.Metadata,
		})
		// The provider has been asked; its answer is stored even when the
		// caller stops waiting.
		ctx = context.WithoutCancel(ctx)
		if err != nil {
			return e.failExecution(ctx, tx, prov.Name(), err, &result)
		}

		from := tx.Status
		if err := tx.RecordExecution(res.ExternalID, res.RawResponse, e.now()); err != nil {
			return err
		}
		if err := e.transactions.Update(ctx, tx); err != nil {
			return fmt.Errorf("failed to store execution of %s: %w", tx.ID, err)
		}

		metrics.ProviderExecutions.WithLabelValues(prov.Name(), "success").Inc()
		e.transitioned(ctx, tx, opExecute, from, 0, audit.OutcomeSucceeded, "", res.RawResponse)
		e.logger.Info("Transaction executed",
			"transaction_id", tx.ID.String(),
			"external_id", tx.ExternalID,
			"provider", prov.Name(),
		)
		result = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) failExecution(ctx context.Context, tx *transaction.Transaction, providerName string, cause error, out **transaction.Transaction) error {
	var perr *provider.Error
	if !errors.As(cause, &perr) {
		perr = &provider.Error{Provider: providerName, Op: opExecute, Err: cause}
	}

	from := tx.Status
	diagnostic := perr.Diagnostic()
	if err := tx.Fail(opExecute, diagnostic, false, e.now()); err != nil {
		return err
	}
	if err := e.transactions.Update(ctx, tx); err != nil {
		return fmt.Errorf("failed to store execution failure of %s: %w", tx.ID, err)
	}

	metrics.ProviderExecutions.WithLabelValues(providerName, "rejected").Inc()
	e.transitioned(ctx, tx, opExecute, from, 0, audit.OutcomeRejected, cause.Error(), diagnostic)
	e.logger.Warn("Provider rejected transaction",
		"transaction_id", tx.ID.String(),
		"provider", providerName,
		"error", cause,
	)
	*out = tx
	return nil
}

// UploadToPlatform creates the transaction on the platform unless it already
// carries a platform code, then confirms it when the provider has settled.
// attempt is 0 for the first call and the retry number afterwards.
//
// Creation and confirmation run under separate holds of the lock so a stored
// platform code survives a failed confirmation. Transport failures schedule
// attempt+1 and leave the record unchanged; rejections fail the transaction.
func (e *Engine) UploadToPlatform(ctx context.Context, id uuid.UUID, attempt int) (*transaction.Transaction, error) {
	var result *transaction.Transaction
	err := e.locker.WithLock(ctx, id, func(ctx context.Context) error {
		tx, err := e.transactions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if tx.Status.IsTerminal() {
			return &transaction.InvalidStateError{TransactionID: tx.ID, Status: tx.Status, Operation: opUpload}
		}
		result = tx

		if tx.PlatformCode != "" {
			e.logger.Debug("Platform code already set, skipping creation",
				"transaction_id", tx.ID.String(),
				"platform_code", tx.PlatformCode,
			)
			return nil
		}
		return e.create(ctx, tx, attempt)
	})
	if err != nil {
		return nil, err
	}
	if !result.AwaitsPlatformConfirmation() {
		return result, nil
	}
	return e.confirmIfDue(ctx, id, attempt)
}

// confirmIfDue confirms the transaction when it still awaits confirmation
// once the lock is held, and otherwise returns it as stored.
func (e *Engine) confirmIfDue(ctx context.Context, id uuid.UUID, attempt int) (*transaction.Transaction, error) {
	var result *transaction.Transaction
	err := e.locker.WithLock(ctx, id, func(ctx context.Context) error {
		tx, err := e.transactions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		result = tx
		if !tx.AwaitsPlatformConfirmation() {
			return nil
		}
		return e.confirm(ctx, tx, attempt)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// create posts the transaction to the platform. A failed call is either
// rescheduled or recorded as a rejection.
func (e *Engine) create(ctx context.Context, tx *transaction.Transaction, attempt int) error {
	if tx.Status != transaction.StatusWaiting && tx.Status != transaction.StatusConfirmed {
		return &transaction.InvalidStateError{TransactionID: tx.ID, Status: tx.Status, Operation: opUpload}
	}

	res, err := e.platform.CreateTransaction(ctx, string(tx.Type), platformRequest(tx))
	// A code handed out by the platform must be stored even when the caller
	// gave up, or the next attempt creates the transaction again.
	ctx = context.WithoutCancel(ctx)
	if err != nil {
		return e.handlePlatformFailure(ctx, tx, opUpload, attempt, err)
	}

	from := tx.Status
	if err := tx.RecordUpload(res.TxCode, res.Raw, e.policy.FastComplete(tx.Type), e.now()); err != nil {
		return err
	}
	if err := e.transactions.Update(ctx, tx); err != nil {
		return fmt.Errorf("failed to store platform code of %s: %w", tx.ID, err)
	}

	metrics.PlatformRequests.WithLabelValues(opUpload, "success").Inc()
	e.transitioned(ctx, tx, opUpload, from, attempt, audit.OutcomeSucceeded, "", res.Raw)
	e.logger.Info("Transaction uploaded to platform",
		"transaction_id", tx.ID.String(),
		"platform_code", tx.PlatformCode,
		"status", string(tx.Status),
		"attempt", attempt,
	)
	return nil
}

// ConfirmOnPlatform tells the platform the provider settled the transaction.
// Only an uploaded transaction the provider has confirmed can be confirmed.
func (e *Engine) ConfirmOnPlatform(ctx context.Context, id uuid.UUID, attempt int) (*transaction.Transaction, error) {
	var result *transaction.Transaction
	err := e.locker.WithLock(ctx, id, func(ctx context.Context) error {
		tx, err := e.transactions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !tx.AwaitsPlatformConfirmation() {
			return &transaction.InvalidStateError{TransactionID: tx.ID, Status: tx.Status, Operation: opConfirm}
		}
		if err := e.confirm(ctx, tx, attempt); err != nil {
			return err
		}
		result = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) confirm(ctx context.Context, tx *transaction.Transaction, attempt int) error {
	res, err := e.platform.ConfirmTransaction(ctx, tx.PlatformCode)
	ctx = context.WithoutCancel(ctx)
	if err != nil {
		return e.handlePlatformFailure(ctx, tx, opConfirm, attempt, err)
	}

	from := tx.Status
	if err := tx.RecordConfirmation(res.Raw, e.now()); err != nil {
		return err
	}
	if err := e.transactions.Update(ctx, tx); err != nil {
		return fmt.Errorf("failed to store confirmation of %s: %w", tx.ID, err)
	}

	metrics.PlatformRequests.WithLabelValues(opConfirm, "success").Inc()
	e.transitioned(ctx, tx, opConfirm, from, attempt, audit.OutcomeSucceeded, "", res.Raw)
	e.logger.Info("Transaction confirmed on platform",
		"transaction_id", tx.ID.String(),
		"platform_code", tx.PlatformCode,
		"attempt", attempt,
	)
	return nil
}

// handlePlatformFailure fails the transaction on a rejection and schedules
// the next attempt for anything else.
func (e *Engine) handlePlatformFailure(ctx context.Context, tx *transaction.Transaction, op string, attempt int, cause error) error {
	var rejection *shared.RejectionError
	if errors.As(cause, &rejection) {
		from := tx.Status
		diagnostic := rejectionDiagnostic(rejection)
		if err := tx.Fail(op, diagnostic, true, e.now()); err != nil {
			return err
		}
		if err := e.transactions.Update(ctx, tx); err != nil {
			return fmt.Errorf("failed to store platform rejection of %s: %w", tx.ID, err)
		}

		metrics.PlatformRequests.WithLabelValues(op, "rejected").Inc()
		e.transitioned(ctx, tx, op, from, attempt, audit.OutcomeRejected, cause.Error(), diagnostic)
		e.logger.Warn("Platform rejected transaction",
			"transaction_id", tx.ID.String(),
			"operation", op,
			"status_code", rejection.StatusCode,
		)
		return nil
	}

	if !shared.IsTransport(cause) {
		e.logger.Warn("Unclassified platform failure treated as transport",
			"transaction_id", tx.ID.String(),
			"operation", op,
			"error", cause,
		)
	}

	metrics.PlatformRequests.WithLabelValues(op, "transport").Inc()
	e.record(ctx, &audit.Event{
		TransactionID: tx.ID,
		Operation:     op,
		FromStatus:    tx.Status,
		Attempt:       attempt,
		Outcome:       audit.OutcomeRetrying,
		Detail:        cause.Error(),
	})
	e.logger.Warn("Platform unreachable, scheduling retry",
		"transaction_id", tx.ID.String(),
		"operation", op,
		"attempt", attempt,
		"error", cause,
	)

	if err := e.retries.ScheduleRetry(ctx, tx.ID, attempt+1, cause); err != nil {
		return fmt.Errorf("failed to schedule retry for %s: %w", tx.ID, err)
	}
	return nil
}

// Cancel moves a non-terminal transaction to Cancelled and drops any pending
// retry. Cancelling twice is a no-op.
func (e *Engine) Cancel(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	var result *transaction.Transaction
	err := e.locker.WithLock(ctx, id, func(ctx context.Context) error {
		tx, err := e.transactions.GetByID(ctx, id)
		if err != nil {
			return err
		}

		from := tx.Status
		changed, err := tx.Cancel(e.now())
		if err != nil {
			return err
		}
		result = tx
		if !changed {
			return nil
		}

		if err := e.transactions.Update(ctx, tx); err != nil {
			return fmt.Errorf("failed to store cancellation of %s: %w", tx.ID, err)
		}
		if err := e.retries.CancelRetries(ctx, tx.ID); err != nil {
			e.logger.Error("Failed to cancel scheduled retry", "transaction_id", tx.ID.String(), "error", err)
		}

		e.transitioned(ctx, tx, opCancel, from, 0, audit.OutcomeSucceeded, "", nil)
		e.logger.Info("Transaction cancelled", "transaction_id", tx.ID.String(), "previous_status", string(from))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FailExhausted fails a transaction whose retry budget ran out. It is only
// wired in when failing on exhaustion is enabled.
func (e *Engine) FailExhausted(ctx context.Context, id uuid.UUID, cause error) error {
	return e.locker.WithLock(ctx, id, func(ctx context.Context) error {
		tx, err := e.transactions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if tx.Status.IsTerminal() {
			return nil
		}

		from := tx.Status
		detail := "retries exhausted"
		if cause != nil {
			detail = cause.Error()
		}
		diagnostic, _ := json.Marshal(map[string]string{"error": detail})
		if err := tx.Fail(opExhaust, diagnostic, true, e.now()); err != nil {
			return err
		}
		if err := e.transactions.Update(ctx, tx); err != nil {
			return fmt.Errorf("failed to store exhaustion of %s: %w", tx.ID, err)
		}

		e.transitioned(ctx, tx, opExhaust, from, 0, audit.OutcomeRejected, detail, diagnostic)
		return nil
	})
}

// platformRequest builds the type specific creation payload.
func platformRequest(tx *transaction.Transaction) *ledgerapi.CreateTransactionRequest {
	req := &ledgerapi.CreateTransactionRequest{
		Amount:   tx.Amount,
		Currency: tx.Currency,
		Metadata: tx.Metadata,
	}
	if req.Metadata == nil {
		req.Metadata = map[string]any{}
	}

	switch tx.Type {
	case transaction.TypeWithdraw:
		req.FromReference = tx.FromReference
	case transaction.TypeDeposit, transaction.TypeReceive:
		req.ToReference = tx.ToReference
		req.FromReference = tx.FromReference
	case transaction.TypeSend:
		req.ToReference = tx.ToReference
		req.FromReference = tx.FromReference
		req.Sender = tx.FromReference
	}
	return req
}

func rejectionDiagnostic(r *shared.RejectionError) json.RawMessage {
	body := json.RawMessage(r.Body)
	if len(body) == 0 || !json.Valid(body) {
		quoted, _ := json.Marshal(string(r.Body))
		body = quoted
	}
	out, err := json.Marshal(struct {
		Status int             `json:"status"`
		Data   json.RawMessage `json:"data"`
	}{Status: r.StatusCode, Data: body})
	if err != nil {
		return nil
	}
	return out
}

func (e *Engine) transitioned(ctx context.Context, tx *transaction.Transaction, op string, from transaction.Status, attempt int, outcome, detail string, raw json.RawMessage) {
	if from != tx.Status {
		metrics.TransactionTransitions.WithLabelValues(string(tx.Type), string(tx.Status)).Inc()
	}
	e.record(ctx, &audit.Event{
		TransactionID: tx.ID,
		Operation:     op,
		FromStatus:    from,
		ToStatus:      tx.Status,
		Attempt:       attempt,
		Outcome:       outcome,
		Detail:        detail,
		Response:      string(raw),
	})
}

// record appends to the audit trail. The trail is best effort: a failure is
// logged and never fails the step it describes.
func (e *Engine) record(ctx context.Context, event *audit.Event) {
	if e.audit == nil {
		return
	}
	event.CorrelationID = CorrelationID(ctx)
	event.RecordedAt = e.now()
	if err := e.audit.Append(context.WithoutCancel(ctx), event); err != nil {
		e.logger.Error("Failed to record audit event",
			"transaction_id", event.TransactionID.String(),
			"operation", event.Operation,
			"error", err,
		)
	}
}
