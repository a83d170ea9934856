package transaction

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Transaction is a single money movement reconciled between a provider and
// the platform ledger.
type Transaction struct {
	ID                uuid.UUID       `json:"id"`
	AccountID         uuid.UUID       `json:"account_id"`
	UserID            *uuid.UUID      `json:"user_id,omitempty"`
	Type              Type            `json:"tx_type"`
	Status            Status          `json:"status"`
	ExternalID        string          `json:"external_id,omitempty"`
	PlatformCode      string          `json:"platform_code,omitempty"`
	ToReference       string          `json:"to_reference,omitempty"`
	FromReference     string          `json:"from_reference,omitempty"`
	Amount            int64           `json:"amount"` // Stored in minor units
	Fee               int64           `json:"fee"`
	Currency          string          `json:"currency"`
	Note              string          `json:"note,omitempty"`
	Metadata          map[string]any  `json:"metadata,omitempty"`
	ProviderResponse  json.RawMessage `json:"provider_response,omitempty"`
	PlatformResponse  json.RawMessage `json:"platform_response,omitempty"`
	ProviderConfirmed bool            `json:"provider_confirmed"`
	Version           int             `json:"version"` // For optimistic locking
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
}

// Params carries the caller-supplied fields of a new transaction.
type Params struct {
	AccountID     uuid.UUID
	UserID        *uuid.UUID
	Type          Type
	ExternalID    string
	ToReference   string
	FromReference string
	Amount        int64
	Fee           int64
	Currency      string
	Note          string
	Metadata      map[string]any
}

// New validates p and returns a Waiting transaction.
func New(p Params, now time.Time) (*Transaction, error) {
	if !p.Type.Valid() {
		return nil, ErrInvalidType
	}
	if p.AccountID == uuid.Nil {
		return nil, ErrMissingAccount
	}
	if p.Amount < 0 {
		return nil, ErrNegativeAmount
	}
	if p.Fee < 0 {
		return nil, ErrNegativeFee
	}
	if p.Currency == "" {
		return nil, ErrMissingCurrency
	}
	if err := validateReferences(p); err != nil {
		return nil, err
	}

	metadata := p.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	return &Transaction{
		ID:            uuid.New(),
		AccountID:     p.AccountID,
		UserID:        p.UserID,
		Type:          p.Type,
		Status:        StatusWaiting,
		ExternalID:    p.ExternalID,
		ToReference:   p.ToReference,
		FromReference: p.FromReference,
		Amount:        p.Amount,
		Fee:           p.Fee,
		Currency:      p.Currency,
		Note:          p.Note,
		Metadata:      metadata,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func validateReferences(p Params) error {
	switch p.Type {
	case TypeDeposit, TypeReceive:
		if p.ToReference == "" {
			return ErrMissingReference
		}
	case TypeWithdraw:
		if p.FromReference == "" {
			return ErrMissingReference
		}
	case TypeSend:
		if p.ToReference == "" || p.FromReference == "" {
			return ErrMissingReference
		}
	}
	return nil
}

// HasExecuted reports whether the provider has already been asked to move
// funds for this transaction.
func (t *Transaction) HasExecuted() bool {
	return t.ExternalID != "" || len(t.ProviderResponse) > 0
}

// CheckExecutable reports why the provider must not be asked to execute the
// transaction, or nil when it may.
func (t *Transaction) CheckExecutable() error {
	if t.Status.IsTerminal() {
		return t.invalid("execute")
	}
	if t.HasExecuted() {
		return &AlreadyExecutedError{TransactionID: t.ID, ExternalID: t.ExternalID}
	}
	if t.Status != StatusWaiting {
		return t.invalid("execute")
	}
	return nil
}

// RecordExecution stores the provider's acceptance and moves Waiting to
// Confirmed.
func (t *Transaction) RecordExecution(externalID string, raw json.RawMessage, now time.Time) error {
	if err := t.CheckExecutable(); err != nil {
		return err
	}

	t.ExternalID = externalID
	t.ProviderResponse = raw
	t.ProviderConfirmed = true
	return t.transition(StatusConfirmed, now)
}

// ConfirmWithProvider records that the third party settled the movement.
// A Waiting transaction becomes Confirmed; a Pending one keeps its status and
// now owes a platform confirmation.
func (t *Transaction) ConfirmWithProvider(raw json.RawMessage, now time.Time) error {
	if t.Status.IsTerminal() {
		return t.invalid("confirm with provider")
	}
	if len(raw) > 0 {
		t.ProviderResponse = raw
	}
	t.ProviderConfirmed = true
	if t.Status == StatusWaiting {
		return t.transition(StatusConfirmed, now)
	}
	t.touch(now)
	return nil
}

// RecordUpload stores the platform code returned for the created ledger
// transaction. fastComplete finalises the transaction immediately.
func (t *Transaction) RecordUpload(platformCode string, raw json.RawMessage, fastComplete bool, now time.Time) error {
	if t.Status != StatusWaiting && t.Status != StatusConfirmed {
		return t.invalid("upload")
	}
	if t.PlatformCode != "" {
		return ErrFieldAlreadySet
	}

	t.PlatformCode = platformCode
	t.PlatformResponse = raw
	if fastComplete {
		return t.transition(StatusComplete, now)
	}
	return t.transition(StatusPending, now)
}

// RecordConfirmation completes a transaction the platform acknowledged.
func (t *Transaction) RecordConfirmation(raw json.RawMessage, now time.Time) error {
	if t.Status != StatusPending && t.Status != StatusConfirmed {
		return t.invalid("confirm")
	}
	if t.PlatformCode == "" {
		return t.invalid("confirm")
	}

	t.PlatformResponse = raw
	return t.transition(StatusComplete, now)
}

// Fail moves a non-terminal transaction to Failed. raw is the diagnostic of
// whichever side rejected it; platform is true when the platform did.
func (t *Transaction) Fail(operation string, raw json.RawMessage, platform bool, now time.Time) error {
	if t.Status.IsTerminal() {
		return t.invalid(operation)
	}

	if platform {
		t.PlatformResponse = raw
	} else {
		t.ProviderResponse = raw
	}
	return t.transition(StatusFailed, now)
}

// Cancel moves a non-terminal transaction to Cancelled. It reports false when
// the transaction was already cancelled.
func (t *Transaction) Cancel(now time.Time) (bool, error) {
	if t.Status == StatusCancelled {
		return false, nil
	}
	if t.Status.IsTerminal() {
		return false, t.invalid("cancel")
	}
	return true, t.transition(StatusCancelled, now)
}

// AwaitsPlatformConfirmation reports whether the platform has accepted the
// transaction and still needs to be told the provider settled it.
func (t *Transaction) AwaitsPlatformConfirmation() bool {
	return t.PlatformCode != "" && t.ProviderConfirmed && (t.Status == StatusPending || t.Status == StatusConfirmed)
}

func (t *Transaction) transition(to Status, now time.Time) error {
	if !CanTransition(t.Status, to) {
		return t.invalid("move to " + string(to))
	}

	t.Status = to
	t.touch(now)
	if to.IsTerminal() {
		completed := now
		if completed.Before(t.CreatedAt) {
			completed = t.CreatedAt
		}
		t.CompletedAt = &completed
	}
	return nil
}

func (t *Transaction) touch(now time.Time) {
	t.UpdatedAt = now
	t.Version++
}

func (t *Transaction) invalid(op string) error {
	return &InvalidStateError{TransactionID: t.ID, Status: t.Status, Operation: op}
}
