// Package provider defines the capability contract a third-party value
// transfer integration offers to the reconciliation engine.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rehive/adapter-framework/internal/domain/account"
	"github.com/rehive/adapter-framework/internal/domain/user"
)

var ErrUnsupported = errors.New("operation not supported by provider")

// Balance is an account balance in the provider's own minor units.
type Balance struct {
	Amount   int64  `json:"balance"`
	Currency string `json:"currency"`
}

// ExecuteRequest asks the provider to move funds. Amount is already
// expressed at the account's provider divisibility.
type ExecuteRequest struct {
	TransactionID uuid.UUID
	Type          string
	Amount        int64
	LedgerAmount  int64
	Currency      string
	FromReference string
	ToReference   string
	Metadata      map[string]any
}

// ExecuteResult is the provider's acceptance of an execute request.
type ExecuteResult struct {
	ExternalID  string
	RawResponse json.RawMessage
}

// Provider is implemented once per third-party integration.
type Provider interface {
	Name() string
	AccountReference(ctx context.Context, acct *account.Account) (string, error)
	UserReference(ctx context.Context, acct *account.Account, u *user.User) (string, error)
	AccountBalance(ctx context.Context, acct *account.Account) (*Balance, error)
	Execute(ctx context.Context, acct *account.Account, req *ExecuteRequest) (*ExecuteResult, error)
}

// ReceiveEvent is a provider notification about funds arriving for a user.
// Amount is in provider minor units.
type ReceiveEvent struct {
	ExternalID    string
	Amount        int64
	Currency      string
	FromReference string
	Confirmed     bool
	Metadata      map[string]any
	RawResponse   json.RawMessage
}

// WebhookInterpreter is implemented by providers that push notifications.
// A nil event with a nil error means the notification needs no action.
type WebhookInterpreter interface {
	InterpretWebhook(ctx context.Context, acct *account.Account, webhookType string, payload json.RawMessage) (*ReceiveEvent, error)
}

// Error is a provider rejecting or failing an operation. It is terminal for
// the transaction it concerns.
type Error struct {
	Provider    string
	Op          string
	Err         error
	RawResponse json.RawMessage
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s failed to %s: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Diagnostic returns a JSON document describing the failure for storage on
// the transaction.
func (e *Error) Diagnostic() json.RawMessage {
	if len(e.RawResponse) > 0 && json.Valid(e.RawResponse) {
		return e.RawResponse
	}
	detail := "provider error"
	if e.Err != nil {
		detail = e.Err.Error()
	}
	out, err := json.Marshal(map[string]string{"provider": e.Provider, "operation": e.Op, "error": detail})
	if err != nil {
		return nil
	}
	return out
}
