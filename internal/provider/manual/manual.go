// Package manual is a pass-through provider for accounts whose funds are
// moved by operators outside the adapter. Execution is recorded, not
// performed, and webhooks use a small generic JSON format.
package manual

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rehive/adapter-framework/internal/domain/account"
	"github.com/rehive/adapter-framework/internal/domain/money"
	"github.com/rehive/adapter-framework/internal/domain/user"
	"github.com/rehive/adapter-framework/internal/provider"
	"github.com/shopspring/decimal"
)

const Name = "manual"

var (
	ErrMissingExternalID = errors.New("webhook payload has no external_id")
	ErrInvalidAmount     = errors.New("webhook amount must be a positive decimal")
)

// Provider implements provider.Provider and provider.WebhookInterpreter.
type Provider struct{}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) Name() string {
	return Name
}

// AccountReference returns the "reference" metadata value, falling back to
// the account name.
func (p *Provider) AccountReference(_ context.Context, acct *account.Account) (string, error) {
	if ref := acct.MetadataString("reference"); ref != "" {
		return ref, nil
	}
	return acct.Name, nil
}

// UserReference is the user's platform identifier, optionally prefixed by
// the account's "user_reference_prefix" metadata.
func (p *Provider) UserReference(_ context.Context, acct *account.Account, u *user.User) (string, error) {
	return acct.MetadataString("user_reference_prefix") + u.Identifier, nil
}

// AccountBalance reports the operator-maintained "balance" metadata, a
// decimal string in currency units.
func (p *Provider) AccountBalance(_ context.Context, acct *account.Account) (*provider.Balance, error) {
	raw := acct.MetadataString("balance")
	if raw == "" {
		return nil, &provider.Error{Provider: Name, Op: "read balance", Err: provider.ErrUnsupported}
	}

	value, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, &provider.Error{Provider: Name, Op: "read balance", Err: err}
	}
	amount, err := money.ToMinor(value, acct.ProviderDivisibility)
	if err != nil {
		return nil, &provider.Error{Provider: Name, Op: "read balance", Err: err}
	}

	return &provider.Balance{Amount: amount, Currency: acct.MetadataString("currency")}, nil
}

// Execute accepts every request and derives a stable external id from the
// transaction id.
func (p *Provider) Execute(_ context.Context, acct *account.Account, req *provider.ExecuteRequest) (*provider.ExecuteResult, error) {
	raw, err := json.Marshal(map[string]any{
		"mode":     "manual",
		"account":  acct.Name,
		"amount":   req.Amount,
		"currency": req.Currency,
	})
	if err != nil {
		return nil, &provider.Error{Provider: Name, Op: "execute", Err: err}
	}

	return &provider.ExecuteResult{
		ExternalID:  fmt.Sprintf("manual-%s", req.TransactionID),
		RawResponse: raw,
	}, nil
}

type webhookPayload struct {
	ExternalID    string         `json:"external_id"`
	Amount        string         `json:"amount"`
	Currency      string         `json:"currency"`
	FromReference string         `json:"from_reference"`
	Confirmed     bool           `json:"confirmed"`
	Metadata      map[string]any `json:"metadata"`
}

// InterpretWebhook reads the generic receive notification:
// {"external_id", "amount" (decimal string), "currency", "from_reference", "confirmed"}.
func (p *Provider) InterpretWebhook(_ context.Context, acct *account.Account, webhookType string, payload json.RawMessage) (*provider.ReceiveEvent, error) {
	if webhookType != "receive" && webhookType != "transaction" {
		return nil, nil
	}

	var body webhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, &provider.Error{Provider: Name, Op: "interpret webhook", Err: err}
	}
	if body.ExternalID == "" {
		return nil, &provider.Error{Provider: Name, Op: "interpret webhook", Err: ErrMissingExternalID}
	}

	value, err := decimal.NewFromString(body.Amount)
	if err != nil || !value.IsPositive() {
		return nil, &provider.Error{Provider: Name, Op: "interpret webhook", Err: ErrInvalidAmount}
	}
	amount, err := money.ToMinor(value, acct.ProviderDivisibility)
	if err != nil {
		return nil, &provider.Error{Provider: Name, Op: "interpret webhook", Err: err}
	}

	return &provider.ReceiveEvent{
		ExternalID:    body.ExternalID,
		Amount:        amount,
		Currency:      body.Currency,
		FromReference: body.FromReference,
		Confirmed:     body.Confirmed,
		Metadata:      body.Metadata,
		RawResponse:   payload,
	}, nil
}

var (
	_ provider.Provider           = (*Provider)(nil)
	_ provider.WebhookInterpreter = (*Provider)(nil)
)
