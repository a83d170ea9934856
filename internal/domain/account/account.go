package account

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrEmptyName           = errors.New("account name cannot be empty")
	ErrInvalidType         = errors.New("invalid account type")
	ErrEmptyProvider       = errors.New("provider cannot be empty")
	ErrInvalidDivisibility = errors.New("divisibility must be between 0 and 18")
	ErrNoDefaultAccount    = errors.New("no default account for type")
	ErrMultipleDefaults    = errors.New("more than one default account for type")
	ErrUnknownAccountName  = errors.New("unknown account name")
	ErrAccountTypeMismatch = errors.New("account type does not match transaction type")
)

// Type is the kind of movement an account executes. It mirrors the
// transaction types the account may serve.
type Type string

const (
	TypeDeposit  Type = "deposit"
	TypeWithdraw Type = "withdraw"
	TypeSend     Type = "send"
	TypeReceive  Type = "receive"
)

var Types = []Type{TypeDeposit, TypeWithdraw, TypeSend, TypeReceive}

func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Account is a third-party facing identity used to execute transactions.
type Account struct {
	ID                   uuid.UUID       `json:"id"`
	Name                 string          `json:"name"`
	Type                 Type            `json:"type"`
	Provider             string          `json:"provider"`
	IsDefault            bool            `json:"is_default"`
	Secret               json.RawMessage `json:"-"` // Opaque key material, never serialised
	Metadata             map[string]any  `json:"metadata,omitempty"`
	LedgerDivisibility   int32           `json:"ledger_divisibility"`
	ProviderDivisibility int32           `json:"provider_divisibility"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// NewAccount creates a new account with the given parameters
func NewAccount(name string, accountType Type, provider string, isDefault bool, ledgerDiv, providerDiv int32) (*Account, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if !accountType.Valid() {
		return nil, ErrInvalidType
	}
	if provider == "" {
		return nil, ErrEmptyProvider
	}
	if !validDivisibility(ledgerDiv) || !validDivisibility(providerDiv) {
		return nil, ErrInvalidDivisibility
	}

	now := time.Now()
	return &Account{
		ID:                   uuid.New(),
		Name:                 name,
		Type:                 accountType,
		Provider:             provider,
		IsDefault:            isDefault,
		Secret:               json.RawMessage(`{}`),
		Metadata:             map[string]any{},
		LedgerDivisibility:   ledgerDiv,
		ProviderDivisibility: providerDiv,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

func validDivisibility(d int32) bool {
	return d >= 0 && d <= 18
}

// MetadataString returns a string metadata value or "".
func (a *Account) MetadataString(key string) string {
	if v, ok := a.Metadata[key].(string); ok {
		return v
	}
	return ""
}
