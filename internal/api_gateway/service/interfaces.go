package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rehive/adapter-framework/internal/domain/account"
	"github.com/rehive/adapter-framework/internal/domain/audit"
	"github.com/rehive/adapter-framework/internal/domain/job"
	"github.com/rehive/adapter-framework/internal/domain/transaction"
	"github.com/rehive/adapter-framework/internal/domain/user"
	"github.com/rehive/adapter-framework/internal/reconciler/engine"
)

// TransactionService defines the interface for transaction operations
type TransactionService interface {
	// CreateTransaction stores the transaction and runs it through the provider
	// and the platform inline. Returns *engine.RequestError when the request
	// cannot be accepted; later failures are reflected in the returned status.
	CreateTransaction(ctx context.Context, req *engine.CreateRequest) (*transaction.Transaction, error)

	// GetTransactionByID returns ErrTransactionNotFound if the transaction doesn't exist
	GetTransactionByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)

	CancelTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)

	// GetTransactionEvents returns one page of the audit trail, oldest first
	GetTransactionEvents(ctx context.Context, id uuid.UUID, page, perPage int) ([]*audit.Event, error)
}

// OperatingService exposes provider facing account details to administrators
type OperatingService interface {
	AccountReference(ctx context.Context, t account.Type) (string, error)

	// AccountBalance reports the default account's balance in ledger minor units
	AccountBalance(ctx context.Context, t account.Type) (*Balance, error)

	// UserReference returns where u should send funds to be credited
	UserReference(ctx context.Context, u *user.User) (string, error)
}

// AuthService resolves platform tokens into ledger users
type AuthService interface {
	// AuthenticateUser returns ErrUnauthenticated for a token the platform
	// refuses and ErrCompanyMismatch for a user of another company
	AuthenticateUser(ctx context.Context, token string) (*user.User, error)
}

// WebhookService hands provider notifications to the reconciler workers
type WebhookService interface {
	EnqueueWebhook(ctx context.Context, webhookType, receiveID string, payload json.RawMessage) (*job.Job, error)
}

// TransactionEngine is the part of the reconciliation engine the gateway drives
type TransactionEngine interface {
	CreateTransaction(ctx context.Context, req *engine.CreateRequest) (*transaction.Transaction, error)
	Process(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)
	Get(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)
	Cancel(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)
}

// AuditReader reads the transaction audit trail
type AuditReader interface {
	ListByTransactionID(ctx context.Context, transactionID uuid.UUID, limit, offset int) ([]*audit.Event, error)
}

// TokenVerifier validates user tokens with the platform
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*user.Profile, error)
}
