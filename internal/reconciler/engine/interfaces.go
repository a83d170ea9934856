package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/rehive/adapter-framework/internal/domain/account"
	"github.com/rehive/adapter-framework/internal/domain/audit"
	"github.com/rehive/adapter-framework/internal/domain/user"
	"github.com/rehive/adapter-framework/internal/platform/ledgerapi"
	"github.com/rehive/adapter-framework/internal/provider"
)

// PlatformClient is the subset of the ledger API the engine drives.
type PlatformClient interface {
	CreateTransaction(ctx context.Context, txType string, req *ledgerapi.CreateTransactionRequest) (*ledgerapi.Result, error)
	ConfirmTransaction(ctx context.Context, txCode string) (*ledgerapi.Result, error)
}

// Locker serializes engine steps per transaction across processes.
type Locker interface {
	WithLock(ctx context.Context, key uuid.UUID, fn func(ctx context.Context) error) error
}

// RetryScheduler turns transport failures into future attempts.
type RetryScheduler interface {
	// ScheduleRetry arranges attempt number attempt for the transaction.
	ScheduleRetry(ctx context.Context, transactionID uuid.UUID, attempt int, cause error) error
	CancelRetries(ctx context.Context, transactionID uuid.UUID) error
}

// AuditRecorder appends to the transaction audit trail.
type AuditRecorder interface {
	Append(ctx context.Context, event *audit.Event) error
}

// UserFinder resolves ledger users for webhook ingestion.
type UserFinder interface {
	GetByIdentifier(ctx context.Context, identifier string) (*user.User, error)
}

// ProviderResolver returns the provider bound to an account.
type ProviderResolver interface {
	For(acct *account.Account) (provider.Provider, error)
}
