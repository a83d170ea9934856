// Package adminctl implements the adapterctl commands. Commands reach the
// stores through a Backend so that schema commands never need a database
// connection and the rest connect only when they run.
package adminctl

import (
	"context"

	"github.com/google/uuid"
	"github.com/rehive/adapter-framework/internal/domain/account"
	"github.com/rehive/adapter-framework/internal/domain/audit"
	"github.com/rehive/adapter-framework/internal/domain/job"
	"github.com/rehive/adapter-framework/internal/domain/transaction"
)

// Migrator applies and reverts schema migrations
type Migrator interface {
	Up() error
	Down(steps int) error
	Version() (version uint, dirty bool, err error)
}

// AccountStore is the administrative view of the account table
type AccountStore interface {
	Create(ctx context.Context, acc *account.Account) error
	List(ctx context.Context) ([]*account.Account, error)
}

// TransactionAdmin reads and cancels transactions through the engine
type TransactionAdmin interface {
	Get(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)
	Cancel(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)
}

// AuditReader reads the audit trail of a transaction
type AuditReader interface {
	ListByTransactionID(ctx context.Context, transactionID uuid.UUID, limit, offset int) ([]*audit.Event, error)
}

// JobPublisher enqueues reconciler jobs
type JobPublisher interface {
	PublishJob(ctx context.Context, j *job.Job) error
}

// AccountChecker validates accounts the way the binaries do at startup
type AccountChecker interface {
	Check(ctx context.Context) (*account.Directory, error)
}

// Backend hands out the collaborators each command group needs. It is
// expected to connect lazily.
type Backend interface {
	Migrator() Migrator
	Accounts(ctx context.Context) (AccountStore, error)
	AccountChecker(ctx context.Context) (AccountChecker, error)
	Transactions(ctx context.Context) (TransactionAdmin, error)
	Audit(ctx context.Context) (AuditReader, error)
	Jobs(ctx context.Context) (JobPublisher, error)
}
