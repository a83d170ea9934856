package retry

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status is the state of a scheduled retry.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusDispatched Status = "DISPATCHED"
	StatusExhausted  Status = "EXHAUSTED"
	StatusCancelled  Status = "CANCELLED"
)

// Retry is the durable record of the next reconciliation attempt owed to a
// transaction. There is at most one per transaction.
type Retry struct {
	ID            int64     `json:"id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	Attempts      int       `json:"attempts"`
	NextAttemptAt time.Time `json:"next_attempt_at"`
	Status        Status    `json:"status"`
	LastError     string    `json:"last_error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// New builds a pending retry for attempt number attempt, due at due.
func New(transactionID uuid.UUID, attempt int, due time.Time, cause error) *Retry {
	r := &Retry{
		TransactionID: transactionID,
		Attempts:      attempt,
		NextAttemptAt: due,
		Status:        StatusPending,
		CreatedAt:     time.Now(),
	}
	r.UpdatedAt = r.CreatedAt
	if cause != nil {
		r.LastError = cause.Error()
	}
	return r
}

// Repository manages scheduled retry persistence
type Repository interface {
	// Schedule inserts r or replaces the existing row for the transaction.
	Schedule(ctx context.Context, r *Retry) error

	// ClaimDue marks up to limit due pending retries as dispatched and
	// returns them. Concurrent callers never claim the same row.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*Retry, error)

	// Release returns a claimed retry to pending so it is picked up again.
	Release(ctx context.Context, id int64, lastError string) error

	MarkExhausted(ctx context.Context, transactionID uuid.UUID, lastError string) error
	Cancel(ctx context.Context, transactionID uuid.UUID) error
	GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*Retry, error)
}

// ErrRetryNotFound indicates no retry is scheduled for a transaction
type ErrRetryNotFound struct {
	TransactionID uuid.UUID
}

func (e ErrRetryNotFound) Error() string {
	return "no retry scheduled for transaction: " + e.TransactionID.String()
}
