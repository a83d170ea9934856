package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rehive/adapter-framework/internal/domain/transaction"
)

// Event records one step taken on a transaction, successful or not.
type Event struct {
	TransactionID uuid.UUID          `json:"transaction_id" bson:"transaction_id"`
	Operation     string             `json:"operation" bson:"operation"`
	FromStatus    transaction.Status `json:"from_status,omitempty" bson:"from_status,omitempty"`
	ToStatus      transaction.Status `json:"to_status,omitempty" bson:"to_status,omitempty"`
	Attempt       int                `json:"attempt" bson:"attempt"`
	Outcome       string             `json:"outcome" bson:"outcome"`
	Detail        string             `json:"detail,omitempty" bson:"detail,omitempty"`
	Response      string             `json:"response,omitempty" bson:"response,omitempty"` // Raw remote body
	CorrelationID string             `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	RecordedAt    time.Time          `json:"recorded_at" bson:"recorded_at"`
}

const (
	OutcomeSucceeded = "succeeded"
	OutcomeRejected  = "rejected"
	OutcomeRetrying  = "retrying"
	OutcomeSkipped   = "skipped"
)

// Repository stores the append-only audit trail.
type Repository interface {
	Append(ctx context.Context, event *Event) error
	ListByTransactionID(ctx context.Context, transactionID uuid.UUID, limit, offset int) ([]*Event, error)
}
