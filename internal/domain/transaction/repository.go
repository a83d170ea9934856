package transaction

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines transaction persistence operations
type Repository interface {
	Create(ctx context.Context, tx *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// GetByExternalID returns nil, nil when no transaction carries the id.
	GetByExternalID(ctx context.Context, externalID string) (*Transaction, error)

	// Update persists tx, expecting the stored version to be tx.Version-1.
	Update(ctx context.Context, tx *Transaction) error

	// ListStale returns non-terminal transactions not updated since before.
	ListStale(ctx context.Context, before time.Time, limit int) ([]*Transaction, error)
}
