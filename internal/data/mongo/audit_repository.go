// Package mongo stores the transaction audit trail in MongoDB.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rehive/adapter-framework/internal/domain/audit"
	"github.com/rehive/adapter-framework/internal/domain/transaction"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// AuditCollectionName is the name of the audit collection in MongoDB
	AuditCollectionName = "transaction_events"
)

// eventDocument is the stored shape of an audit.Event. Identifiers are kept
// as strings so the collection stays readable from the mongo shell.
type eventDocument struct {
	TransactionID string    `bson:"transaction_id"`
	Operation     string    `bson:"operation"`
	FromStatus    string    `bson:"from_status,omitempty"`
	ToStatus      string    `bson:"to_status,omitempty"`
	Attempt       int       `bson:"attempt"`
	Outcome       string    `bson:"outcome"`
	Detail        string    `bson:"detail,omitempty"`
	Response      string    `bson:"response,omitempty"`
	CorrelationID string    `bson:"correlation_id,omitempty"`
	RecordedAt    time.Time `bson:"recorded_at"`
}

func toDocument(e *audit.Event) eventDocument {
	return eventDocument{
		TransactionID: e.TransactionID.String(),
		Operation:     e.Operation,
		FromStatus:    string(e.FromStatus),
		ToStatus:      string(e.ToStatus),
		Attempt:       e.Attempt,
		Outcome:       e.Outcome,
		Detail:        e.Detail,
		Response:      e.Response,
		CorrelationID: e.CorrelationID,
		RecordedAt:    e.RecordedAt,
	}
}

func (d eventDocument) toEvent() (*audit.Event, error) {
	id, err := uuid.Parse(d.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction id %q: %w", d.TransactionID, err)
	}
	return &audit.Event{
		TransactionID: id,
		Operation:     d.Operation,
		FromStatus:    transaction.Status(d.FromStatus),
		ToStatus:      transaction.Status(d.ToStatus),
		Attempt:       d.Attempt,
		Outcome:       d.Outcome,
		Detail:        d.Detail,
		Response:      d.Response,
		CorrelationID: d.CorrelationID,
		RecordedAt:    d.RecordedAt,
	}, nil
}

// AuditRepository implements the audit.Repository interface for MongoDB
type AuditRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewAuditRepository creates a new MongoDB audit repository
func NewAuditRepository(logger *slog.Logger, db *mongo.Database) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the lookup index used by ListByTransactionID.
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(AuditCollectionName)

	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "transaction_id", Value: 1}, {Key: "recorded_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create audit index: %w", err)
	}
	return nil
}

// Append stores a new audit event.
func (r *AuditRepository) Append(ctx context.Context, event *audit.Event) error {
	collection := r.db.Collection(AuditCollectionName)

	if event.RecordedAt.IsZero() {
		event.RecordedAt = time.Now().UTC()
	}

	_, err := collection.InsertOne(ctx, toDocument(event))
	if err != nil {
		r.logger.Error("Failed to append audit event",
			"transaction_id", event.TransactionID.String(),
			"operation", event.Operation,
			"error", err)
		return fmt.Errorf("failed to append audit event: %w", err)
	}

	return nil
}

// ListByTransactionID returns a page of events for a transaction, oldest
// first.
func (r *AuditRepository) ListByTransactionID(ctx context.Context, transactionID uuid.UUID, limit, offset int) ([]*audit.Event, error) {
	collection := r.db.Collection(AuditCollectionName)

	filter := bson.M{"transaction_id": transactionID.String()}
	opts := options.Find().
		SetSort(bson.D{{Key: "recorded_at", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to list audit events",
			"transaction_id", transactionID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []eventDocument
	if err := cursor.All(ctx, &docs); err != nil {
		r.logger.Error("Failed to decode audit events",
			"transaction_id", transactionID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode audit events: %w", err)
	}

	events := make([]*audit.Event, 0, len(docs))
	for _, d := range docs {
		e, err := d.toEvent()
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, nil
}

var _ audit.Repository = (*AuditRepository)(nil)
