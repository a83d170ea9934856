package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/rehive/adapter-framework/internal/domain/audit"
	"github.com/rehive/adapter-framework/internal/domain/transaction"
	"github.com/rehive/adapter-framework/internal/reconciler/engine"
)

// TransactionServiceImpl implements the TransactionService interface
type TransactionServiceImpl struct {
	engine TransactionEngine
	events AuditReader
	logger *slog.Logger
}

// NewTransactionService creates a new transaction service
func NewTransactionService(logger *slog.Logger, engine TransactionEngine, events AuditReader) TransactionService {
	return &TransactionServiceImpl{
		engine: engine,
		events: events,
		logger: logger,
	}
}

// CreateTransaction creates the transaction and processes it. Once the
// transaction is stored the caller always gets it back: a processing error
// leaves it in whatever state was last persisted, and the retry scheduler or
// an operator takes it from there.
func (s *TransactionServiceImpl) CreateTransaction(ctx context.Context, req *engine.CreateRequest) (*transaction.Transaction, error) {
	tx, err := s.engine.CreateTransaction(ctx, req)
	if err != nil {
		return nil, err
	}

	processed, err := s.engine.Process(ctx, tx.ID)
	if err == nil {
		return processed, nil
	}

	s.logger.Error("Failed to process transaction",
		"transaction_id", tx.ID.String(),
		"correlation_id", engine.CorrelationID(ctx),
		"error", err,
	)

	latest, getErr := s.engine.Get(ctx, tx.ID)
	if getErr != nil {
		s.logger.Error("Failed to reload transaction", "transaction_id", tx.ID.String(), "error", getErr)
		return tx, nil
	}
	return latest, nil
}

// GetTransactionByID retrieves a transaction by its ID
func (s *TransactionServiceImpl) GetTransactionByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	return s.engine.Get(ctx, id)
}

// CancelTransaction cancels a non-terminal transaction
func (s *TransactionServiceImpl) CancelTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	return s.engine.Cancel(ctx, id)
}

// GetTransactionEvents checks the transaction exists, then reads one page of its trail
func (s *TransactionServiceImpl) GetTransactionEvents(ctx context.Context, id uuid.UUID, page, perPage int) ([]*audit.Event, error) {
	if _, err := s.engine.Get(ctx, id); err != nil {
		return nil, err
	}

	offset := (page - 1) * perPage
	return s.events.ListByTransactionID(ctx, id, perPage, offset)
}
