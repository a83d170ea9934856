package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rehive/adapter-framework/internal/domain/transaction"
	"github.com/rehive/adapter-framework/internal/platform/persistence"
)

const transactionColumns = `id, account_id, user_id, tx_type, status, external_id, platform_code,
		to_reference, from_reference, amount, fee, currency, note, metadata,
		provider_response, platform_response, provider_confirmed, version,
		created_at, updated_at, completed_at`

const externalIDConstraint = "transactions_external_id_key"

// TransactionRepository implements the transaction.Repository interface for PostgreSQL
type TransactionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewTransactionRepository creates a new PostgreSQL transaction repository
func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) *TransactionRepository {
	return &TransactionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// conn returns the transaction of a lock held by the caller, or the pool.
func (r *TransactionRepository) conn(ctx context.Context) persistence.Querier {
	return persistence.QuerierFrom(ctx, r.querier)
}

// Create stores a new transaction.
func (r *TransactionRepository) Create(ctx context.Context, tx *transaction.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`

	metadata, err := encodeMetadata(tx.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode transaction metadata: %w", err)
	}

	_, err = r.conn(ctx).Exec(ctx, query,
		tx.ID,
		tx.AccountID,
		tx.UserID,
		string(tx.Type),
		string(tx.Status),
		nullableString(tx.ExternalID),
		nullableString(tx.PlatformCode),
		tx.ToReference,
		tx.FromReference,
		tx.Amount,
		tx.Fee,
		tx.Currency,
		tx.Note,
		metadata,
		rawOrNil(tx.ProviderResponse),
		rawOrNil(tx.PlatformResponse),
		tx.ProviderConfirmed,
		tx.Version,
		tx.CreatedAt,
		tx.UpdatedAt,
		tx.CompletedAt,
	)
	if err != nil {
		if constraintViolated(err, externalIDConstraint) {
			return transaction.ErrDuplicateExternalID{ExternalID: tx.ExternalID}
		}
		r.logger.Error("Failed to create transaction", "error", err, "transaction_id", tx.ID)
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a transaction by its ID.
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	tx, err := scanTransaction(r.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transaction.ErrTransactionNotFound{TransactionID: id}
		}
		r.logger.Error("Failed to get transaction", "error", err, "transaction_id", id)
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return tx, nil
}

// GetByExternalID returns the transaction the provider knows as externalID,
// or nil if there is none.
func (r *TransactionRepository) GetByExternalID(ctx context.Context, externalID string) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE external_id = $1`

	tx, err := scanTransaction(r.conn(ctx).QueryRow(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get transaction by external ID", "error", err, "external_id", externalID)
		return nil, fmt.Errorf("failed to get transaction by external ID: %w", err)
	}

	return tx, nil
}

// Update persists the mutable fields of tx. The stored row must still be at
// tx.Version-1. External id and platform code are never overwritten once set.
func (r *TransactionRepository) Update(ctx context.Context, tx *transaction.Transaction) error {
	query := `
		UPDATE transactions
		SET status = $1,
			external_id = COALESCE(external_id, $2),
			platform_code = COALESCE(platform_code, $3),
			user_id = COALESCE(user_id, $4),
			provider_response = $5,
			platform_response = $6,
			provider_confirmed = $7,
			version = $8,
			updated_at = $9,
			completed_at = $10
		WHERE id = $11 AND version = $12
	`

	result, err := r.conn(ctx).Exec(ctx, query,
		string(tx.Status),
		nullableString(tx.ExternalID),
		nullableString(tx.PlatformCode),
		tx.UserID,
		rawOrNil(tx.ProviderResponse),
		rawOrNil(tx.PlatformResponse),
		tx.ProviderConfirmed,
		tx.Version,
		tx.UpdatedAt,
		tx.CompletedAt,
		tx.ID,
		tx.Version-1,
	)
	if err != nil {
		if constraintViolated(err, externalIDConstraint) {
			return transaction.ErrDuplicateExternalID{ExternalID: tx.ExternalID}
		}
		r.logger.Error("Failed to update transaction", "error", err, "transaction_id", tx.ID)
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	if result.RowsAffected() == 0 {
		return transaction.ErrConcurrentModification{TransactionID: tx.ID}
	}

	return nil
}

// ListStale returns up to limit open transactions last touched before the
// cut-off, oldest first.
func (r *TransactionRepository) ListStale(ctx context.Context, before time.Time, limit int) ([]*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE status = ANY($1) AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3`

	open := make([]string, 0, len(transaction.NonTerminalStatuses))
	for _, s := range transaction.NonTerminalStatuses {
		open = append(open, string(s))
	}

	rows, err := r.conn(ctx).Query(ctx, query, open, before, limit)
	if err != nil {
		r.logger.Error("Failed to list stale transactions", "error", err)
		return nil, fmt.Errorf("failed to list stale transactions: %w", err)
	}
	defer rows.Close()

	var txs []*transaction.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return txs, nil
}

func scanTransaction(row pgx.Row) (*transaction.Transaction, error) {
	var (
		tx               transaction.Transaction
		txType, status   string
		externalID       *string
		platformCode     *string
		metadata         []byte
		providerResponse []byte
		platformResponse []byte
	)
	err := row.Scan(
		&tx.ID,
		&tx.AccountID,
		&tx.UserID,
		&txType,
		&status,
		&externalID,
		&platformCode,
		&tx.ToReference,
		&tx.FromReference,
		&tx.Amount,
		&tx.Fee,
		&tx.Currency,
		&tx.Note,
		&metadata,
		&providerResponse,
		&platformResponse,
		&tx.ProviderConfirmed,
		&tx.Version,
		&tx.CreatedAt,
		&tx.UpdatedAt,
		&tx.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Type = transaction.Type(txType)
	tx.Status = transaction.Status(status)
	if externalID != nil {
		tx.ExternalID = *externalID
	}
	if platformCode != nil {
		tx.PlatformCode = *platformCode
	}
	if len(providerResponse) > 0 {
		tx.ProviderResponse = json.RawMessage(providerResponse)
	}
	if len(platformResponse) > 0 {
		tx.PlatformResponse = json.RawMessage(platformResponse)
	}
	if tx.Metadata, err = decodeMetadata(metadata); err != nil {
		return nil, fmt.Errorf("failed to decode transaction metadata: %w", err)
	}
	return &tx, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ transaction.Repository = (*TransactionRepository)(nil)
