package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rehive/adapter-framework/internal/domain/retry"
	"github.com/rehive/adapter-framework/internal/platform/persistence"
)

const retryColumns = `id, transaction_id, attempts, next_attempt_at, status, last_error, created_at, updated_at`

// RetryRepository implements the retry.Repository interface for PostgreSQL.
// It plays the role of a durable delay queue: one row per transaction holds
// the next attempt that is owed.
type RetryRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewRetryRepository creates a new PostgreSQL retry repository
func NewRetryRepository(logger *slog.Logger, db *persistence.PostgresDB) *RetryRepository {
	return &RetryRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// conn returns the transaction of a lock held by the caller, or the pool.
func (r *RetryRepository) conn(ctx context.Context) persistence.Querier {
	return persistence.QuerierFrom(ctx, r.querier)
}

// Schedule stores the next attempt for a transaction, replacing whatever
// was scheduled before.
func (r *RetryRepository) Schedule(ctx context.Context, rt *retry.Retry) error {
	query := `
		INSERT INTO scheduled_retries (transaction_id, attempts, next_attempt_at, status, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (transaction_id) DO UPDATE
		SET attempts = EXCLUDED.attempts,
			next_attempt_at = EXCLUDED.next_attempt_at,
			status = EXCLUDED.status,
			last_error = EXCLUDED.last_error,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`

	err := r.conn(ctx).QueryRow(ctx, query,
		rt.TransactionID,
		rt.Attempts,
		rt.NextAttemptAt,
		string(rt.Status),
		rt.LastError,
		rt.CreatedAt,
		rt.UpdatedAt,
	).Scan(&rt.ID)
	if err != nil {
		r.logger.Error("Failed to schedule retry",
			"transaction_id", rt.TransactionID.String(),
			"attempt", rt.Attempts,
			"error", err,
		)
		return fmt.Errorf("failed to schedule retry: %w", err)
	}

	return nil
}

// ClaimDue flips up to limit due retries to DISPATCHED and returns them,
// oldest first. Rows locked by a concurrent claimer are skipped.
func (r *RetryRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*retry.Retry, error) {
	query := `
		UPDATE scheduled_retries
		SET status = $1, updated_at = $2
		WHERE id IN (
			SELECT id FROM scheduled_retries
			WHERE status = $3 AND next_attempt_at <= $2
			ORDER BY next_attempt_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + retryColumns

	rows, err := r.conn(ctx).Query(ctx, query,
		string(retry.StatusDispatched), now, string(retry.StatusPending), limit)
	if err != nil {
		r.logger.Error("Failed to claim due retries", "error", err)
		return nil, fmt.Errorf("failed to claim due retries: %w", err)
	}
	defer rows.Close()

	var claimed []*retry.Retry
	for rows.Next() {
		rt, err := scanRetry(rows)
		if err != nil {
			r.logger.Error("Failed to scan retry", "error", err)
			return nil, fmt.Errorf("failed to scan retry: %w", err)
		}
		claimed = append(claimed, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over retries: %w", err)
	}

	return claimed, nil
}

// Release puts a claimed retry back to PENDING, keeping its due time.
func (r *RetryRepository) Release(ctx context.Context, id int64, lastError string) error {
	query := `
		UPDATE scheduled_retries
		SET status = $1, last_error = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`

	_, err := r.conn(ctx).Exec(ctx, query,
		string(retry.StatusPending), lastError, time.Now(), id, string(retry.StatusDispatched))
	if err != nil {
		r.logger.Error("Failed to release retry", "id", id, "error", err)
		return fmt.Errorf("failed to release retry: %w", err)
	}

	return nil
}

// MarkExhausted records that a transaction used up its retry budget. A row
// is created when none was scheduled yet.
func (r *RetryRepository) MarkExhausted(ctx context.Context, transactionID uuid.UUID, lastError string) error {
	query := `
		INSERT INTO scheduled_retries (transaction_id, attempts, next_attempt_at, status, last_error, created_at, updated_at)
		VALUES ($1, 0, $2, $3, $4, $2, $2)
		ON CONFLICT (transaction_id) DO UPDATE
		SET status = EXCLUDED.status,
			last_error = EXCLUDED.last_error,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.conn(ctx).Exec(ctx, query, transactionID, time.Now(), string(retry.StatusExhausted), lastError)
	if err != nil {
		r.logger.Error("Failed to mark retries exhausted", "transaction_id", transactionID.String(), "error", err)
		return fmt.Errorf("failed to mark retries exhausted: %w", err)
	}

	return nil
}

// Cancel drops any pending retry of the transaction. Cancelling a
// transaction that has none is not an error.
func (r *RetryRepository) Cancel(ctx context.Context, transactionID uuid.UUID) error {
	query := `
		UPDATE scheduled_retries
		SET status = $1, updated_at = $2
		WHERE transaction_id = $3 AND status IN ($4, $5)
	`

	_, err := r.conn(ctx).Exec(ctx, query,
		string(retry.StatusCancelled), time.Now(), transactionID,
		string(retry.StatusPending), string(retry.StatusDispatched))
	if err != nil {
		r.logger.Error("Failed to cancel retry", "transaction_id", transactionID.String(), "error", err)
		return fmt.Errorf("failed to cancel retry: %w", err)
	}

	return nil
}

// GetByTransactionID returns the retry row of a transaction.
func (r *RetryRepository) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*retry.Retry, error) {
	query := `SELECT ` + retryColumns + ` FROM scheduled_retries WHERE transaction_id = $1`

	rt, err := scanRetry(r.conn(ctx).QueryRow(ctx, query, transactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, retry.ErrRetryNotFound{TransactionID: transactionID}
		}
		r.logger.Error("Failed to get retry by transaction ID",
			"transaction_id", transactionID.String(),
			"error", err,
		)
		return nil, fmt.Errorf("failed to get retry by transaction ID: %w", err)
	}

	return rt, nil
}

func scanRetry(row pgx.Row) (*retry.Retry, error) {
	var (
		rt     retry.Retry
		status string
	)
	err := row.Scan(
		&rt.ID,
		&rt.TransactionID,
		&rt.Attempts,
		&rt.NextAttemptAt,
		&status,
		&rt.LastError,
		&rt.CreatedAt,
		&rt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rt.Status = retry.Status(status)
	return &rt, nil
}

var _ retry.Repository = (*RetryRepository)(nil)
