package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TxBeginner starts database transactions. Satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type lockTxKey struct{}

// QuerierFrom returns the transaction holding the caller's lock, or fallback
// when ctx was not handed out by WithLock.
func QuerierFrom(ctx context.Context, fallback Querier) Querier {
	if tx, ok := ctx.Value(lockTxKey{}).(pgx.Tx); ok {
		return tx
	}
	return fallback
}

// AdvisoryLocker serializes work per key across every process sharing the
// database. The lock is a transaction-scoped advisory lock, released when
// the holding transaction ends, so a crashed holder never leaks it.
//
// fn runs inside that transaction: repositories reading the querier through
// QuerierFrom write on the same connection, and their writes commit together
// when fn returns nil.
type AdvisoryLocker struct {
	db     TxBeginner
	logger *slog.Logger
}

func NewAdvisoryLocker(db TxBeginner, logger *slog.Logger) *AdvisoryLocker {
	return &AdvisoryLocker{db: db, logger: logger}
}

const advisoryLockSQL = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`

// WithLock runs fn while holding the lock for key. Waiting for the lock
// honours ctx cancellation. A call made from inside fn joins the held
// transaction; advisory locks are re-entrant within a session.
func (l *AdvisoryLocker) WithLock(ctx context.Context, key uuid.UUID, fn func(ctx context.Context) error) error {
	if held, ok := ctx.Value(lockTxKey{}).(pgx.Tx); ok {
		if err := acquire(ctx, held, key); err != nil {
			return err
		}
		return fn(ctx)
	}

	err := executeTx(ctx, l.db, func(tx pgx.Tx) error {
		if err := acquire(ctx, tx, key); err != nil {
			return err
		}
		return fn(context.WithValue(ctx, lockTxKey{}, tx))
	})
	if err != nil {
		l.logger.Debug("Locked section failed", "key", key, "error", err)
	}
	return err
}

func acquire(ctx context.Context, tx pgx.Tx, key uuid.UUID) error {
	if _, err := tx.Exec(ctx, advisoryLockSQL, key.String()); err != nil {
		return fmt.Errorf("failed to acquire lock for %s: %w", key, err)
	}
	return nil
}
