// Package postgres provides PostgreSQL implementations of the domain repositories.
// Every repository works against a persistence.Querier so callers can run it
// on the pool or inside an explicit transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rehive/adapter-framework/internal/domain/account"
	"github.com/rehive/adapter-framework/internal/platform/persistence"
)

const accountColumns = `id, name, type, provider, is_default, secret, metadata,
		ledger_divisibility, provider_divisibility, created_at, updated_at`

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewAccountRepository creates a new PostgreSQL account repository.
func NewAccountRepository(logger *slog.Logger, db *persistence.PostgresDB) *AccountRepository {
	return &AccountRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// conn returns the transaction of a lock held by the caller, or the pool.
func (r *AccountRepository) conn(ctx context.Context) persistence.Querier {
	return persistence.QuerierFrom(ctx, r.querier)
}

// Create stores a new account. Name clashes and a second default account for
// the same type are reported as typed errors.
func (r *AccountRepository) Create(ctx context.Context, acc *account.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	metadata, err := encodeMetadata(acc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode account metadata: %w", err)
	}
	secret := []byte(acc.Secret)
	if len(secret) == 0 {
		secret = []byte(`{}`)
	}

	_, err = r.conn(ctx).Exec(ctx, query,
		acc.ID,
		acc.Name,
		string(acc.Type),
		acc.Provider,
		acc.IsDefault,
		secret,
		metadata,
		acc.LedgerDivisibility,
		acc.ProviderDivisibility,
		acc.CreatedAt,
		acc.UpdatedAt,
	)
	if err != nil {
		switch {
		case constraintViolated(err, "accounts_name_key"):
			return account.ErrDuplicateName{Name: acc.Name}
		case constraintViolated(err, "accounts_one_default_per_type"):
			return account.ErrDuplicateDefault{Type: acc.Type}
		}
		r.logger.Error("Failed to create account", "error", err, "name", acc.Name)
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByID retrieves an account by its ID.
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	acc, err := scanAccount(r.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{AccountID: id}
		}
		r.logger.Error("Failed to get account by ID", "error", err, "account_id", id)
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return acc, nil
}

// GetByName retrieves an account by its unique name.
func (r *AccountRepository) GetByName(ctx context.Context, name string) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE name = $1`

	acc, err := scanAccount(r.conn(ctx).QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{Name: name}
		}
		r.logger.Error("Failed to get account by name", "error", err, "name", name)
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return acc, nil
}

// List returns every configured account ordered by name.
func (r *AccountRepository) List(ctx context.Context) ([]*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY name`

	rows, err := r.conn(ctx).Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list accounts", "error", err)
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	return accounts, nil
}

func scanAccount(row pgx.Row) (*account.Account, error) {
	var (
		acc         account.Account
		accountType string
		secret      []byte
		metadata    []byte
	)
	err := row.Scan(
		&acc.ID,
		&acc.Name,
		&accountType,
		&acc.Provider,
		&acc.IsDefault,
		&secret,
		&metadata,
		&acc.LedgerDivisibility,
		&acc.ProviderDivisibility,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	acc.Type = account.Type(accountType)
	acc.Secret = secret
	if acc.Metadata, err = decodeMetadata(metadata); err != nil {
		return nil, fmt.Errorf("failed to decode account metadata: %w", err)
	}
	return &acc, nil
}

var _ account.Repository = (*AccountRepository)(nil)
