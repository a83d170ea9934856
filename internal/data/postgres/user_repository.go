package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rehive/adapter-framework/internal/domain/user"
	"github.com/rehive/adapter-framework/internal/platform/persistence"
)

const userColumns = `id, identifier, first_name, last_name, email, mobile_number, company, created_at, updated_at`

// UserRepository implements the user.Repository interface for PostgreSQL
type UserRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(logger *slog.Logger, db *persistence.PostgresDB) *UserRepository {
	return &UserRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// conn returns the transaction of a lock held by the caller, or the pool.
func (r *UserRepository) conn(ctx context.Context) persistence.Querier {
	return persistence.QuerierFrom(ctx, r.querier)
}

// Upsert inserts u, or refreshes the profile of the existing user with the
// same identifier. The stored row is returned so callers always see the
// original ID.
func (r *UserRepository) Upsert(ctx context.Context, u *user.User) (*user.User, error) {
	query := `
		INSERT INTO ledger_users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (identifier) DO UPDATE
		SET first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			email = EXCLUDED.email,
			mobile_number = EXCLUDED.mobile_number,
			company = EXCLUDED.company,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + userColumns

	stored, err := scanUser(r.conn(ctx).QueryRow(ctx, query,
		u.ID,
		u.Identifier,
		u.FirstName,
		u.LastName,
		u.Email,
		u.MobileNumber,
		u.Company,
		u.CreatedAt,
		u.UpdatedAt,
	))
	if err != nil {
		r.logger.Error("Failed to upsert user", "error", err, "identifier", u.Identifier)
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return stored, nil
}

// GetByID retrieves a user by its ID.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM ledger_users WHERE id = $1`

	u, err := scanUser(r.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrUserNotFound{UserID: id}
		}
		r.logger.Error("Failed to get user", "error", err, "user_id", id)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}

// GetByIdentifier returns the user with the platform identifier, or nil if
// it has never been seen.
func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM ledger_users WHERE identifier = $1`

	u, err := scanUser(r.conn(ctx).QueryRow(ctx, query, identifier))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get user by identifier", "error", err, "identifier", identifier)
		return nil, fmt.Errorf("failed to get user by identifier: %w", err)
	}

	return u, nil
}

func scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID,
		&u.Identifier,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.MobileNumber,
		&u.Company,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

var _ user.Repository = (*UserRepository)(nil)
