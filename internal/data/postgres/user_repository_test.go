package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/rehive/adapter-framework/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userRowColumns = []string{"id", "identifier", "first_name", "last_name", "email", "mobile_number", "company", "created_at", "updated_at"}

func TestUserRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &UserRepository{querier: mock, logger: newTestLogger()}
	candidate, err := user.FromProfile(user.Profile{Identifier: "U1", FirstName: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	t.Run("returns the stored row", func(t *testing.T) {
		storedID := uuid.New()
		created := time.Now().Add(-time.Hour).UTC().Truncate(time.Millisecond)
		mock.ExpectQuery(`INSERT INTO ledger_users .* ON CONFLICT \(identifier\) DO UPDATE`).
			WithArgs(candidate.ID, "U1", "Ada", "", "ada@example.com", "", "", candidate.CreatedAt, candidate.UpdatedAt).
			WillReturnRows(pgxmock.NewRows(userRowColumns).
				AddRow(storedID, "U1", "Ada", "", "ada@example.com", "", "", created, candidate.UpdatedAt))

		got, err := repo.Upsert(ctx, candidate)
		require.NoError(t, err)
		assert.Equal(t, storedID, got.ID)
		assert.Equal(t, created, got.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("upsert failed")
		mock.ExpectQuery(`INSERT INTO ledger_users`).
			WithArgs(anyArgs(9)...).
			WillReturnError(dbErr)

		_, err := repo.Upsert(ctx, candidate)
		assert.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "failed to upsert user")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_Getters(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &UserRepository{querier: mock, logger: newTestLogger()}
	id := uuid.New()
	now := time.Now().UTC()

	t.Run("by id", func(t *testing.T) {
		mock.ExpectQuery(`FROM ledger_users WHERE id = \$1`).WithArgs(id).
			WillReturnRows(pgxmock.NewRows(userRowColumns).AddRow(id, "U1", "", "", "", "", "", now, now))

		got, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "U1", got.Identifier)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("by id not found", func(t *testing.T) {
		mock.ExpectQuery(`FROM ledger_users WHERE id = \$1`).WithArgs(id).WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetByID(ctx, id)
		var notFound user.ErrUserNotFound
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, id, notFound.UserID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown identifier", func(t *testing.T) {
		mock.ExpectQuery(`FROM ledger_users WHERE identifier = \$1`).WithArgs("ghost").WillReturnError(pgx.ErrNoRows)

		got, err := repo.GetByIdentifier(ctx, "ghost")
		assert.NoError(t, err)
		assert.Nil(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
