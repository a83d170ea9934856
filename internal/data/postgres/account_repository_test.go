package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/rehive/adapter-framework/internal/domain/account"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

var accountRowColumns = []string{
	"id", "name", "type", "provider", "is_default", "secret", "metadata",
	"ledger_divisibility", "provider_divisibility", "created_at", "updated_at",
}

func testAccount(name string, t account.Type) *account.Account {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &account.Account{
		ID:                   uuid.New(),
		Name:                 name,
		Type:                 t,
		Provider:             "manual",
		IsDefault:            true,
		Secret:               json.RawMessage(`{"api_key":"k"}`),
		Metadata:             map[string]any{"reference": "ops-1"},
		LedgerDivisibility:   2,
		ProviderDivisibility: 8,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func accountRow(rows *pgxmock.Rows, acc *account.Account) *pgxmock.Rows {
	metadata, _ := json.Marshal(acc.Metadata)
	return rows.AddRow(acc.ID, acc.Name, string(acc.Type), acc.Provider, acc.IsDefault,
		[]byte(acc.Secret), metadata, acc.LedgerDivisibility, acc.ProviderDivisibility,
		acc.CreatedAt, acc.UpdatedAt)
}

func TestAccountRepository_Create(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &AccountRepository{querier: mock, logger: newTestLogger()}
	acc := testAccount("stellar-deposit", account.TypeDeposit)

	args := []any{acc.ID, acc.Name, "deposit", acc.Provider, acc.IsDefault,
		[]byte(acc.Secret), pgxmock.AnyArg(), acc.LedgerDivisibility, acc.ProviderDivisibility,
		acc.CreatedAt, acc.UpdatedAt}

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO accounts`).
			WithArgs(args...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		assert.NoError(t, repo.Create(ctx, acc))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate name", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO accounts`).
			WithArgs(args...).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_name_key"})

		err := repo.Create(ctx, acc)
		var dup account.ErrDuplicateName
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, acc.Name, dup.Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second default for type", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO accounts`).
			WithArgs(args...).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_one_default_per_type"})

		err := repo.Create(ctx, acc)
		var dup account.ErrDuplicateDefault
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, account.TypeDeposit, dup.Type)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("db error")
		mock.ExpectExec(`INSERT INTO accounts`).
			WithArgs(args...).
			WillReturnError(dbErr)

		err := repo.Create(ctx, acc)
		assert.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "failed to create account")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &AccountRepository{querier: mock, logger: newTestLogger()}
	acc := testAccount("stellar-withdraw", account.TypeWithdraw)
	query := `FROM accounts WHERE id = \$1`

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(acc.ID).
			WillReturnRows(accountRow(pgxmock.NewRows(accountRowColumns), acc))

		got, err := repo.GetByID(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, acc, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(acc.ID).WillReturnError(pgx.ErrNoRows)

		got, err := repo.GetByID(ctx, acc.ID)
		assert.Nil(t, got)
		var notFound account.ErrAccountNotFound
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, acc.ID, notFound.AccountID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("some db error")
		mock.ExpectQuery(query).WithArgs(acc.ID).WillReturnError(dbErr)

		got, err := repo.GetByID(ctx, acc.ID)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountRepository_GetByName(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &AccountRepository{querier: mock, logger: newTestLogger()}
	acc := testAccount("treasury", account.TypeSend)
	query := `FROM accounts WHERE name = \$1`

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(acc.Name).
			WillReturnRows(accountRow(pgxmock.NewRows(accountRowColumns), acc))

		got, err := repo.GetByName(ctx, acc.Name)
		require.NoError(t, err)
		assert.Equal(t, acc.ID, got.ID)
		assert.Equal(t, "ops-1", got.MetadataString("reference"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("missing").WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetByName(ctx, "missing")
		assert.ErrorIs(t, err, account.ErrAccountNotFound{})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountRepository_List(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &AccountRepository{querier: mock, logger: newTestLogger()}
	first := testAccount("a-deposit", account.TypeDeposit)
	second := testAccount("b-receive", account.TypeReceive)

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows(accountRowColumns)
		accountRow(rows, first)
		accountRow(rows, second)
		mock.ExpectQuery(`FROM accounts ORDER BY name`).WillReturnRows(rows)

		got, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, first.Name, got[0].Name)
		assert.Equal(t, account.TypeReceive, got[1].Type)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query error", func(t *testing.T) {
		dbErr := errors.New("list error")
		mock.ExpectQuery(`FROM accounts ORDER BY name`).WillReturnError(dbErr)

		_, err := repo.List(ctx)
		assert.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "failed to list accounts")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
