package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunMigrations_InputValidation(t *testing.T) {
	t.Run("EmptyMigrationsPath", func(t *testing.T) {
		err := RunMigrations("postgres://test", "")
		assert.EqualError(t, err, "migrations path cannot be empty")
	})

	t.Run("EmptyDatabaseURL", func(t *testing.T) {
		err := RunMigrations("", "migrations/postgres")
		assert.EqualError(t, err, "database URL cannot be empty")
	})
}

func TestRollbackMigrations_InputValidation(t *testing.T) {
	err := RollbackMigrations("postgres://test", "migrations/postgres", 0)
	assert.EqualError(t, err, "rollback steps must be greater than 0")

	err = RollbackMigrations("", "migrations/postgres", 1)
	assert.EqualError(t, err, "database URL cannot be empty")
}

func TestMigrationVersion_InputValidation(t *testing.T) {
	_, _, err := MigrationVersion("postgres://test", "")
	assert.EqualError(t, err, "migrations path cannot be empty")
}
