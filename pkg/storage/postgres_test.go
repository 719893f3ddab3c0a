package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyMigrations(t *testing.T) {
	migrations := []Migration{
		{Version: 1, Description: "Create sections table", SQL: "CREATE TABLE sections ()"},
		{Version: 2, Description: "Create section_members table", SQL: "CREATE TABLE section_members ()"},
	}

	t.Run("applies pending migrations", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		for _, m := range migrations {
			mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM schema_migrations WHERE component = \$1 AND version = \$2\)`).
				WithArgs("sections", m.Version).
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
			mock.ExpectBegin()
			mock.ExpectExec(`CREATE TABLE`).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectExec(`INSERT INTO schema_migrations`).
				WithArgs("sections", m.Version, m.Description).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()
		}

		require.NoError(t, ApplyMigrations(context.Background(), db, "sections", migrations))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("skips applied migrations", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("sections", 1).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("sections", 2).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		require.NoError(t, ApplyMigrations(context.Background(), db, "sections", migrations))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("sections", 1).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectBegin()
		mock.ExpectExec(`CREATE TABLE`).
			WillReturnError(fmt.Errorf("syntax error"))
		mock.ExpectRollback()

		err = ApplyMigrations(context.Background(), db, "sections", migrations)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to apply migration sections/1")
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
