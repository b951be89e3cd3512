package database

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMigrations = fstest.MapFS{
	"001_cart_slots.up.sql":   {Data: []byte("CREATE TABLE cart_slots (key TEXT PRIMARY KEY)")},
	"001_cart_slots.down.sql": {Data: []byte("DROP TABLE cart_slots")},
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunMigrations_AppliesPending(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("001_cart_slots.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE cart_slots").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs("001_cart_slots.up.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, RunMigrations(context.Background(), mock, testMigrations, discardLogger()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_SkipsApplied(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("001_cart_slots.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	require.NoError(t, RunMigrations(context.Background(), mock, testMigrations, discardLogger()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_SQLErrorRollsBackWithoutRetry(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("001_cart_slots.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE cart_slots").
		WillReturnError(errors.New("syntax error at or near \"TABEL\""))
	mock.ExpectRollback()

	err = RunMigrations(context.Background(), mock, testMigrations, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute migration 001_cart_slots.up.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_RetriesLostConnection(t *testing.T) {
	prev := migrateBackoff
	migrateBackoff = Backoff{Attempts: 2, Base: time.Millisecond}
	t.Cleanup(func() { migrateBackoff = prev })

	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnError(&pgconn.PgError{Code: "08006", Message: "connection failure"})
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("001_cart_slots.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	require.NoError(t, RunMigrations(context.Background(), mock, testMigrations, discardLogger()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_IgnoresNonUpFiles(t *testing.T) {
	names, err := migrationFiles(fstest.MapFS{
		"002_b.up.sql":   {Data: []byte("SELECT 2")},
		"001_a.up.sql":   {Data: []byte("SELECT 1")},
		"001_a.down.sql": {Data: []byte("SELECT 0")},
		"README.md":      {Data: []byte("docs")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"001_a.up.sql", "002_b.up.sql"}, names)
}
