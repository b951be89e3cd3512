package postgres

import (
	"context"
	"errors"
	"io/fs"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Maharab24/Bottle-Collection/pkg/database"
	apperrors "github.com/Maharab24/Bottle-Collection/pkg/errors"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func TestSlot_Load(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("SELECT value FROM cart_slots").
		WithArgs("bottleCart").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte(`[]`)))

	data, err := NewSlot(mock, "bottleCart", nil).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))
}

func TestSlot_LoadAbsent(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("SELECT value FROM cart_slots").
		WithArgs("bottleCart").
		WillReturnRows(pgxmock.NewRows([]string{"value"}))

	_, err := NewSlot(mock, "bottleCart", nil).Load(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSlot_LoadError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("SELECT value FROM cart_slots").
		WithArgs("bottleCart").
		WillReturnError(errors.New("connection reset"))

	_, err := NewSlot(mock, "bottleCart", nil).Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, err.Error(), "load cart slot")
}

func TestSlot_SaveUpserts(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("INSERT INTO cart_slots").
		WithArgs("bottleCart", []byte(`[{"id":"p1","quantity":1}]`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := NewSlot(mock, "bottleCart", nil).Save(context.Background(), []byte(`[{"id":"p1","quantity":1}]`))
	assert.NoError(t, err)
}

func TestSlot_SaveError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("INSERT INTO cart_slots").
		WithArgs("bottleCart", []byte(`[]`)).
		WillReturnError(errors.New("disk full"))

	err := NewSlot(mock, "bottleCart", nil).Save(context.Background(), []byte(`[]`))
	assert.ErrorContains(t, err, "save cart slot")
}

func TestSlot_PingAndClose(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("SELECT 1").WillReturnResult(pgxmock.NewResult("SELECT", 1))

	closed := false
	s := NewSlot(mock, "bottleCart", func() { closed = true })
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())
	assert.True(t, closed)
}

func TestMigrations_ContainsUpFile(t *testing.T) {
	data, err := fs.ReadFile(Migrations(), "001_create_cart_slots.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "CREATE TABLE IF NOT EXISTS cart_slots")
}
