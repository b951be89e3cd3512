package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5"

	"github.com/Maharab24/Bottle-Collection/pkg/database"
	apperrors "github.com/Maharab24/Bottle-Collection/pkg/errors"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrations returns the schema migrations for the cart_slots table, rooted
// so database.RunMigrations can read them directly.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

const (
	loadSQL = `SELECT value FROM cart_slots WHERE key = $1`
	saveSQL = `INSERT INTO cart_slots (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	pingSQL = `SELECT 1`
)

// Slot stores the cart as one row of cart_slots.
type Slot struct {
	db    database.DBTX
	key   string
	close func()
}

// NewSlot creates a slot on db. closeFn, if non-nil, is called by Close.
func NewSlot(db database.DBTX, key string, closeFn func()) *Slot {
	return &Slot{db: db, key: key, close: closeFn}
}

func (s *Slot) Key() string { return s.key }

func (s *Slot) Load(ctx context.Context) (data []byte, err error) {
	ctx, end := database.TraceQuery(ctx, "postgresql", "LoadSlot", loadSQL)
	defer func() { end(err) }()

	err = s.db.QueryRow(ctx, loadSQL, s.key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("cart slot", s.key)
	}
	if err != nil {
		return nil, fmt.Errorf("load cart slot: %w", err)
	}
	return data, nil
}

func (s *Slot) Save(ctx context.Context, data []byte) (err error) {
	ctx, end := database.TraceQuery(ctx, "postgresql", "SaveSlot", saveSQL)
	defer func() { end(err) }()

	if _, err = s.db.Exec(ctx, saveSQL, s.key, data); err != nil {
		return fmt.Errorf("save cart slot: %w", err)
	}
	return nil
}

func (s *Slot) Ping(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, pingSQL); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

func (s *Slot) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}
