// Package bunstore persists the bearer token in an embedded SQLite
// database so it survives restarts, the way a browser shell's durable
// storage survives a tab close.
package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// tokenSlot is the single row key; the store holds exactly one token.
const tokenSlot = "session"

// TokenRecord is the persisted token row.
type TokenRecord struct {
	bun.BaseModel `bun:"table:session_tokens,alias:tok"`
	Slot          string     `bun:"slot,pk" json:"slot"`
	AccessToken   string     `bun:"access_token,notnull" json:"access_token"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Store implements authflow.DurableStore on bun.
type Store struct {
	db *bun.DB
}

// Open creates (or reuses) the SQLite database at dsn and ensures the
// token table exists. Use "file::memory:?cache=shared" for tests.
func Open(ctx context.Context, dsn string) (*Store, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to open durable session store")
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	store := &Store{db: db}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// NewWithDB wraps an existing bun handle; the caller owns its lifecycle.
func NewWithDB(ctx context.Context, db *bun.DB) (*Store, error) {
	store := &Store{db: db}
	if err := store.migrate(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*TokenRecord)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to create session token table")
	}
	return nil
}

// SetToken upserts the single token row.
func (s *Store) SetToken(ctx context.Context, token string) error {
	now := time.Now()
	record := &TokenRecord{
		Slot:        tokenSlot,
		AccessToken: token,
		UpdatedAt:   &now,
	}

	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (slot) DO UPDATE").
		Set("access_token = EXCLUDED.access_token").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist session token")
	}

	return nil
}

// Token returns the stored token, or empty when none is stored.
func (s *Store) Token(ctx context.Context) (string, error) {
	record := &TokenRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("slot = ?", tokenSlot).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read session token")
	}

	return record.AccessToken, nil
}

// Clear removes the token row.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.NewDelete().
		Model((*TokenRecord)(nil)).
		Where("slot = ?", tokenSlot).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear session token")
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
