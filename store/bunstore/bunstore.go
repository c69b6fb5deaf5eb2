// Package bunstore provides a durable Storage backed by a SQLite database
// through Bun, for CLI and desktop consumers that outlive a single process
// and want transactional session persistence instead of a flat file.
package bunstore

import (
	"context"
	"database/sql"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Entry is a persisted key/value pair.
type Entry struct {
	bun.BaseModel `bun:"table:session_store,alias:ss"`
	Key           string    `bun:"key,pk" json:"key"`
	Value         string    `bun:"value,notnull" json:"value"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// Storage implements the authclient Storage contract over a bun.DB.
type Storage struct {
	db  *bun.DB
	ctx context.Context
}

// Open creates (or opens) the SQLite database at dsn and ensures the schema.
// Use ":memory:" for an ephemeral store.
func Open(ctx context.Context, dsn string) (*Storage, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to open session database")
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	s := &Storage{db: db, ctx: ctx}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing bun.DB, ensuring the schema.
func New(ctx context.Context, db *bun.DB) (*Storage, error) {
	s := &Storage{db: db, ctx: ctx}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) ensureSchema(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().
		Model((*Entry)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to create session store table")
	}
	return nil
}

// Get reads a key. Missing keys are reported through the boolean, read
// failures are swallowed the way an unreadable local storage would be.
func (s *Storage) Get(key string) (string, bool) {
	entry := &Entry{}
	err := s.db.NewSelect().
		Model(entry).
		Where("?TableAlias.key = ?", key).
		Scan(s.ctx)
	if err != nil {
		return "", false
	}
	return entry.Value, true
}

// Set upserts a key.
func (s *Storage) Set(key, value string) error {
	entry := &Entry{Key: key, Value: value, UpdatedAt: time.Now()}
	_, err := s.db.NewInsert().
		Model(entry).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(s.ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to persist session key")
	}
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *Storage) Delete(key string) error {
	_, err := s.db.NewDelete().
		Model((*Entry)(nil)).
		Where("key = ?", key).
		Exec(s.ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to delete session key")
	}
	return nil
}

// Close releases the underlying database.
func (s *Storage) Close() error {
	return s.db.Close()
}
