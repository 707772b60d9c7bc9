package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Dialect selects placeholder and upsert syntax.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLKV stores values in a two-column table.
type SQLKV struct {
	db      *sql.DB
	dialect Dialect
}

const createTable = `
CREATE TABLE IF NOT EXISTS client_prefs (
	pref_key   TEXT PRIMARY KEY,
	pref_value TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// NewSQLKV wraps db and creates the table if needed.
func NewSQLKV(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLKV, error) {
	if db == nil {
		return nil, fmt.Errorf("prefs: nil db")
	}
	switch dialect {
	case DialectSQLite, DialectPostgres:
	default:
		return nil, fmt.Errorf("prefs: unknown dialect %q", dialect)
	}
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		return nil, fmt.Errorf("prefs: migrate: %w", err)
	}
	return &SQLKV{db: db, dialect: dialect}, nil
}

func (s *SQLKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	q := `SELECT pref_value FROM client_prefs WHERE pref_key = ` + s.arg(1)
	var v string
	err := s.db.QueryRowContext(ctx, q, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("prefs: get %s: %w", key, err)
	}
	return []byte(v), true, nil
}

func (s *SQLKV) Set(ctx context.Context, key string, value []byte) error {
	// both SQLite (3.24+) and PostgreSQL accept ON CONFLICT ... DO UPDATE
	q := fmt.Sprintf(`
		INSERT INTO client_prefs (pref_key, pref_value, updated_at)
		VALUES (%s, %s, CURRENT_TIMESTAMP)
		ON CONFLICT (pref_key) DO UPDATE
		SET pref_value = excluded.pref_value, updated_at = CURRENT_TIMESTAMP`,
		s.arg(1), s.arg(2))
	if _, err := s.db.ExecContext(ctx, q, key, string(value)); err != nil {
		return fmt.Errorf("prefs: set %s: %w", key, err)
	}
	return nil
}

func (s *SQLKV) Delete(ctx context.Context, key string) error {
	q := `DELETE FROM client_prefs WHERE pref_key = ` + s.arg(1)
	if _, err := s.db.ExecContext(ctx, q, key); err != nil {
		return fmt.Errorf("prefs: delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLKV) arg(n int) string {
	if s.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
