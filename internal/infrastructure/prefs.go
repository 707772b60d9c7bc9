package infrastructure

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bioscout-islamabad/bioscout/internal/prefs"
)

// NewPrefsKV builds the preference backend named by driver: "memory",
// "sqlite" (dsn is a file path) or "postgres" (dsn is a libpq URL). The
// returned closer releases the database, if any.
func NewPrefsKV(ctx context.Context, driver, dsn string) (prefs.KV, func() error, error) {
	var (
		db      *sql.DB
		dialect prefs.Dialect
		err     error
	)
	switch driver {
	case "", "memory":
		return prefs.NewMemoryKV(), func() error { return nil }, nil
	case "sqlite":
		db, err = NewSQLiteDB(ctx, dsn)
		dialect = prefs.DialectSQLite
	case "postgres":
		db, err = NewPostgresDB(ctx, dsn)
		dialect = prefs.DialectPostgres
	default:
		return nil, nil, fmt.Errorf("prefs driver %q is not supported", driver)
	}
	if err != nil {
		return nil, nil, err
	}
	kv, err := prefs.NewSQLKV(ctx, db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return kv, db.Close, nil
}
