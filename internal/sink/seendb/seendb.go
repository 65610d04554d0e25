// Package seendb persists review keys in a local SQLite file so
// interrupted or repeated runs never append a row twice.
package seendb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS seen_reviews (
	key      TEXT PRIMARY KEY,
	first_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// DB is a cross-run review key store.
type DB struct {
	db *sql.DB
}

// Open creates or opens the store at path.
func Open(ctx context.Context, path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open seen db: %w", err)
	}
	// The sqlite driver serializes writes; a single connection avoids
	// spurious SQLITE_BUSY under concurrent sinks.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("init seen db schema: %w", err)
	}
	return &DB{db: db}, nil
}

// MarkIfNew records the key, reporting true when it was not present
// before this call.
func (d *DB) MarkIfNew(ctx context.Context, key string) (bool, error) {
	res, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO seen_reviews (key) VALUES (?)`, key)
	if err != nil {
		return false, fmt.Errorf("mark seen key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Count returns the number of recorded keys.
func (d *DB) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seen_reviews`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count seen keys: %w", err)
	}
	return n, nil
}

// Close releases the underlying database handle.
func (d *DB) Close() error {
	return d.db.Close()
}
