package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// schema contains the DDL executed on first open. Using IF NOT EXISTS makes
// it safe to run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    key        TEXT PRIMARY KEY,
    payload    BLOB NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// defaultSnapshotKey is the fixed key the library snapshot is stored under.
const defaultSnapshotKey = "choreo.library"

// SQLiteCache implements Cache on top of a local SQLite database. The whole
// aggregate is stored as one payload row under a fixed key.
type SQLiteCache struct {
	db  *sql.DB
	key string
}

// NewSQLiteCache opens (or creates) a SQLite database at dbPath, enables WAL
// mode and busy timeout, and creates the snapshot table if it does not exist.
func NewSQLiteCache(ctx context.Context, dbPath string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite cache: open database: %w", err)
	}

	// SQLite only supports a single writer; one connection avoids
	// SQLITE_BUSY contention between pooled connections that each need
	// their own PRAGMA setup.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite cache: enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite cache: set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite cache: create schema: %w", err)
	}

	return &SQLiteCache{db: db, key: defaultSnapshotKey}, nil
}

// Get returns the stored snapshot payload, or nil when no row exists.
func (c *SQLiteCache) Get() ([]byte, error) {
	var payload []byte
	err := c.db.QueryRow("SELECT payload FROM snapshots WHERE key = ?", c.key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite cache: get %q: %w", c.key, err)
	}
	return payload, nil
}

// Set upserts the snapshot payload under the fixed key.
func (c *SQLiteCache) Set(data []byte) error {
	const q = `
		INSERT INTO snapshots (key, payload, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = CURRENT_TIMESTAMP`
	if _, err := c.db.Exec(q, c.key, data); err != nil {
		return fmt.Errorf("sqlite cache: set %q: %w", c.key, err)
	}
	return nil
}

// Remove deletes the snapshot row. Removing an absent row is a no-op.
func (c *SQLiteCache) Remove() error {
	if _, err := c.db.Exec("DELETE FROM snapshots WHERE key = ?", c.key); err != nil {
		return fmt.Errorf("sqlite cache: remove %q: %w", c.key, err)
	}
	return nil
}

// Close releases the database connection.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
