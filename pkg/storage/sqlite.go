package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// sqliteTimeFormat is the timestamp format used for all SQLite datetime values.
const sqliteTimeFormat = "2006-01-02 15:04:05"

// SQLiteMedium stores documents in a single key/value table.
type SQLiteMedium struct {
	db *sql.DB
}

// OpenSQLite creates or opens the database at path.
func OpenSQLite(path string) (*SQLiteMedium, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	m := &SQLiteMedium{db: db}
	if err := m.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return m, nil
}

func (m *SQLiteMedium) createSchema() error {
	_, err := m.db.Exec(`
	CREATE TABLE IF NOT EXISTS documents (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	return err
}

func (m *SQLiteMedium) Read(key string) ([]byte, error) {
	var data []byte
	err := m.db.QueryRow("SELECT value FROM documents WHERE key = ?", key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read document %s: %w", key, err)
	}
	return data, nil
}

func (m *SQLiteMedium) Write(key string, data []byte) error {
	now := time.Now().UTC().Format(sqliteTimeFormat)
	_, err := m.db.Exec(`
		INSERT INTO documents (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, data, now)
	if err != nil {
		return fmt.Errorf("write document %s: %w", key, err)
	}
	return nil
}

// UpdatedAt reports when key was last written. Zero time if unknown.
func (m *SQLiteMedium) UpdatedAt(key string) time.Time {
	var s string
	if err := m.db.QueryRow("SELECT updated_at FROM documents WHERE key = ?", key).Scan(&s); err != nil {
		return time.Time{}
	}
	if t, err := time.Parse(sqliteTimeFormat, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}

func (m *SQLiteMedium) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
