// Package library keeps the recent-projects index: every project opened or
// saved through the control surface is recorded here so clients can list
// and reopen past work.
package library

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/inkpadhq/inkpad/dbopen"
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	path        TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	last_opened INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_projects_last_opened ON projects (last_opened DESC);
`

// Entry is one recent project.
type Entry struct {
	Path       string    `json:"path"`
	Name       string    `json:"name"`
	LastOpened time.Time `json:"last_opened"`
}

// Store is the SQLite-backed index.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the index at path, creating parent directories
// as needed.
func Open(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(schema))
	if err != nil {
		return nil, fmt.Errorf("library: %w", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing database, applying the schema. Used by tests
// with dbopen.OpenMemory.
func NewWithDB(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("library: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Touch upserts a project, refreshing its name and last-opened time.
func (s *Store) Touch(ctx context.Context, path, name string) error {
	if path == "" {
		return fmt.Errorf("library: empty path")
	}
	if name == "" {
		name = "Untitled"
	}
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projects (path, name, last_opened) VALUES (?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET name = excluded.name, last_opened = excluded.last_opened`,
			path, name, time.Now().UnixMilli())
		return err
	})
}

// Recent lists up to limit projects, most recently opened first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, name, last_opened FROM projects
		ORDER BY last_opened DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("library: recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ms int64
		if err := rows.Scan(&e.Path, &e.Name, &ms); err != nil {
			return nil, fmt.Errorf("library: scan: %w", err)
		}
		e.LastOpened = time.UnixMilli(ms)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Forget removes a project from the index.
func (s *Store) Forget(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("library: forget: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }
