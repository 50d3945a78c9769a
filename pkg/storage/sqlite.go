package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS objects (
	path       TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at DATETIME NOT NULL
);`

// SQLiteStorage implements Storage on a single SQLite table. Unlike the
// filesystem and S3 backends, WriteBatch is transactional.
type SQLiteStorage struct {
	db *sqlx.DB
}

// NewSQLiteStorage opens (or creates) the database at dbPath. ":memory:" is
// accepted and pinned to one connection so every caller sees the same data.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating objects table: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func normalize(path string) string {
	return strings.TrimPrefix(path, "/")
}

func (s *SQLiteStorage) Read(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := s.db.GetContext(ctx, &data, "SELECT data FROM objects WHERE path = ?", normalize(path))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

const upsertObject = `
INSERT INTO objects (path, data, updated_at) VALUES (?, ?, ?)
ON CONFLICT(path) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`

func (s *SQLiteStorage) Write(ctx context.Context, path string, data []byte) error {
	if _, err := s.db.ExecContext(ctx, upsertObject, normalize(path), data, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (s *SQLiteStorage) WriteBatch(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, upsertObject)
	if err != nil {
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, normalize(e.Path), e.Data, now); err != nil {
			return fmt.Errorf("failed to write %s: %w", e.Path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Delete(ctx context.Context, path string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM objects WHERE path = ?", normalize(path))
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return nil
}

// List returns the direct children of prefix, mirroring a directory listing.
func (s *SQLiteStorage) List(ctx context.Context, prefix string) ([]string, error) {
	dir := strings.TrimSuffix(normalize(prefix), "/") + "/"
	pattern := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(dir) + "%"

	var all []string
	err := s.db.SelectContext(ctx, &all,
		`SELECT path FROM objects WHERE path LIKE ? ESCAPE '\' ORDER BY path`, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	paths := all[:0]
	for _, p := range all {
		if strings.Contains(strings.TrimPrefix(p, dir), "/") {
			continue
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func (s *SQLiteStorage) Exists(ctx context.Context, path string) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM objects WHERE path = ?", normalize(path)); err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return n > 0, nil
}
