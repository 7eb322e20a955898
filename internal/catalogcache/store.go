package catalogcache

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"kobodown/internal/kobo"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; stale databases are rebuilt rather than migrated.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match
// the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Store manages the catalog cache backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the cache database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

func modeKey(all bool) string {
	if all {
		return "all"
	}
	return "default"
}

// Put replaces the cached catalog for the given listing mode.
func (s *Store) Put(ctx context.Context, all bool, books []kobo.Book) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	mode := modeKey(all)
	if _, err := tx.ExecContext(ctx, "DELETE FROM books WHERE mode = ?", mode); err != nil {
		return fmt.Errorf("clear catalog: %w", err)
	}
	for i, book := range books {
		archived := 0
		if book.Archived {
			archived = 1
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO books (mode, position, revision_id, title, authors, archived) VALUES (?, ?, ?, ?, ?, ?)",
			mode, i, book.RevisionID, book.Title, book.Authors, archived,
		)
		if err != nil {
			return fmt.Errorf("insert book %q: %w", book.RevisionID, err)
		}
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO catalogs (mode, synced_at) VALUES (?, ?) ON CONFLICT(mode) DO UPDATE SET synced_at = excluded.synced_at",
		mode, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record sync time: %w", err)
	}
	return tx.Commit()
}

// Get returns the cached catalog for the listing mode when it exists and
// was synced within maxAge. ok is false on a miss or a stale cache.
func (s *Store) Get(ctx context.Context, all bool, maxAge time.Duration) ([]kobo.Book, bool, error) {
	mode := modeKey(all)

	var syncedAt string
	err := s.db.QueryRowContext(ctx, "SELECT synced_at FROM catalogs WHERE mode = ?", mode).Scan(&syncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read sync time: %w", err)
	}
	synced, err := time.Parse(time.RFC3339, syncedAt)
	if err != nil || time.Since(synced) > maxAge {
		return nil, false, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT revision_id, title, authors, archived FROM books WHERE mode = ? ORDER BY position",
		mode,
	)
	if err != nil {
		return nil, false, fmt.Errorf("read catalog: %w", err)
	}
	defer rows.Close()

	var books []kobo.Book
	for rows.Next() {
		var book kobo.Book
		var archived int
		if err := rows.Scan(&book.RevisionID, &book.Title, &book.Authors, &archived); err != nil {
			return nil, false, fmt.Errorf("scan book: %w", err)
		}
		book.Archived = archived != 0
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("read catalog: %w", err)
	}
	return books, true, nil
}

// Clear drops every cached catalog.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM books"); err != nil {
		return fmt.Errorf("clear books: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM catalogs"); err != nil {
		return fmt.Errorf("clear catalogs: %w", err)
	}
	return nil
}
