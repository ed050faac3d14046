package persistence

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		// embed.FS paths always use forward slashes.
		content, err := migrationFiles.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

// SaveDocument inserts doc or replaces the document stored under the same
// name, keeping its id and creation time.
func (s *SQLiteStore) SaveDocument(ctx context.Context, doc *Document) error {
	if doc == nil || strings.TrimSpace(doc.Name) == "" {
		return fmt.Errorf("document name is required")
	}
	now := time.Now().UTC()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO session_documents (id, name, src, version, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   src = excluded.src,
		   version = excluded.version,
		   data = excluded.data,
		   updated_at = excluded.updated_at`,
		doc.ID,
		doc.Name,
		doc.Src,
		doc.Version,
		doc.Data,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save document %s: %w", doc.Name, err)
	}

	// Pick up the id and creation time of a replaced row.
	if err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at FROM session_documents WHERE name = ?`, doc.Name,
	).Scan(&doc.ID, &doc.CreatedAt); err != nil {
		return fmt.Errorf("reload document %s: %w", doc.Name, err)
	}
	return nil
}

func (s *SQLiteStore) LoadDocument(ctx context.Context, name string) (*Document, error) {
	var doc Document
	err := s.db.QueryRowContext(
		ctx,
		`SELECT id, name, src, version, data, created_at, updated_at
		 FROM session_documents
		 WHERE name = ?`,
		name,
	).Scan(&doc.ID, &doc.Name, &doc.Src, &doc.Version, &doc.Data, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", name, err)
	}
	return &doc, nil
}

// ListDocuments returns stored documents, most recently updated first.
func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]DocumentSummary, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, name, src, version, length(data), created_at, updated_at
		 FROM session_documents
		 ORDER BY updated_at DESC, name ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]DocumentSummary, 0)
	for rows.Next() {
		var item DocumentSummary
		if err := rows.Scan(&item.ID, &item.Name, &item.Src, &item.Version, &item.Size, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		ret = append(ret, item)
	}
	return ret, rows.Err()
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM session_documents WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}
