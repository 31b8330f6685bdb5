package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/Aman-CERP/contentsync/internal/content"
	serrors "github.com/Aman-CERP/contentsync/internal/errors"
)

// SQLiteStore keeps documents in a SQLite table. WAL mode lets status
// readers in other processes run while a sync pass writes.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
	retry  serrors.RetryConfig
}

var _ Store = (*SQLiteStore)(nil)

// validateSQLiteIntegrity checks an existing database file before opening.
// Returns nil if valid or absent, an error describing the corruption otherwise.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
                       WHERE type='table' AND name='documents'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("documents table missing")
	}
	return nil
}

// NewSQLiteStore opens (or creates) a SQLite document store.
// If path is empty, creates an in-memory store for testing.
// A corrupted database file is removed and recreated empty.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if validErr := validateSQLiteIntegrity(path); validErr != nil {
			slog.Warn("sqlite_store_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, serrors.New(serrors.ErrCodeCorruptIndex,
					fmt.Sprintf("index corrupted at %s and cannot be removed", path), removeErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")

			slog.Info("sqlite_store_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, run rebuild"))
		}

		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, serrors.New(serrors.ErrCodeStoreOpen, "failed to open database", err)
	}

	// Single writer to prevent lock contention. One connection also keeps
	// an in-memory database alive for the lifetime of the store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN params may be ignored by modernc.org/sqlite
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, serrors.New(serrors.ErrCodeStoreOpen, "failed to set pragma", err)
		}
	}

	s := &SQLiteStore{
		db:    db,
		path:  path,
		retry: serrors.StoreRetryConfig(),
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, serrors.New(serrors.ErrCodeStoreOpen, "failed to initialize schema", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS documents (
		id          TEXT PRIMARY KEY,
		group_id    TEXT NOT NULL,
		database    TEXT NOT NULL,
		node_id     TEXT NOT NULL,
		language    TEXT NOT NULL,
		version     INTEGER NOT NULL,
		path        TEXT NOT NULL,
		template_id TEXT NOT NULL DEFAULT '',
		is_latest   INTEGER NOT NULL,
		is_fallback INTEGER NOT NULL,
		temporary   INTEGER NOT NULL,
		formatter   TEXT NOT NULL,
		fields      TEXT NOT NULL,
		indexed_at  TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_group ON documents(group_id, language);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// WriteDocument implements Store.
func (s *SQLiteStore) WriteDocument(ctx context.Context, doc *content.Document) error {
	fields, err := json.Marshal(doc.Fields)
	if err != nil {
		return serrors.IndexError("failed to encode fields of "+doc.ID, err)
	}

	return s.exec(ctx, `
		INSERT INTO documents (id, group_id, database, node_id, language, version, path, template_id,
			is_latest, is_fallback, temporary, formatter, fields, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			group_id = excluded.group_id,
			database = excluded.database,
			node_id = excluded.node_id,
			language = excluded.language,
			version = excluded.version,
			path = excluded.path,
			template_id = excluded.template_id,
			is_latest = excluded.is_latest,
			is_fallback = excluded.is_fallback,
			temporary = excluded.temporary,
			formatter = excluded.formatter,
			fields = excluded.fields,
			indexed_at = excluded.indexed_at`,
		doc.ID, doc.GroupID, doc.Database, doc.NodeID, doc.Language, doc.Version, doc.Path, doc.TemplateID,
		doc.IsLatestVersion, doc.IsFallback, doc.Temporary, doc.Formatter, string(fields),
		doc.IndexedAt.UTC().Format(time.RFC3339Nano))
}

// DeleteDocument implements Store.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, id content.Identity) error {
	if id.Version.IsLatest() {
		return s.exec(ctx, `DELETE FROM documents WHERE group_id = ? AND language = ?`,
			id.GroupID().String(), id.Language)
	}
	return s.exec(ctx, `DELETE FROM documents WHERE id = ?`, id.Key())
}

// DeleteGroup implements Store.
func (s *SQLiteStore) DeleteGroup(ctx context.Context, group content.GroupID) error {
	return s.exec(ctx, `DELETE FROM documents WHERE group_id = ?`, group.String())
}

// DeleteFallbacks implements Store.
func (s *SQLiteStore) DeleteFallbacks(ctx context.Context, id content.Identity) error {
	keep := ""
	if !id.Version.IsLatest() {
		keep = id.Key()
	}
	return s.exec(ctx, `DELETE FROM documents WHERE group_id = ? AND language = ? AND is_fallback = 1 AND id <> ?`,
		id.GroupID().String(), id.Language, keep)
}

// Clear implements Store.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	return s.exec(ctx, `DELETE FROM documents`)
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, docID string) (*content.Document, error) {
	docs, err := s.query(ctx, `WHERE id = ?`, docID)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]*content.Document, error) {
	var (
		where []string
		args  []any
	)
	if filter.GroupID != "" {
		where = append(where, "group_id = ?")
		args = append(args, filter.GroupID)
	}
	if filter.Language != "" {
		where = append(where, "language = ?")
		args = append(args, filter.Language)
	}
	if filter.LatestOnly {
		where = append(where, "is_latest = 1")
	}
	if filter.FallbackOnly {
		where = append(where, "is_fallback = 1")
	}

	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}
	return s.query(ctx, clause, args...)
}

// Stats implements Store.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	docs, err := s.List(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	stats := summarize(BackendSQLite, s.path, docs)
	if s.path != "" {
		if info, err := os.Stat(s.path); err == nil {
			stats.SizeOnDisk = info.Size()
		}
	}
	return stats, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// exec runs a write statement, retrying while the database is busy.
func (s *SQLiteStore) exec(ctx context.Context, stmt string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return serrors.IndexError("store is closed", nil)
	}

	return serrors.Retry(ctx, s.retry, func() error {
		if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
			return classify(err)
		}
		return nil
	})
}

func (s *SQLiteStore) query(ctx context.Context, clause string, args ...any) ([]*content.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, serrors.IndexError("store is closed", nil)
	}

	return serrors.RetryWithResult(ctx, s.retry, func() ([]*content.Document, error) {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, group_id, database, node_id, language, version, path, template_id,
				is_latest, is_fallback, temporary, formatter, fields, indexed_at
			FROM documents `+clause+` ORDER BY id`, args...)
		if err != nil {
			return nil, classify(err)
		}
		defer rows.Close()

		var docs []*content.Document
		for rows.Next() {
			var (
				doc       content.Document
				fields    string
				indexedAt string
			)
			if err := rows.Scan(&doc.ID, &doc.GroupID, &doc.Database, &doc.NodeID, &doc.Language,
				&doc.Version, &doc.Path, &doc.TemplateID, &doc.IsLatestVersion, &doc.IsFallback,
				&doc.Temporary, &doc.Formatter, &fields, &indexedAt); err != nil {
				return nil, serrors.IndexError("failed to scan document", err)
			}
			if err := json.Unmarshal([]byte(fields), &doc.Fields); err != nil {
				return nil, serrors.New(serrors.ErrCodeCorruptIndex, "failed to decode fields of "+doc.ID, err)
			}
			doc.IndexedAt, _ = time.Parse(time.RFC3339Nano, indexedAt)
			docs = append(docs, &doc)
		}
		if err := rows.Err(); err != nil {
			return nil, classify(err)
		}
		return docs, nil
	})
}

// classify maps driver errors onto store error codes so busy databases
// are retried and everything else fails fast.
func classify(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked") {
		return serrors.New(serrors.ErrCodeStoreBusy, "database is busy", err)
	}
	return serrors.IndexError("sqlite statement failed", err)
}
