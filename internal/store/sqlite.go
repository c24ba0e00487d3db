package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/Abdul07in/supplychainx/internal/domain"
)

// SQLiteStore keeps every collection in one table of a single-file database.
// Timestamps are stored as unix microseconds.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		path = "supplychainx.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS records (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		doc TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (collection, id)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create records table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Insert(ctx context.Context, c domain.Collection, doc Document) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (collection, id, doc, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		string(c), doc.ID, string(doc.Data), doc.CreatedAt.UnixMicro(), doc.UpdatedAt.UnixMicro())
	if err != nil {
		return domain.Transient(fmt.Errorf("inserting %s: %w", c, err))
	}
	return nil
}

func (s *SQLiteStore) Fetch(ctx context.Context, c domain.Collection, id string) (Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, doc, created_at, updated_at FROM records WHERE collection = ? AND id = ?`,
		string(c), id)
	doc, err := scanSQLiteDocument(row)
	if err != nil {
		return Document{}, sqliteError(c, id, err)
	}
	return doc, nil
}

func (s *SQLiteStore) Modify(ctx context.Context, c domain.Collection, id string, fn func(Document) (Document, error)) (_ Document, retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Document{}, domain.Transient(fmt.Errorf("begin: %w", err))
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	cur, err := scanSQLiteDocument(tx.QueryRowContext(ctx,
		`SELECT id, doc, created_at, updated_at FROM records WHERE collection = ? AND id = ?`,
		string(c), id))
	if err != nil {
		return Document{}, sqliteError(c, id, err)
	}

	next, err := fn(cur)
	if err != nil {
		return Document{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE records SET doc = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		string(next.Data), next.UpdatedAt.UnixMicro(), string(c), id); err != nil {
		return Document{}, domain.Transient(fmt.Errorf("updating %s %s: %w", c, id, err))
	}
	if err := tx.Commit(); err != nil {
		return Document{}, domain.Transient(fmt.Errorf("commit: %w", err))
	}
	return next, nil
}

func (s *SQLiteStore) Remove(ctx context.Context, c domain.Collection, id string) (Document, error) {
	row := s.db.QueryRowContext(ctx,
		`DELETE FROM records WHERE collection = ? AND id = ? RETURNING id, doc, created_at, updated_at`,
		string(c), id)
	doc, err := scanSQLiteDocument(row)
	if err != nil {
		return Document{}, sqliteError(c, id, err)
	}
	return doc, nil
}

func (s *SQLiteStore) Query(ctx context.Context, c domain.Collection, q Query) ([]Document, int, error) {
	where := "collection = ?"
	args := []any{string(c)}

	if q.Search != "" && len(q.SearchFields) > 0 {
		pattern := "%" + escapeLike(q.Search) + "%"
		ors := make([]string, 0, len(q.SearchFields))
		for _, f := range q.SearchFields {
			ors = append(ors, `json_extract(doc, ?) LIKE ? ESCAPE '\'`)
			args = append(args, "$."+f, pattern)
		}
		where += " AND (" + strings.Join(ors, " OR ") + ")"
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, domain.Transient(fmt.Errorf("counting %s: %w", c, err))
	}

	orderBy := "created_at"
	switch q.SortField {
	case "", domain.FieldCreatedAt:
	case domain.FieldUpdatedAt:
		orderBy = "updated_at"
	default:
		orderBy = "json_extract(doc, ?)"
		args = append(args, "$."+q.SortField)
	}
	dir := "ASC"
	if q.Descending {
		dir = "DESC"
	}
	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, doc, created_at, updated_at FROM records WHERE %s ORDER BY %s %s, rowid %s LIMIT ? OFFSET ?`,
		where, orderBy, dir, dir), args...)
	if err != nil {
		return nil, 0, domain.Transient(fmt.Errorf("querying %s: %w", c, err))
	}
	defer func() { _ = rows.Close() }()

	docs := []Document{}
	for rows.Next() {
		doc, err := scanSQLiteDocument(rows)
		if err != nil {
			return nil, 0, domain.Transient(fmt.Errorf("scanning %s: %w", c, err))
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, domain.Transient(fmt.Errorf("iterating %s: %w", c, err))
	}
	return docs, total, nil
}

func (s *SQLiteStore) Count(ctx context.Context, c domain.Collection) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE collection = ?`, string(c)).Scan(&n); err != nil {
		return 0, domain.Transient(fmt.Errorf("counting %s: %w", c, err))
	}
	return n, nil
}

type sqlScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteDocument(row sqlScanner) (Document, error) {
	var (
		doc              Document
		data             string
		created, updated int64
	)
	if err := row.Scan(&doc.ID, &data, &created, &updated); err != nil {
		return Document{}, err
	}
	doc.Data = json.RawMessage(data)
	doc.CreatedAt = time.UnixMicro(created).UTC()
	doc.UpdatedAt = time.UnixMicro(updated).UTC()
	return doc, nil
}

func sqliteError(c domain.Collection, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound(c, id)
	}
	return domain.Transient(fmt.Errorf("reading %s %s: %w", c, id, err))
}
