package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Abdul07in/supplychainx/internal/domain"
)

// PostgresStore keeps every collection in one JSONB table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *PostgresStore) Insert(ctx context.Context, c domain.Collection, doc Document) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO records (collection, id, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, string(c), doc.ID, doc.Data, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return domain.Transient(fmt.Errorf("inserting %s: %w", c, err))
	}
	return nil
}

func (s *PostgresStore) Fetch(ctx context.Context, c domain.Collection, id string) (Document, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, doc, created_at, updated_at
		FROM records WHERE collection = $1 AND id = $2
	`, string(c), id)
	doc, err := scanDocument(row)
	if err != nil {
		return Document{}, pgError(c, id, err)
	}
	return doc, nil
}

func (s *PostgresStore) Modify(ctx context.Context, c domain.Collection, id string, fn func(Document) (Document, error)) (Document, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Document{}, domain.Transient(fmt.Errorf("beginning transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	cur, err := scanDocument(tx.QueryRow(ctx, `
		SELECT id, doc, created_at, updated_at
		FROM records WHERE collection = $1 AND id = $2
		FOR UPDATE
	`, string(c), id))
	if err != nil {
		return Document{}, pgError(c, id, err)
	}

	next, err := fn(cur)
	if err != nil {
		return Document{}, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE records SET doc = $3, updated_at = $4
		WHERE collection = $1 AND id = $2
	`, string(c), id, next.Data, next.UpdatedAt)
	if err != nil {
		return Document{}, domain.Transient(fmt.Errorf("updating %s %s: %w", c, id, err))
	}

	if err := tx.Commit(ctx); err != nil {
		return Document{}, domain.Transient(fmt.Errorf("committing transaction: %w", err))
	}
	return next, nil
}

func (s *PostgresStore) Remove(ctx context.Context, c domain.Collection, id string) (Document, error) {
	row := s.pool.QueryRow(ctx, `
		DELETE FROM records WHERE collection = $1 AND id = $2
		RETURNING id, doc, created_at, updated_at
	`, string(c), id)
	doc, err := scanDocument(row)
	if err != nil {
		return Document{}, pgError(c, id, err)
	}
	return doc, nil
}

func (s *PostgresStore) Query(ctx context.Context, c domain.Collection, q Query) ([]Document, int, error) {
	where := []string{"collection = $1"}
	args := []interface{}{string(c)}
	argIdx := 2

	if q.Search != "" && len(q.SearchFields) > 0 {
		args = append(args, "%"+escapeLike(q.Search)+"%")
		pattern := argIdx
		argIdx++

		var ors []string
		for _, f := range q.SearchFields {
			ors = append(ors, fmt.Sprintf("doc ->> $%d::text ILIKE $%d", argIdx, pattern))
			args = append(args, f)
			argIdx++
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM records WHERE "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, domain.Transient(fmt.Errorf("counting %s: %w", c, err))
	}

	var orderBy string
	switch q.SortField {
	case "", domain.FieldCreatedAt:
		orderBy = "created_at"
	case domain.FieldUpdatedAt:
		orderBy = "updated_at"
	default:
		orderBy = fmt.Sprintf("doc -> $%d::text", argIdx)
		args = append(args, q.SortField)
		argIdx++
	}
	dir := "ASC"
	if q.Descending {
		dir = "DESC"
	}

	query := fmt.Sprintf(`
		SELECT id, doc, created_at, updated_at
		FROM records
		WHERE %s
		ORDER BY %s %s, seq %s
		LIMIT $%d OFFSET $%d
	`, whereClause, orderBy, dir, dir, argIdx, argIdx+1)
	args = append(args, q.Limit, q.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, domain.Transient(fmt.Errorf("querying %s: %w", c, err))
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
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

func (s *PostgresStore) Count(ctx context.Context, c domain.Collection) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM records WHERE collection = $1", string(c)).Scan(&n)
	if err != nil {
		return 0, domain.Transient(fmt.Errorf("counting %s: %w", c, err))
	}
	return n, nil
}

// RunMigrations executes all .up.sql migration files in order.
func (s *PostgresStore) RunMigrations(ctx context.Context, migrationsDir string) error {
	// Create migrations tracking table
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	var migrations []string
	err = filepath.WalkDir(migrationsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".up.sql") {
			migrations = append(migrations, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Strings(migrations)

	for _, path := range migrations {
		version := filepath.Base(path)

		var exists bool
		err := s.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
			version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking migration %s: %w", version, err)
		}
		if exists {
			continue
		}

		sql, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", version, err)
		}

		if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("executing migration %s: %w", version, err)
		}

		_, err = s.pool.Exec(ctx,
			"INSERT INTO schema_migrations (version) VALUES ($1)",
			version,
		)
		if err != nil {
			return fmt.Errorf("recording migration %s: %w", version, err)
		}
	}

	return nil
}

func scanDocument(row pgx.Row) (Document, error) {
	var (
		doc  Document
		data []byte
	)
	if err := row.Scan(&doc.ID, &data, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return Document{}, err
	}
	doc.Data = json.RawMessage(data)
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = doc.UpdatedAt.UTC()
	return doc, nil
}

func pgError(c domain.Collection, id string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFound(c, id)
	}
	return domain.Transient(fmt.Errorf("reading %s %s: %w", c, id, err))
}

// escapeLike quotes the LIKE wildcards in s using the default backslash escape.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
