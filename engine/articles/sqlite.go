package articles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/florinhegedus/rag-system-romanian-laws/engine/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS articles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source TEXT NOT NULL,
	article_id TEXT NOT NULL,
	article_title TEXT NOT NULL,
	article_body TEXT NOT NULL,
	part TEXT,
	title TEXT,
	chapter TEXT,
	section TEXT,
	UNIQUE (source, article_id)
);
CREATE INDEX IF NOT EXISTS idx_articles_source ON articles(source);
`

// SQLite is a Store backed by the pure-Go SQLite driver. Used for local runs
// and tests.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path. ":memory:" is allowed.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, domain.Wrap(domain.ErrStoreUnavailable, "articles: open sqlite", err)
	}
	// One connection: a second one would see a different :memory: database
	// and SQLite serialises writers anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, domain.Wrap(domain.ErrStoreUnavailable, "articles: migrate sqlite", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) UpsertByKey(ctx context.Context, a domain.Article) (domain.Article, error) {
	q := upsertSQL(func(int) string { return "?" })
	if err := s.db.QueryRowContext(ctx, q, upsertArgs(a)...).Scan(&a.ID); err != nil {
		return domain.Article{}, domain.Wrap(domain.ErrStoreUnavailable, "articles: upsert "+a.Reference(), err)
	}
	return a, nil
}

func (s *SQLite) get(ctx context.Context, what, where string, args ...any) (domain.Article, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+columns+" FROM articles WHERE "+where, args...)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Article{}, fmt.Errorf("articles: %s: %w", what, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Article{}, domain.Wrap(domain.ErrStoreUnavailable, "articles: get "+what, err)
	}
	return a, nil
}

func (s *SQLite) GetByID(ctx context.Context, id int64) (domain.Article, error) {
	return s.get(ctx, fmt.Sprintf("id %d", id), "id = ?", id)
}

func (s *SQLite) GetByKey(ctx context.Context, source, articleID string) (domain.Article, error) {
	return s.get(ctx, domain.Reference(source, articleID), "source = ? AND article_id = ?", source, articleID)
}

func (s *SQLite) List(ctx context.Context, f Filter) ([]domain.Article, error) {
	q := "SELECT " + columns + " FROM articles"
	var args []any
	if f.Source != "" {
		q += " WHERE source = ?"
		args = append(args, f.Source)
	}
	q += " ORDER BY id"
	if f.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, domain.Wrap(domain.ErrStoreUnavailable, "articles: list", err)
	}
	defer rows.Close()

	var out []domain.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, domain.Wrap(domain.ErrStoreUnavailable, "articles: scan", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Wrap(domain.ErrStoreUnavailable, "articles: list", err)
	}
	return out, nil
}

func (s *SQLite) Count(ctx context.Context, source string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles WHERE source = ?", source).Scan(&n)
	if err != nil {
		return 0, domain.Wrap(domain.ErrStoreUnavailable, "articles: count", err)
	}
	return n, nil
}

// Delete removes one article. Only tests and maintenance tooling call it.
func (s *SQLite) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM articles WHERE id = ?", id); err != nil {
		return domain.Wrap(domain.ErrStoreUnavailable, "articles: delete", err)
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }
