package articles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/florinhegedus/rag-system-romanian-laws/engine/domain"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS articles (
	id BIGSERIAL PRIMARY KEY,
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

// Postgres is the production Store.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, domain.Wrap(domain.ErrConfiguration, "articles: postgres dsn", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, domain.Wrap(domain.ErrStoreUnavailable, "articles: postgres ping", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, domain.Wrap(domain.ErrStoreUnavailable, "articles: migrate postgres", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) UpsertByKey(ctx context.Context, a domain.Article) (domain.Article, error) {
	q := upsertSQL(func(i int) string { return fmt.Sprintf("$%d", i) })
	if err := p.pool.QueryRow(ctx, q, upsertArgs(a)...).Scan(&a.ID); err != nil {
		return domain.Article{}, domain.Wrap(domain.ErrStoreUnavailable, "articles: upsert "+a.Reference(), err)
	}
	return a, nil
}

func (p *Postgres) get(ctx context.Context, what, where string, args ...any) (domain.Article, error) {
	a, err := scanArticle(p.pool.QueryRow(ctx, "SELECT "+columns+" FROM articles WHERE "+where, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Article{}, fmt.Errorf("articles: %s: %w", what, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Article{}, domain.Wrap(domain.ErrStoreUnavailable, "articles: get "+what, err)
	}
	return a, nil
}

func (p *Postgres) GetByID(ctx context.Context, id int64) (domain.Article, error) {
	return p.get(ctx, fmt.Sprintf("id %d", id), "id = $1", id)
}

func (p *Postgres) GetByKey(ctx context.Context, source, articleID string) (domain.Article, error) {
	return p.get(ctx, domain.Reference(source, articleID), "source = $1 AND article_id = $2", source, articleID)
}

func (p *Postgres) List(ctx context.Context, f Filter) ([]domain.Article, error) {
	q := "SELECT " + columns + " FROM articles"
	var args []any
	if f.Source != "" {
		args = append(args, f.Source)
		q += " WHERE source = $1"
	}
	q += " ORDER BY id"
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		q += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := p.pool.Query(ctx, q, args...)
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

func (p *Postgres) Count(ctx context.Context, source string) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM articles WHERE source = $1", source).Scan(&n); err != nil {
		return 0, domain.Wrap(domain.ErrStoreUnavailable, "articles: count", err)
	}
	return n, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
