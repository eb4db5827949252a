// Package articles persists parsed articles in a relational store keyed by
// (source, article_id) with a surrogate integer primary key.
package articles

import (
	"context"
	"strings"

	"github.com/florinhegedus/rag-system-romanian-laws/engine/domain"
)

// Store is the relational record store for articles.
type Store interface {
	// UpsertByKey inserts or updates the article identified by (Source,
	// ArticleID) and returns it with its primary key set.
	UpsertByKey(ctx context.Context, a domain.Article) (domain.Article, error)
	GetByID(ctx context.Context, id int64) (domain.Article, error)
	GetByKey(ctx context.Context, source, articleID string) (domain.Article, error)
	List(ctx context.Context, f Filter) ([]domain.Article, error)
	Count(ctx context.Context, source string) (int, error)
	Close() error
}

// Filter narrows List. Zero Limit means no limit.
type Filter struct {
	Source string
	Offset int
	Limit  int
}

const columns = `id, source, article_id, article_title, article_body,
	COALESCE(part, ''), COALESCE(title, ''), COALESCE(chapter, ''), COALESCE(section, '')`

type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(row scanner) (domain.Article, error) {
	var a domain.Article
	err := row.Scan(&a.ID, &a.Source, &a.ArticleID, &a.Title, &a.Body, &a.Part, &a.GroupTitle, &a.Chapter, &a.Section)
	return a, err
}

func upsertArgs(a domain.Article) []any {
	return []any{a.Source, a.ArticleID, a.Title, a.Body, a.Part, a.GroupTitle, a.Chapter, a.Section}
}

// upsertSQL renders the shared upsert with the driver's placeholder style.
func upsertSQL(ph func(int) string) string {
	var vals []string
	for i := 1; i <= 8; i++ {
		vals = append(vals, ph(i))
	}
	return `INSERT INTO articles (source, article_id, article_title, article_body, part, title, chapter, section)
		VALUES (` + strings.Join(vals, ", ") + `)
		ON CONFLICT (source, article_id) DO UPDATE SET
			article_title = excluded.article_title,
			article_body = excluded.article_body,
			part = excluded.part,
			title = excluded.title,
			chapter = excluded.chapter,
			section = excluded.section
		RETURNING id`
}
