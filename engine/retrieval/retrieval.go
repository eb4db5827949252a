// Package retrieval answers a natural-language question with the most similar
// article passages, each joined back to its full article.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/florinhegedus/rag-system-romanian-laws/engine/domain"
	"github.com/florinhegedus/rag-system-romanian-laws/engine/semantic"
	"github.com/florinhegedus/rag-system-romanian-laws/pkg/metrics"
)

// Embedder embeds the question. It must be the model that embedded the corpus.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the vector-store query.
type Searcher interface {
	Search(ctx context.Context, vector []float32, topK int) ([]semantic.Hit, error)
}

// ArticleLookup fetches the owning article of a hit.
type ArticleLookup interface {
	GetByID(ctx context.Context, id int64) (domain.Article, error)
}

// Outline optionally supplies the structural breadcrumb of an article.
type Outline interface {
	Breadcrumb(ctx context.Context, source, articleID string) ([]string, error)
}

// Options tunes the service.
type Options struct {
	MaxTopK           int
	LookupConcurrency int
	// Timeout bounds a search when the caller's context has no deadline.
	Timeout time.Duration
}

func DefaultOptions() Options {
	return Options{MaxTopK: 50, LookupConcurrency: 8, Timeout: 10 * time.Second}
}

// Result is one ranked passage.
type Result struct {
	Score           float32  `json:"score"`
	PassageText     string   `json:"text"`
	ArticleTitle    string   `json:"article_title"`
	FullArticleText string   `json:"full_text"`
	Reference       string   `json:"reference"`
	Breadcrumb      []string `json:"breadcrumb,omitempty"`
}

// Service runs embed, vector search and relational join.
type Service struct {
	embed    Embedder
	search   Searcher
	articles ArticleLookup
	outline  Outline
	opts     Options
	metrics  *metrics.Lexrag
	logger   *slog.Logger
}

// New wires a Service. outline may be nil.
func New(embed Embedder, search Searcher, articles ArticleLookup, outline Outline, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultOptions()
	if opts.MaxTopK <= 0 {
		opts.MaxTopK = def.MaxTopK
	}
	if opts.LookupConcurrency <= 0 {
		opts.LookupConcurrency = def.LookupConcurrency
	}
	return &Service{embed: embed, search: search, articles: articles, outline: outline, opts: opts, logger: logger}
}

// WithMetrics records latency and drop counts on m.
func (s *Service) WithMetrics(m *metrics.Lexrag) *Service {
	s.metrics = m
	return s
}

// Search returns up to topK results in vector-store rank order. topK above
// MaxTopK is rejected with domain.ErrInvalidQuery. Hits whose article no
// longer exists are dropped. An expired deadline yields domain.ErrTimeout and
// no partial results.
func (s *Service) Search(ctx context.Context, question string, topK int) ([]Result, error) {
	err := domain.ValidateQuestion(question, topK)
	if err == nil && topK > s.opts.MaxTopK {
		err = domain.NewValidationError("top_k", fmt.Sprintf("%d > max %d", topK, s.opts.MaxTopK), domain.ErrInvalidQuery)
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.QueriesRejected.Inc()
		}
		return nil, err
	}

	if _, ok := ctx.Deadline(); !ok && s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	start := time.Now()

	vec, err := s.embed.Embed(ctx, question)
	if err != nil {
		return nil, s.fail(ctx, domain.ErrModelUnavailable, "embed question", err)
	}

	hits, err := s.search.Search(ctx, vec, topK)
	if err != nil {
		if errors.Is(err, domain.ErrConfiguration) && ctx.Err() == nil {
			return nil, fmt.Errorf("retrieval: vector search: %w", err)
		}
		return nil, s.fail(ctx, domain.ErrStoreUnavailable, "vector search", err)
	}

	results, err := s.join(ctx, hits)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, s.fail(ctx, domain.ErrTimeout, "join", err)
	}

	if s.metrics != nil {
		s.metrics.SearchLatency.Since(start)
		s.metrics.SearchHits.Add(int64(len(results)))
	}
	s.logger.Info("retrieval done", "top_k", topK, "hits", len(hits), "results", len(results), "duration", time.Since(start))
	return results, nil
}

// fail maps err to the timeout kind when the deadline is gone and to kind otherwise.
func (s *Service) fail(ctx context.Context, kind error, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return domain.Wrap(domain.ErrTimeout, "retrieval: "+op, context.DeadlineExceeded)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("retrieval: %s: %w", op, context.Canceled)
	}
	return domain.Wrap(kind, "retrieval: "+op, err)
}

// join looks up every hit's article concurrently and keeps rank order.
func (s *Service) join(ctx context.Context, hits []semantic.Hit) ([]Result, error) {
	slots := make([]*Result, len(hits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.LookupConcurrency)

	for i, h := range hits {
		g.Go(func() error {
			a, err := s.articles.GetByID(gctx, h.Payload.ArticleID)
			if errors.Is(err, domain.ErrNotFound) {
				s.logger.Warn("hit dropped, article missing",
					"reference", h.Payload.Reference(), "article_pk", h.Payload.ArticleID, "point", h.ID)
				if s.metrics != nil {
					s.metrics.LookupsMissing.Inc()
				}
				return nil
			}
			if err != nil {
				return s.fail(gctx, domain.ErrStoreUnavailable, "article lookup "+h.Payload.Reference(), err)
			}
			r := &Result{
				Score:           h.Score,
				PassageText:     h.Payload.ChunkText,
				ArticleTitle:    a.Title,
				FullArticleText: a.Body,
				Reference:       a.Reference(),
			}
			if s.outline != nil {
				r.Breadcrumb = s.breadcrumb(gctx, a)
			}
			slots[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	return results, nil
}

// breadcrumb is best effort: failures are logged and the field left empty.
func (s *Service) breadcrumb(ctx context.Context, a domain.Article) []string {
	crumbs, err := s.outline.Breadcrumb(ctx, a.Source, a.ArticleID)
	if err != nil {
		s.logger.Debug("breadcrumb unavailable, continuing without", "reference", a.Reference(), "err", err)
		return nil
	}
	return crumbs
}
