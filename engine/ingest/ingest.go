// Package ingest runs a source document through parsing, relational upsert,
// chunking, embedding and vector indexing, and consumes queued ingestion
// requests from NATS.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/florinhegedus/rag-system-romanian-laws/engine/articles"
	"github.com/florinhegedus/rag-system-romanian-laws/engine/chunker"
	"github.com/florinhegedus/rag-system-romanian-laws/engine/domain"
	"github.com/florinhegedus/rag-system-romanian-laws/engine/indexsync"
	"github.com/florinhegedus/rag-system-romanian-laws/engine/legal"
	"github.com/florinhegedus/rag-system-romanian-laws/engine/semantic"
	"github.com/florinhegedus/rag-system-romanian-laws/pkg/blob"
	"github.com/florinhegedus/rag-system-romanian-laws/pkg/embedding"
	"github.com/florinhegedus/rag-system-romanian-laws/pkg/fn"
	"github.com/florinhegedus/rag-system-romanian-laws/pkg/metrics"
)

// DefaultBucket holds the raw HTML of every source document.
const DefaultBucket = "legal-docs-minio-bucket"

// OutlineWriter mirrors article structure into the outline graph.
type OutlineWriter interface {
	SaveArticles(ctx context.Context, articles []domain.Article) error
}

// Deps holds the external dependencies for the ingestion pipeline.
type Deps struct {
	Catalogue domain.Catalogue
	Blobs     blob.Store
	Articles  articles.Store
	Outline   OutlineWriter // optional
	Model     embedding.Model
	Index     semantic.Index
	Metrics   *metrics.Lexrag // optional
	Logger    *slog.Logger
}

// Options tunes a Pipeline.
type Options struct {
	Bucket       string
	ArticleClass string
	Workers      int
	LockDir      string
	Retry        fn.RetryOpts
}

func DefaultOptions() Options {
	retry := fn.DefaultRetry
	retry.Retryable = domain.IsRetryable
	return Options{Bucket: DefaultBucket, ArticleClass: legal.DefaultArticleClass, Workers: 4, Retry: retry}
}

// Pipeline ingests source documents.
type Pipeline struct {
	deps Deps
	opts Options
	sync *indexsync.Syncer
	log  *slog.Logger
}

// New checks deps and fills option defaults.
func New(deps Deps, opts Options) (*Pipeline, error) {
	if deps.Blobs == nil || deps.Articles == nil || deps.Model == nil || deps.Index == nil {
		return nil, fmt.Errorf("ingest: blobs, articles, model and index are required: %w", domain.ErrConfiguration)
	}
	if err := domain.ValidateCatalogue(deps.Catalogue); err != nil {
		return nil, err
	}
	def := DefaultOptions()
	if opts.Bucket == "" {
		opts.Bucket = def.Bucket
	}
	if opts.ArticleClass == "" {
		opts.ArticleClass = def.ArticleClass
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = def.Retry
	}
	if opts.Retry.Retryable == nil {
		opts.Retry.Retryable = domain.IsRetryable
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	sync := indexsync.New(deps.Index, deps.Model.Dimensions(), log)
	if deps.Metrics != nil {
		sync.WithMetrics(deps.Metrics)
	}
	return &Pipeline{deps: deps, opts: opts, sync: sync, log: log}, nil
}

// --- Pipeline Stages ---

// NewChunk splits an article body into windows.
func NewChunk(c *chunker.Chunker) fn.Stage[domain.Article, ChunkedArticle] {
	return func(_ context.Context, a domain.Article) fn.Result[ChunkedArticle] {
		return fn.Ok(ChunkedArticle{Article: a, Chunks: c.Split(a.Body)})
	}
}

// NewEmbed embeds all chunks of an article in model-sized batches.
func NewEmbed(m embedding.Model, mt *metrics.Lexrag) fn.Stage[ChunkedArticle, EmbeddedArticle] {
	return func(ctx context.Context, doc ChunkedArticle) fn.Result[EmbeddedArticle] {
		if len(doc.Chunks) == 0 {
			return fn.Ok(EmbeddedArticle{ChunkedArticle: doc})
		}
		start := time.Now()
		vecs, err := m.EmbedBatch(ctx, doc.Chunks)
		if mt != nil {
			mt.EmbedLatency.Since(start)
		}
		if err != nil {
			return fn.Err[EmbeddedArticle](embedError(ctx, doc.Article.Reference(), err))
		}
		return fn.Ok(EmbeddedArticle{ChunkedArticle: doc, Vectors: vecs})
	}
}

func embedError(ctx context.Context, ref string, err error) error {
	switch {
	case ctx.Err() != nil:
		return fmt.Errorf("ingest: embed %s: %w", ref, ctx.Err())
	case errors.Is(err, embedding.ErrDimensionMismatch):
		return domain.Wrap(domain.ErrConfiguration, "ingest: embed "+ref, err)
	default:
		return domain.Wrap(domain.ErrModelUnavailable, "ingest: embed "+ref, err)
	}
}

// NewSync writes an embedded article into the index and optionally prunes
// points left over from a longer previous version.
func NewSync(s *indexsync.Syncer, mode indexsync.Mode, pruneStale bool) fn.Stage[EmbeddedArticle, indexsync.BatchReport] {
	return func(ctx context.Context, doc EmbeddedArticle) fn.Result[indexsync.BatchReport] {
		rep, err := s.SyncArticle(ctx, doc.Article, doc.Chunks, doc.Vectors, mode)
		if err != nil {
			return fn.Err[indexsync.BatchReport](err)
		}
		if pruneStale {
			if err := s.Reconcile(ctx, doc.Article, len(doc.Chunks)); err != nil {
				return fn.Err[indexsync.BatchReport](err)
			}
		}
		return fn.Ok(rep)
	}
}

// articleStage composes chunk, embed and sync with a span per stage.
func (p *Pipeline) articleStage(c *chunker.Chunker, mode indexsync.Mode, prune bool) fn.Stage[domain.Article, indexsync.BatchReport] {
	chunked := fn.TracedStage("ingest.chunk", NewChunk(c))
	embedded := fn.Then(chunked, fn.TracedStage("ingest.embed", NewEmbed(p.deps.Model, p.deps.Metrics)))
	return fn.Then(embedded, fn.TracedStage("ingest.sync", NewSync(p.sync, mode, prune)))
}

// Ingest processes one source end to end. Per-article failures are counted
// and do not stop other articles; an error is returned for pre-flight and
// document-level failures, or when every article failed.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (Summary, error) {
	start := time.Now()
	sum := Summary{Source: req.Source}

	src, ok := p.deps.Catalogue.Lookup(req.Source)
	if !ok {
		return sum, fmt.Errorf("ingest: unknown source %q: %w", req.Source, domain.ErrConfiguration)
	}
	mode, err := indexsync.ParseMode(req.Mode)
	if err != nil {
		return sum, err
	}
	ch, err := chunker.New(p.deps.Model, chunker.Params{
		MaxWindowTokens:       p.deps.Model.MaxContextTokens(),
		ReservedSpecialTokens: p.deps.Model.ReservedSpecialTokens(),
		OverlapRatio:          req.OverlapRatio,
	})
	if err != nil {
		return sum, err
	}

	unlock, err := lockSource(ctx, p.opts.LockDir, src.Key)
	if err != nil {
		return sum, err
	}
	defer unlock()

	if err := p.sync.EnsureCollection(ctx, req.Reset); err != nil {
		return sum, err
	}

	parsed, err := p.parse(ctx, src)
	if err != nil {
		return sum, err
	}
	sum.ParseFailures = len(parsed.Failures)

	st := p.store(ctx, parsed.Articles)
	stored := st.stored
	sum.ParseFailures += st.invalid
	sum.StoreFailures = st.failed
	sum.Articles = len(stored)
	if st.failed > 0 && len(stored) == 0 {
		return sum, fmt.Errorf("ingest: %s: no article could be stored: %w", src.Key, st.firstErr)
	}

	if p.deps.Outline != nil {
		if err := p.deps.Outline.SaveArticles(ctx, stored); err != nil {
			p.log.Warn("ingest: outline update failed, continuing", "source", src.Key, "err", err)
		}
	}

	stage := p.articleStage(ch, mode, req.PruneStale)
	results := fn.ParMapResult(ctx, stored, p.opts.Workers, func(ctx context.Context, a domain.Article) fn.Result[indexsync.BatchReport] {
		return fn.Retry(ctx, p.opts.Retry, func(ctx context.Context) fn.Result[indexsync.BatchReport] {
			return stage(ctx, a)
		})
	})

	firstErr := st.firstErr
	for i, r := range results {
		rep, err := r.Unwrap()
		if err != nil {
			sum.FailedArticles++
			if firstErr == nil {
				firstErr = err
			}
			p.log.Error("ingest: article failed", "article", stored[i].Reference(), "err", err)
			continue
		}
		sum.Chunks += rep.Staged + rep.Skipped
		sum.PointsWritten += rep.Staged
		sum.PointsSkipped += rep.Skipped
	}
	if _, err := p.sync.Count(ctx); err != nil {
		p.log.Warn("ingest: collection count failed", "err", err)
	}
	sum.Duration = time.Since(start)

	p.log.Info("ingest done",
		"source", sum.Source,
		"articles", sum.Articles,
		"parse_failures", sum.ParseFailures,
		"chunks", sum.Chunks,
		"staged", sum.PointsWritten,
		"skipped", sum.PointsSkipped,
		"failed", sum.FailedArticles,
		"store_failures", sum.StoreFailures,
		"duration", sum.Duration,
	)
	if attempted := sum.Articles + sum.StoreFailures; attempted > 0 && sum.FailedArticles+sum.StoreFailures == attempted {
		return sum, fmt.Errorf("ingest: %s: every article failed: %w", src.Key, firstErr)
	}
	return sum, nil
}

func (p *Pipeline) parse(ctx context.Context, src domain.SourceDocument) (legal.Result, error) {
	raw, err := p.deps.Blobs.Get(ctx, p.opts.Bucket, src.BlobKey())
	if errors.Is(err, blob.ErrNotFound) {
		return legal.Result{}, fmt.Errorf("ingest: document %s/%s: %w", p.opts.Bucket, src.BlobKey(), domain.ErrNotFound)
	}
	if err != nil {
		return legal.Result{}, domain.Wrap(domain.ErrStoreUnavailable, "ingest: fetch "+src.BlobKey(), err)
	}
	res, err := legal.Parse(bytes.NewReader(raw), legal.Options{Source: src.Key, ArticleClass: p.opts.ArticleClass})
	if err != nil {
		return legal.Result{}, err
	}
	for _, f := range res.Failures {
		p.log.Warn("ingest: article skipped", "source", src.Key, "err", f)
	}
	if p.deps.Metrics != nil {
		p.deps.Metrics.ArticlesParsed.Add(int64(len(res.Articles)))
		p.deps.Metrics.ParseFailures.Add(int64(len(res.Failures)))
		p.deps.Metrics.SourceCounter("lexrag_source_articles_total", src.Key).Add(int64(len(res.Articles)))
	}
	return res, nil
}

// storeResult splits parsed articles by what happened to them in the
// relational store.
type storeResult struct {
	stored   []domain.Article
	invalid  int
	failed   int
	firstErr error
}

// store upserts every valid article and returns them with primary keys set.
// Invalid articles are counted as parse failures; upsert failures are counted
// separately and their first error kept.
func (p *Pipeline) store(ctx context.Context, parsed []domain.Article) storeResult {
	res := storeResult{stored: make([]domain.Article, 0, len(parsed))}
	for _, a := range parsed {
		if err := domain.ValidateArticle(a); err != nil {
			res.invalid++
			p.log.Warn("ingest: invalid article", "article", a.Reference(), "err", err)
			continue
		}
		r := fn.Retry(ctx, p.opts.Retry, func(ctx context.Context) fn.Result[domain.Article] {
			return fn.FromPair(p.deps.Articles.UpsertByKey(ctx, a))
		})
		saved, err := r.Unwrap()
		if err != nil {
			res.failed++
			if res.firstErr == nil {
				res.firstErr = domain.Wrap(domain.ErrStoreUnavailable, "ingest: upsert "+a.Reference(), err)
			}
			p.log.Error("ingest: article upsert failed", "article", a.Reference(), "err", err)
			continue
		}
		res.stored = append(res.stored, saved)
	}
	return res
}
