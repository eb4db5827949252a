package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/florinhegedus/rag-system-romanian-laws/engine/articles"
	"github.com/florinhegedus/rag-system-romanian-laws/engine/domain"
	"github.com/florinhegedus/rag-system-romanian-laws/engine/ingest"
	"github.com/florinhegedus/rag-system-romanian-laws/engine/outline"
	"github.com/florinhegedus/rag-system-romanian-laws/engine/retrieval"
	"github.com/florinhegedus/rag-system-romanian-laws/engine/semantic"
	"github.com/florinhegedus/rag-system-romanian-laws/pkg/blob"
	"github.com/florinhegedus/rag-system-romanian-laws/pkg/embedding"
	"github.com/florinhegedus/rag-system-romanian-laws/pkg/fn"
	"github.com/florinhegedus/rag-system-romanian-laws/pkg/metrics"
)

// app opens backends on demand and closes them in reverse order.
type app struct {
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Lexrag

	index    semantic.Index
	store    articles.Store
	blobs    blob.Store
	model    embedding.Model
	outline  *outline.Store
	outlined bool
	closers  []func()
}

func newApp(cfg Config, log *slog.Logger) *app {
	return &app{cfg: cfg, log: log, metrics: metrics.NewLexrag(nil)}
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) Index() (semantic.Index, error) {
	if a.index != nil {
		return a.index, nil
	}
	switch a.cfg.Qdrant.Backend {
	case "memory":
		a.index = semantic.NewMemoryStore(a.cfg.Qdrant.Collection)
	default:
		vs, err := semantic.New(a.cfg.Qdrant.Addr, a.cfg.Qdrant.Collection)
		if err != nil {
			return nil, domain.Wrap(domain.ErrStoreUnavailable, "qdrant connect", err)
		}
		a.index = vs
	}
	idx := a.index
	a.closers = append(a.closers, func() { _ = idx.Close() })
	return a.index, nil
}

func (a *app) Articles(ctx context.Context) (articles.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := articles.Open(ctx, a.cfg.Database)
	if err != nil {
		return nil, err
	}
	a.store = s
	a.closers = append(a.closers, func() { _ = s.Close() })
	return s, nil
}

func (a *app) Blobs() (blob.Store, error) {
	if a.blobs != nil {
		return a.blobs, nil
	}
	switch a.cfg.Blob.Backend {
	case "minio":
		m, err := blob.NewMinIO(a.cfg.Blob.MinIOConfig)
		if err != nil {
			return nil, err
		}
		a.blobs = m
	default:
		a.blobs = blob.NewFS(a.cfg.Blob.Dir)
	}
	return a.blobs, nil
}

func (a *app) Model() (embedding.Model, error) {
	if a.model != nil {
		return a.model, nil
	}
	var (
		m   embedding.Model
		err error
	)
	switch a.cfg.Embedding.Backend {
	case "hashing":
		m = embedding.NewHashing(a.cfg.Embedding.Config)
	default:
		m, err = embedding.NewOllama(a.cfg.Embedding.Config, a.log)
		if err != nil {
			return nil, domain.Wrap(domain.ErrModelUnavailable, "embedding", err)
		}
	}
	if a.cfg.Embedding.CacheSize > 0 {
		c, err := embedding.NewCached(m, a.cfg.Embedding.CacheSize)
		if err != nil {
			return nil, err
		}
		m = c
	}
	a.model = m
	return m, nil
}

// Outline returns nil when the graph is disabled.
func (a *app) Outline(ctx context.Context) (*outline.Store, error) {
	if a.outlined || !a.cfg.Neo4j.Enabled {
		return a.outline, nil
	}
	driver, err := neo4j.NewDriverWithContext(a.cfg.Neo4j.URL, neo4j.BasicAuth(a.cfg.Neo4j.User, a.cfg.Neo4j.Pass, ""))
	if err != nil {
		return nil, fmt.Errorf("%w: neo4j driver: %w", domain.ErrConfiguration, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, domain.Wrap(domain.ErrStoreUnavailable, "neo4j connect", err)
	}
	a.closers = append(a.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = driver.Close(ctx)
	})
	a.outline = outline.New(driver, a.log)
	a.outlined = true
	return a.outline, nil
}

func (a *app) Retrieval(ctx context.Context) (*retrieval.Service, error) {
	model, err := a.Model()
	if err != nil {
		return nil, err
	}
	index, err := a.Index()
	if err != nil {
		return nil, err
	}
	store, err := a.Articles(ctx)
	if err != nil {
		return nil, err
	}
	ol, err := a.Outline(ctx)
	if err != nil {
		return nil, err
	}
	var crumbs retrieval.Outline
	if ol != nil {
		crumbs = ol
	}
	opts := retrieval.Options{
		MaxTopK:           a.cfg.Server.MaxTopK,
		LookupConcurrency: a.cfg.Server.LookupConcurrency,
		Timeout:           a.cfg.Server.QueryTimeout,
	}
	return retrieval.New(model, index, store, crumbs, opts, a.log).WithMetrics(a.metrics), nil
}

func (a *app) Pipeline(ctx context.Context) (*ingest.Pipeline, error) {
	model, err := a.Model()
	if err != nil {
		return nil, err
	}
	index, err := a.Index()
	if err != nil {
		return nil, err
	}
	store, err := a.Articles(ctx)
	if err != nil {
		return nil, err
	}
	blobs, err := a.Blobs()
	if err != nil {
		return nil, err
	}
	ol, err := a.Outline(ctx)
	if err != nil {
		return nil, err
	}
	deps := ingest.Deps{
		Catalogue: a.cfg.Sources,
		Blobs:     blobs,
		Articles:  store,
		Model:     model,
		Index:     index,
		Metrics:   a.metrics,
		Logger:    a.log,
	}
	if ol != nil {
		deps.Outline = ol
	}
	retry := fn.DefaultRetry
	retry.Retryable = domain.IsRetryable
	return ingest.New(deps, ingest.Options{
		Bucket:       a.cfg.Blob.Bucket,
		ArticleClass: a.cfg.Ingest.ArticleClass,
		Workers:      a.cfg.Ingest.Workers,
		LockDir:      a.cfg.Ingest.LockDir,
		Retry:        retry,
	})
}

// request builds an ingest request from config defaults.
func (a *app) request(source string) ingest.Request {
	return ingest.Request{
		Source:       source,
		OverlapRatio: a.cfg.Chunking.OverlapRatio,
		Reset:        a.cfg.Ingest.Reset,
		Mode:         a.cfg.Ingest.Mode,
		PruneStale:   a.cfg.Ingest.PruneStale,
	}
}
