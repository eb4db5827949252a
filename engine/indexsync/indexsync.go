// Package indexsync keeps the vector collection in step with the article
// store: collection lifecycle, idempotent chunk upserts and stale-point pruning.
package indexsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/florinhegedus/rag-system-romanian-laws/engine/domain"
	"github.com/florinhegedus/rag-system-romanian-laws/engine/pointid"
	"github.com/florinhegedus/rag-system-romanian-laws/engine/semantic"
	"github.com/florinhegedus/rag-system-romanian-laws/pkg/metrics"
)

// Mode selects what happens to points that already exist.
type Mode int

const (
	// ModeSkipExisting leaves existing points untouched and writes only new ones.
	ModeSkipExisting Mode = iota
	// ModeOverwrite rewrites every point of the article.
	ModeOverwrite
)

func (m Mode) String() string {
	switch m {
	case ModeSkipExisting:
		return "skip-existing"
	case ModeOverwrite:
		return "overwrite"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "skip-existing" (or "") and "overwrite".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip", "skip-existing":
		return ModeSkipExisting, nil
	case "overwrite":
		return ModeOverwrite, nil
	}
	return 0, fmt.Errorf("indexsync: unknown mode %q: %w", s, domain.ErrConfiguration)
}

// BatchReport summarises one article's sync.
type BatchReport struct {
	ArticleRef string
	FirstChunk int
	LastChunk  int
	Staged     int
	Skipped    int
}

// BatchError identifies the article and chunk range of a failed batch. The
// whole batch is safe to retry.
type BatchError struct {
	ArticleRef string
	FromChunk  int
	ToChunk    int
	Err        error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("indexsync: %s chunks %d..%d: %v", e.ArticleRef, e.FromChunk, e.ToChunk, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Syncer writes article chunks into one collection.
type Syncer struct {
	index   semantic.Index
	dims    int
	log     *slog.Logger
	metrics *metrics.Lexrag
}

// New returns a Syncer for a collection of dims-dimensional cosine vectors.
func New(index semantic.Index, dims int, log *slog.Logger) *Syncer {
	if log == nil {
		log = slog.Default()
	}
	return &Syncer{index: index, dims: dims, log: log}
}

// WithMetrics records written and skipped points on m.
func (s *Syncer) WithMetrics(m *metrics.Lexrag) *Syncer {
	s.metrics = m
	return s
}

// EnsureCollection creates the collection when absent, recreates it when
// reset is set, and otherwise checks that its shape matches.
func (s *Syncer) EnsureCollection(ctx context.Context, reset bool) error {
	if s.dims <= 0 {
		return fmt.Errorf("indexsync: dimensions %d: %w", s.dims, domain.ErrConfiguration)
	}
	name := s.index.Name()
	exists, err := s.index.CollectionExists(ctx)
	if err != nil {
		return asUnavailable("probe collection "+name, err)
	}

	switch {
	case !exists:
		s.log.Info("creating collection", "collection", name, "dims", s.dims)
	case reset:
		s.log.Warn("resetting collection", "collection", name)
		if err := s.index.DeleteCollection(ctx); err != nil {
			return asUnavailable("delete collection "+name, err)
		}
	default:
		info, err := s.index.CollectionInfo(ctx)
		if err != nil {
			return asUnavailable("collection info "+name, err)
		}
		if info.Dimensions != s.dims || !strings.EqualFold(info.Distance, semantic.DistanceCosine) {
			return fmt.Errorf("indexsync: collection %s is %d/%s, model needs %d/%s: %w",
				name, info.Dimensions, info.Distance, s.dims, semantic.DistanceCosine, domain.ErrConfiguration)
		}
		s.log.Info("using existing collection", "collection", name, "dims", info.Dimensions)
		return nil
	}

	if err := s.index.CreateCollection(ctx, s.dims); err != nil {
		return asUnavailable("create collection "+name, err)
	}
	return nil
}

// asUnavailable keeps configuration errors as they are and tags everything
// else as a store outage.
func asUnavailable(op string, err error) error {
	if errors.Is(err, domain.ErrConfiguration) || errors.Is(err, domain.ErrStoreUnavailable) {
		return fmt.Errorf("indexsync: %s: %w", op, err)
	}
	return domain.Wrap(domain.ErrStoreUnavailable, "indexsync: "+op, err)
}

// Points builds the index points for an article's chunks.
func Points(a domain.Article, chunks []string, vectors [][]float32) []semantic.Point {
	ref := a.Reference()
	out := make([]semantic.Point, len(chunks))
	for i, text := range chunks {
		out[i] = semantic.Point{
			ID:     pointid.Derive(ref, i),
			Vector: vectors[i],
			Payload: semantic.Payload{
				ArticleID:  a.ID,
				Source:     a.Source,
				ArticleKey: a.ArticleID,
				ChunkIndex: i,
				ChunkText:  text,
				Title:      a.Title,
				Section:    a.Section,
				Chapter:    a.Chapter,
			},
		}
	}
	return out
}

func (s *Syncer) validate(a domain.Article, chunks []string, vectors [][]float32) error {
	if len(vectors) != len(chunks) {
		return fmt.Errorf("indexsync: %s has %d chunks but %d vectors: %w",
			a.Reference(), len(chunks), len(vectors), domain.ErrConfiguration)
	}
	for i, v := range vectors {
		if len(v) != s.dims {
			return fmt.Errorf("indexsync: %s chunk %d has %d dimensions, collection has %d: %w",
				a.Reference(), i, len(v), s.dims, domain.ErrConfiguration)
		}
	}
	return nil
}

// SyncArticle upserts the article's chunk points in one batch. In
// ModeSkipExisting a single existence probe decides which points to stage.
func (s *Syncer) SyncArticle(ctx context.Context, a domain.Article, chunks []string, vectors [][]float32, mode Mode) (BatchReport, error) {
	ref := a.Reference()
	report := BatchReport{ArticleRef: ref, FirstChunk: 0, LastChunk: len(chunks) - 1}
	if len(chunks) == 0 {
		return report, nil
	}
	if err := s.validate(a, chunks, vectors); err != nil {
		return report, err
	}

	points := Points(a, chunks, vectors)
	batchErr := func(err error) error {
		return &BatchError{ArticleRef: ref, FromChunk: 0, ToChunk: len(chunks) - 1, Err: asUnavailable("sync", err)}
	}

	staged := points
	if mode == ModeSkipExisting {
		ids := make([]string, len(points))
		for i, p := range points {
			ids[i] = p.ID
		}
		existing, err := s.index.Existing(ctx, ids)
		if err != nil {
			return report, batchErr(err)
		}
		staged = staged[:0:0]
		for _, p := range points {
			if existing[p.ID] {
				s.log.Debug("point exists, skipping", "article", ref, "chunk", p.Payload.ChunkIndex, "id", p.ID)
				report.Skipped++
				continue
			}
			staged = append(staged, p)
		}
	}

	if len(staged) > 0 {
		if err := s.index.Upsert(ctx, staged); err != nil {
			if s.metrics != nil {
				s.metrics.BatchFailures.Inc()
			}
			return report, batchErr(err)
		}
	}
	report.Staged = len(staged)

	if s.metrics != nil {
		s.metrics.ChunksWritten.Add(int64(report.Staged))
		s.metrics.ChunksSkipped.Add(int64(report.Skipped))
	}
	s.log.Info("article synced", "article", ref, "mode", mode.String(),
		"chunks", len(chunks), "staged", report.Staged, "skipped", report.Skipped)
	return report, nil
}

// Reconcile deletes the article's points whose chunk index is at or beyond
// chunkCount, left behind when a re-ingested article got shorter.
func (s *Syncer) Reconcile(ctx context.Context, a domain.Article, chunkCount int) error {
	if err := s.index.DeleteStale(ctx, a.Source, a.ArticleID, chunkCount); err != nil {
		return &BatchError{ArticleRef: a.Reference(), FromChunk: chunkCount, ToChunk: -1, Err: asUnavailable("reconcile", err)}
	}
	s.log.Debug("stale points pruned", "article", a.Reference(), "from_chunk", chunkCount)
	return nil
}

// Count returns the number of points in the collection.
func (s *Syncer) Count(ctx context.Context) (uint64, error) {
	n, err := s.index.Count(ctx)
	if err != nil {
		return 0, asUnavailable("count", err)
	}
	if s.metrics != nil {
		s.metrics.CollectionSize.Set(float64(n))
	}
	return n, nil
}
