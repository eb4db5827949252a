package indexsync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florinhegedus/rag-system-romanian-laws/engine/domain"
	"github.com/florinhegedus/rag-system-romanian-laws/engine/pointid"
	"github.com/florinhegedus/rag-system-romanian-laws/engine/semantic"
	"github.com/florinhegedus/rag-system-romanian-laws/pkg/logging"
	"github.com/florinhegedus/rag-system-romanian-laws/pkg/metrics"
)

const dims = 4

// spyIndex wraps the in-memory store to count calls and inject failures.
type spyIndex struct {
	*semantic.MemoryStore
	upserts     int
	probes      int
	upsertErr   error
	existingErr error
	existsErr   error
	info        *semantic.CollectionInfo
}

func newSpy() *spyIndex { return &spyIndex{MemoryStore: semantic.NewMemoryStore("legal_articles")} }

func (s *spyIndex) CollectionExists(ctx context.Context) (bool, error) {
	if s.existsErr != nil {
		return false, s.existsErr
	}
	return s.MemoryStore.CollectionExists(ctx)
}

func (s *spyIndex) CollectionInfo(ctx context.Context) (semantic.CollectionInfo, error) {
	if s.info != nil {
		return *s.info, nil
	}
	return s.MemoryStore.CollectionInfo(ctx)
}

func (s *spyIndex) Upsert(ctx context.Context, points []semantic.Point) error {
	s.upserts++
	if s.upsertErr != nil {
		return s.upsertErr
	}
	return s.MemoryStore.Upsert(ctx, points)
}

func (s *spyIndex) Existing(ctx context.Context, ids []string) (map[string]bool, error) {
	s.probes++
	if s.existingErr != nil {
		return nil, s.existingErr
	}
	return s.MemoryStore.Existing(ctx, ids)
}

func article() domain.Article {
	return domain.Article{ID: 42, Source: "CODUL_MUNCII", ArticleID: "A145", Title: "Articolul 145", Chapter: "Capitolul III"}
}

func vecs(n int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dims)
		v[i%dims] = 1
		v[(i+1)%dims] = float32(i + 1)
		out[i] = v
	}
	return out
}

func chunks(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "fragment " + string(rune('a'+i))
	}
	return out
}

func ready(t *testing.T) (*spyIndex, *Syncer) {
	t.Helper()
	idx := newSpy()
	s := New(idx, dims, logging.Discard())
	require.NoError(t, s.EnsureCollection(context.Background(), false))
	return idx, s
}

func TestEnsureCollection_CreatesWhenAbsent(t *testing.T) {
	idx, _ := ready(t)
	info, err := idx.CollectionInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dims, info.Dimensions)
}

func TestEnsureCollection_KeepsExistingWithoutReset(t *testing.T) {
	idx, s := ready(t)
	ctx := context.Background()
	_, err := s.SyncArticle(ctx, article(), chunks(2), vecs(2), ModeSkipExisting)
	require.NoError(t, err)

	require.NoError(t, s.EnsureCollection(ctx, false))
	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestEnsureCollection_ResetEmpties(t *testing.T) {
	idx, s := ready(t)
	ctx := context.Background()
	_, err := s.SyncArticle(ctx, article(), chunks(3), vecs(3), ModeSkipExisting)
	require.NoError(t, err)

	require.NoError(t, s.EnsureCollection(ctx, true))
	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEnsureCollection_ShapeMismatch(t *testing.T) {
	idx, s := ready(t)
	idx.info = &semantic.CollectionInfo{Dimensions: 384, Distance: semantic.DistanceCosine}
	assert.ErrorIs(t, s.EnsureCollection(context.Background(), false), domain.ErrConfiguration)

	idx.info = &semantic.CollectionInfo{Dimensions: dims, Distance: "euclid"}
	assert.ErrorIs(t, s.EnsureCollection(context.Background(), false), domain.ErrConfiguration)
}

func TestEnsureCollection_ProbeFailureIsNotAbsence(t *testing.T) {
	idx := newSpy()
	idx.existsErr = errors.New("connection refused")
	err := New(idx, dims, logging.Discard()).EnsureCollection(context.Background(), false)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	exists, _ := idx.MemoryStore.CollectionExists(context.Background())
	assert.False(t, exists, "a failed probe must not trigger creation")
}

func TestEnsureCollection_BadDims(t *testing.T) {
	err := New(newSpy(), 0, logging.Discard()).EnsureCollection(context.Background(), false)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestSyncArticle_SkipExistingIsIdempotent(t *testing.T) {
	idx, s := ready(t)
	ctx := context.Background()
	m := metrics.NewLexrag(nil)
	s.WithMetrics(m)

	first, err := s.SyncArticle(ctx, article(), chunks(5), vecs(5), ModeSkipExisting)
	require.NoError(t, err)
	assert.Equal(t, BatchReport{ArticleRef: "CODUL_MUNCII/A145", FirstChunk: 0, LastChunk: 4, Staged: 5}, first)

	second, err := s.SyncArticle(ctx, article(), chunks(5), vecs(5), ModeSkipExisting)
	require.NoError(t, err)
	assert.Zero(t, second.Staged)
	assert.Equal(t, 5, second.Skipped)
	assert.Equal(t, 1, idx.upserts, "nothing staged means no upsert call")

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
	assert.EqualValues(t, 5, m.ChunksWritten.Value())
	assert.EqualValues(t, 5, m.ChunksSkipped.Value())
	assert.EqualValues(t, 5, m.CollectionSize.Value())
}

func TestSyncArticle_SkipExistingFillsGaps(t *testing.T) {
	idx, s := ready(t)
	ctx := context.Background()
	_, err := s.SyncArticle(ctx, article(), chunks(2), vecs(2), ModeSkipExisting)
	require.NoError(t, err)

	rep, err := s.SyncArticle(ctx, article(), chunks(4), vecs(4), ModeSkipExisting)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Staged)
	assert.Equal(t, 2, rep.Skipped)
	n, _ := idx.Count(ctx)
	assert.EqualValues(t, 4, n)
}

func TestSyncArticle_OverwriteReplacesPayload(t *testing.T) {
	idx, s := ready(t)
	ctx := context.Background()
	_, err := s.SyncArticle(ctx, article(), chunks(2), vecs(2), ModeSkipExisting)
	require.NoError(t, err)

	edited := []string{"text nou", "alt text"}
	rep, err := s.SyncArticle(ctx, article(), edited, vecs(2), ModeOverwrite)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Staged)
	assert.Equal(t, 1, idx.probes, "overwrite does not probe")

	hits, err := idx.Search(ctx, vecs(2)[0], 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, pointid.Derive("CODUL_MUNCII/A145", 0), hits[0].ID)
	assert.Equal(t, "text nou", hits[0].Payload.ChunkText)
	n, _ := idx.Count(ctx)
	assert.EqualValues(t, 2, n)
}

func TestSyncArticle_EmptyChunksNoCalls(t *testing.T) {
	idx, s := ready(t)
	rep, err := s.SyncArticle(context.Background(), article(), nil, nil, ModeSkipExisting)
	require.NoError(t, err)
	assert.Zero(t, rep.Staged)
	assert.Zero(t, idx.upserts)
	assert.Zero(t, idx.probes)
}

func TestSyncArticle_ValidatesVectors(t *testing.T) {
	_, s := ready(t)
	ctx := context.Background()
	_, err := s.SyncArticle(ctx, article(), chunks(2), vecs(1), ModeOverwrite)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	bad := vecs(2)
	bad[1] = []float32{1, 2}
	_, err = s.SyncArticle(ctx, article(), chunks(2), bad, ModeOverwrite)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestSyncArticle_FailuresAreRetryableBatchErrors(t *testing.T) {
	idx, s := ready(t)
	ctx := context.Background()

	idx.existingErr = errors.New("deadline")
	_, err := s.SyncArticle(ctx, article(), chunks(3), vecs(3), ModeSkipExisting)
	var be *BatchError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "CODUL_MUNCII/A145", be.ArticleRef)
	assert.Equal(t, 0, be.FromChunk)
	assert.Equal(t, 2, be.ToChunk)
	assert.True(t, domain.IsRetryable(err))

	idx.existingErr = nil
	idx.upsertErr = errors.New("unavailable")
	_, err = s.SyncArticle(ctx, article(), chunks(3), vecs(3), ModeOverwrite)
	require.ErrorAs(t, err, &be)
	assert.True(t, domain.IsRetryable(err))

	idx.upsertErr = nil
	rep, err := s.SyncArticle(ctx, article(), chunks(3), vecs(3), ModeSkipExisting)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Staged, "a failed batch left nothing behind")
}

func TestReconcile_PrunesTail(t *testing.T) {
	idx, s := ready(t)
	ctx := context.Background()
	_, err := s.SyncArticle(ctx, article(), chunks(4), vecs(4), ModeSkipExisting)
	require.NoError(t, err)

	other := article()
	other.ArticleID = "A146"
	_, err = s.SyncArticle(ctx, other, chunks(2), vecs(2), ModeSkipExisting)
	require.NoError(t, err)

	require.NoError(t, s.Reconcile(ctx, article(), 2))
	found, err := idx.Existing(ctx, pointid.DeriveAll("CODUL_MUNCII/A145", 4))
	require.NoError(t, err)
	assert.Len(t, found, 2)
	n, _ := idx.Count(ctx)
	assert.EqualValues(t, 4, n)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeSkipExisting, "skip-existing": ModeSkipExisting, "Overwrite": ModeOverwrite} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("merge")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Equal(t, "overwrite", ModeOverwrite.String())
}
