package embedding

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	dims       int
	err        error
	batchSizes []int
	queries    int
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batchSizes = append(f.batchSizes, len(texts))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = make([]float32, f.dims)
		out[i][0] = float32(len(t))
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.queries++
	if f.err != nil {
		return nil, f.err
	}
	v := make([]float32, f.dims)
	v[0] = float32(len(text))
	return v, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Dimensions = 4
	cfg.BatchSize = 2
	return cfg
}

func TestClient_EmbedBatchSplitsAndKeepsOrder(t *testing.T) {
	emb := &fakeEmbedder{dims: 4}
	c := NewClient(testConfig(), NewWordTokenizer(), emb, nil)
	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)
	require.Len(t, vecs, 5)
	for i, v := range vecs {
		assert.EqualValues(t, i+1, v[0])
	}
	assert.Equal(t, []int{2, 2, 1}, emb.batchSizes)
}

func TestClient_DimensionMismatch(t *testing.T) {
	c := NewClient(testConfig(), NewWordTokenizer(), &fakeEmbedder{dims: 3}, nil)
	_, err := c.Embed(context.Background(), "x")
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
	_, err = c.EmbedBatch(context.Background(), []string{"x"})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestClient_FailureIsUnavailable(t *testing.T) {
	boom := errors.New("connection refused")
	c := NewClient(testConfig(), NewWordTokenizer(), &fakeEmbedder{dims: 4, err: boom}, nil)
	_, err := c.Embed(context.Background(), "x")
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.True(t, errors.Is(err, boom))
}

func TestClient_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewClient(testConfig(), NewWordTokenizer(), &fakeEmbedder{dims: 4, err: context.Canceled}, nil)
	_, err := c.Embed(ctx, "x")
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, ErrUnavailable))
}

func TestClient_Limits(t *testing.T) {
	c := NewClient(testConfig(), NewWordTokenizer(), &fakeEmbedder{dims: 4}, nil)
	assert.Equal(t, 128, c.MaxContextTokens())
	assert.Equal(t, 2, c.ReservedSpecialTokens())
	assert.Equal(t, 4, c.Dimensions())
	assert.Equal(t, "nomic-embed-text", c.Name())
	assert.Equal(t, "a b a", c.Decode(c.Encode("a  b\na")))
}

func TestCached_HitsSkipModel(t *testing.T) {
	emb := &fakeEmbedder{dims: 4}
	c, err := NewCached(NewClient(testConfig(), NewWordTokenizer(), emb, nil), 8)
	require.NoError(t, err)
	ctx := context.Background()

	v1, err := c.Embed(ctx, "concediu de odihnă")
	require.NoError(t, err)
	v1[0] = -1 // callers must not be able to poison the cache
	v2, err := c.Embed(ctx, "concediu de odihnă")
	require.NoError(t, err)

	assert.Equal(t, 1, emb.queries)
	assert.NotEqual(t, v1[0], v2[0])
	hits, misses := c.Stats()
	assert.EqualValues(t, 1, hits)
	assert.EqualValues(t, 1, misses)
}

func TestCached_ErrorsNotCached(t *testing.T) {
	emb := &fakeEmbedder{dims: 4, err: errors.New("down")}
	c, err := NewCached(NewClient(testConfig(), NewWordTokenizer(), emb, nil), 8)
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "q")
	require.Error(t, err)
	emb.err = nil
	_, err = c.Embed(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 2, emb.queries)
}

func TestHashEmbedder_SharedWordsScoreHigher(t *testing.T) {
	h := HashEmbedder{Dims: 256}
	q, _ := h.EmbedQuery(context.Background(), "concediu de odihnă")
	docs, _ := h.EmbedDocuments(context.Background(), []string{
		"Salariatul are dreptul la concediu de odihnă plătit.",
		"Infracțiunea de furt se pedepsește cu închisoare.",
	})
	dot := func(a, b []float32) (s float32) {
		for i := range a {
			s += a[i] * b[i]
		}
		return s
	}
	assert.Greater(t, dot(q, docs[0]), dot(q, docs[1]))
}

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"art", "1", "odihnă"}, words("Art. 1: ODIHNĂ!"))
	assert.Equal(t, "", strings.Join(words("  ..  "), ""))
}

func TestNewHashing(t *testing.T) {
	c := NewHashing(testConfig())
	assert.Equal(t, "hashing", c.Name())
	v, err := c.Embed(context.Background(), "ceva")
	require.NoError(t, err)
	assert.Len(t, v, 4)
}

// splitTokenizer decodes to raw bytes so a token range may end mid-rune.
type splitTokenizer struct{ WordTokenizer }

func (*splitTokenizer) DecodeBytes(tokens []int) []byte { return []byte{0xC5} }

func TestClient_DecodeBytes(t *testing.T) {
	words := NewClient(testConfig(), NewWordTokenizer(), &fakeEmbedder{}, nil)
	ids := words.Encode("concediu de odihnă")
	assert.Equal(t, []byte("concediu de odihnă"), words.DecodeBytes(ids), "word tokens fall back to Decode")

	raw := NewClient(testConfig(), &splitTokenizer{}, &fakeEmbedder{}, nil)
	assert.Equal(t, []byte{0xC5}, raw.DecodeBytes([]int{0}), "byte-level tokenizers are passed through")
}
