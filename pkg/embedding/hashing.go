package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

// HashEmbedder is a deterministic bag-of-words embedder based on feature
// hashing. It needs no model server and backs offline runs and tests.
type HashEmbedder struct {
	Dims int
}

func (h HashEmbedder) vector(text string) []float32 {
	v := make([]float32, h.Dims)
	for _, w := range words(text) {
		f := fnv.New32a()
		f.Write([]byte(w))
		v[f.Sum32()%uint32(h.Dims)]++
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum > 0 {
		n := float32(math.Sqrt(sum))
		for i := range v {
			v[i] /= n
		}
	}
	return v
}

func (h HashEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return h.vector(text), nil
}

func (h HashEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t)
	}
	return out, nil
}

func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// WordTokenizer maps whitespace-separated words to ids from a growing vocabulary.
type WordTokenizer struct {
	mu    sync.Mutex
	ids   map[string]int
	vocab []string
}

func NewWordTokenizer() *WordTokenizer {
	return &WordTokenizer{ids: make(map[string]int)}
}

func (w *WordTokenizer) Encode(text string) []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	fields := strings.Fields(text)
	out := make([]int, len(fields))
	for i, f := range fields {
		id, ok := w.ids[f]
		if !ok {
			id = len(w.vocab)
			w.ids[f] = id
			w.vocab = append(w.vocab, f)
		}
		out[i] = id
	}
	return out
}

func (w *WordTokenizer) Decode(tokens []int) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = w.vocab[t]
	}
	return strings.Join(parts, " ")
}

// NewHashing returns an offline Client using HashEmbedder and WordTokenizer.
func NewHashing(cfg Config) *Client {
	cfg.Model = "hashing"
	return NewClient(cfg, NewWordTokenizer(), HashEmbedder{Dims: cfg.Dimensions}, nil)
}
