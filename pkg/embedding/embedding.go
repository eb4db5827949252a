// Package embedding turns text into vectors and exposes the tokenizer and
// context limits the chunker sizes its windows with.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/florinhegedus/rag-system-romanian-laws/pkg/fn"
	"github.com/florinhegedus/rag-system-romanian-laws/pkg/resilience"
)

var (
	ErrUnavailable       = errors.New("embedding model unavailable")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Model is everything the pipelines need from an embedding model.
type Model interface {
	Name() string
	Dimensions() int
	MaxContextTokens() int
	ReservedSpecialTokens() int
	Encode(text string) []int
	Decode(tokens []int) string
	DecodeBytes(tokens []int) []byte
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedder produces raw vectors. *embeddings.EmbedderImpl from langchaingo satisfies it.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Tokenizer maps text to model tokens and back.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// Config describes the model and how hard it may be called.
type Config struct {
	ServerURL             string  `yaml:"server_url"`
	Model                 string  `yaml:"model"`
	Encoding              string  `yaml:"encoding"`
	Dimensions            int     `yaml:"dimensions"`
	MaxContextTokens      int     `yaml:"max_context_tokens"`
	ReservedSpecialTokens int     `yaml:"reserved_special_tokens"`
	BatchSize             int     `yaml:"batch_size"`
	RatePerSecond         float64 `yaml:"rate_per_second"`
	Burst                 int     `yaml:"burst"`
	CacheSize             int     `yaml:"cache_size"`
}

// DefaultConfig mirrors a 128-token sentence-transformer context with two
// special tokens reserved per window.
func DefaultConfig() Config {
	return Config{
		ServerURL:             "http://localhost:11434",
		Model:                 "nomic-embed-text",
		Encoding:              "cl100k_base",
		Dimensions:            768,
		MaxContextTokens:      128,
		ReservedSpecialTokens: 2,
		BatchSize:             32,
		RatePerSecond:         0,
		Burst:                 8,
		CacheSize:             1024,
	}
}

// Client implements Model over a Tokenizer and an Embedder, with rate
// limiting and a circuit breaker in front of the embedder.
type Client struct {
	cfg     Config
	tok     Tokenizer
	emb     Embedder
	limiter *resilience.Limiter
	breaker *resilience.Breaker
	log     *slog.Logger
}

var _ Model = (*Client)(nil)

// NewClient wires a client. A nil logger uses slog.Default().
func NewClient(cfg Config, tok Tokenizer, emb Embedder, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	c := &Client{
		cfg:     cfg,
		tok:     tok,
		emb:     emb,
		limiter: resilience.NewLimiter(resilience.LimiterOpts{Rate: cfg.RatePerSecond, Burst: cfg.Burst}),
		log:     log,
	}
	c.breaker = resilience.NewBreaker(resilience.BreakerOpts{
		OnStateChange: func(from, to resilience.State) {
			log.Warn("embedding breaker state changed", "model", cfg.Model, "from", from.String(), "to", to.String())
		},
	})
	return c
}

func (c *Client) Name() string               { return c.cfg.Model }
func (c *Client) Dimensions() int            { return c.cfg.Dimensions }
func (c *Client) MaxContextTokens() int      { return c.cfg.MaxContextTokens }
func (c *Client) ReservedSpecialTokens() int { return c.cfg.ReservedSpecialTokens }
func (c *Client) Encode(text string) []int   { return c.tok.Encode(text) }
func (c *Client) Decode(tokens []int) string { return c.tok.Decode(tokens) }

// DecodeBytes returns raw token bytes when the tokenizer can split a rune,
// and the decoded text otherwise.
func (c *Client) DecodeBytes(tokens []int) []byte {
	if bd, ok := c.tok.(interface{ DecodeBytes([]int) []byte }); ok {
		return bd.DecodeBytes(tokens)
	}
	return []byte(c.tok.Decode(tokens))
}

func (c *Client) call(ctx context.Context, op string, f func(context.Context) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("embedding: %s: %w", op, err)
	}
	if err := c.breaker.Call(ctx, f); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("embedding: %s: %w", op, ctx.Err())
		}
		return fmt.Errorf("embedding: %s: %w: %w", op, ErrUnavailable, err)
	}
	return nil
}

func (c *Client) checkDims(v []float32) error {
	if c.cfg.Dimensions > 0 && len(v) != c.cfg.Dimensions {
		return fmt.Errorf("embedding: model %s returned %d dimensions, expected %d: %w",
			c.cfg.Model, len(v), c.cfg.Dimensions, ErrDimensionMismatch)
	}
	return nil
}

// Embed embeds a single query text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := c.call(ctx, "embed query", func(ctx context.Context) error {
		v, err := c.emb.EmbedQuery(ctx, text)
		vec = v
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := c.checkDims(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// EmbedBatch embeds texts in groups of BatchSize, preserving order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i, batch := range fn.Chunk(texts, c.cfg.BatchSize) {
		var vecs [][]float32
		err := c.call(ctx, fmt.Sprintf("embed batch %d", i), func(ctx context.Context) error {
			v, err := c.emb.EmbedDocuments(ctx, batch)
			vecs = v
			return err
		})
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(batch) {
			return nil, fmt.Errorf("embedding: batch %d: got %d vectors for %d texts: %w",
				i, len(vecs), len(batch), ErrUnavailable)
		}
		for _, v := range vecs {
			if err := c.checkDims(v); err != nil {
				return nil, err
			}
		}
		out = append(out, vecs...)
	}
	return out, nil
}
