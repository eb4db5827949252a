package embedding

import (
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// NewOllama builds a Client that embeds through an Ollama server and counts
// tokens with a tiktoken encoding.
func NewOllama(cfg Config, log *slog.Logger) (*Client, error) {
	tok, err := NewTokenizer(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	llm, err := ollama.New(ollama.WithModel(cfg.Model), ollama.WithServerURL(cfg.ServerURL))
	if err != nil {
		return nil, fmt.Errorf("embedding: ollama %s at %s: %w: %w", cfg.Model, cfg.ServerURL, ErrUnavailable, err)
	}
	emb, err := embeddings.NewEmbedder(llm, embeddings.WithBatchSize(max(cfg.BatchSize, 1)))
	if err != nil {
		return nil, fmt.Errorf("embedding: new embedder: %w: %w", ErrUnavailable, err)
	}
	return NewClient(cfg, tok, emb, log), nil
}
