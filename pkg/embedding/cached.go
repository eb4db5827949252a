package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached memoizes query embeddings. Batch calls used for indexing bypass the cache.
type Cached struct {
	Model
	cache  *lru.Cache[string, []float32]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCached wraps m with an LRU of the given size.
func NewCached(m Model, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultConfig().CacheSize
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("embedding: new cache: %w", err)
	}
	return &Cached{Model: m, cache: c}, nil
}

func (c *Cached) key(text string) string {
	sum := sha256.Sum256([]byte(c.Model.Name() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Embed returns a cached vector when the same text was embedded before.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	k := c.key(text)
	if v, ok := c.cache.Get(k); ok {
		c.hits.Add(1)
		return slices.Clone(v), nil
	}
	c.misses.Add(1)
	v, err := c.Model.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(k, slices.Clone(v))
	return v, nil
}

// Stats returns cache hits and misses.
func (c *Cached) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
