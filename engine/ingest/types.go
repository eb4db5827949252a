package ingest

import (
	"time"

	"github.com/florinhegedus/rag-system-romanian-laws/engine/domain"
)

// Request asks for one source document to be (re)ingested.
type Request struct {
	Source       string  `json:"source"`
	OverlapRatio float64 `json:"overlap_ratio"`
	Reset        bool    `json:"reset,omitempty"`
	// Mode is "skip-existing" (default) or "overwrite".
	Mode       string `json:"mode,omitempty"`
	PruneStale bool   `json:"prune_stale,omitempty"`
}

// Summary is logged at the end of a run and published on DoneSubject.
// StoreFailures counts parsed articles the relational store rejected.
type Summary struct {
	Source         string        `json:"source"`
	Articles       int           `json:"articles"`
	ParseFailures  int           `json:"parse_failures"`
	Chunks         int           `json:"chunks"`
	PointsWritten  int           `json:"points_written"`
	PointsSkipped  int           `json:"points_skipped"`
	FailedArticles int           `json:"failed_articles"`
	StoreFailures  int           `json:"store_failures"`
	Duration       time.Duration `json:"duration"`
}

// ChunkedArticle is an article split into embedding windows.
type ChunkedArticle struct {
	Article domain.Article
	Chunks  []string
}

// EmbeddedArticle carries one vector per chunk.
type EmbeddedArticle struct {
	ChunkedArticle
	Vectors [][]float32
}
