package semantic

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"

	"github.com/florinhegedus/rag-system-romanian-laws/engine/domain"
)

// Payload is the metadata stored next to every chunk vector. ArticleID is the
// relational primary key of the owning article and is only a weak reference.
type Payload struct {
	ArticleID  int64  `json:"article_id"`
	Source     string `json:"source"`
	ArticleKey string `json:"article_key"`
	ChunkIndex int    `json:"chunk_index"`
	ChunkText  string `json:"chunk_text"`
	Title      string `json:"title"`
	Section    string `json:"section,omitempty"`
	Chapter    string `json:"chapter,omitempty"`
}

// Reference returns "{source}/{article_key}".
func (p Payload) Reference() string { return domain.Reference(p.Source, p.ArticleKey) }

// Point is a single vector to store.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Hit is a single similarity search result.
type Hit struct {
	ID      string  `json:"id"`
	Score   float32 `json:"score"`
	Payload Payload `json:"payload"`
}

// CollectionInfo describes an existing collection.
type CollectionInfo struct {
	Dimensions int
	Distance   string
}

// DistanceCosine is the only distance this system creates collections with.
const DistanceCosine = "cosine"

// Index is implemented by every vector store backend.
type Index interface {
	Name() string
	CollectionExists(ctx context.Context) (bool, error)
	CollectionInfo(ctx context.Context) (CollectionInfo, error)
	CreateCollection(ctx context.Context, dims int) error
	DeleteCollection(ctx context.Context) error
	Upsert(ctx context.Context, points []Point) error
	Existing(ctx context.Context, ids []string) (map[string]bool, error)
	Search(ctx context.Context, vector []float32, topK int) ([]Hit, error)
	DeleteStale(ctx context.Context, source, articleKey string, fromChunk int) error
	Count(ctx context.Context) (uint64, error)
	Close() error
}

func (p Payload) toPB() map[string]*pb.Value {
	str := func(s string) *pb.Value { return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}} }
	num := func(n int64) *pb.Value { return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: n}} }
	return map[string]*pb.Value{
		"article_id":  num(p.ArticleID),
		"source":      str(p.Source),
		"article_key": str(p.ArticleKey),
		"chunk_index": num(int64(p.ChunkIndex)),
		"chunk_text":  str(p.ChunkText),
		"title":       str(p.Title),
		"section":     str(p.Section),
		"chapter":     str(p.Chapter),
	}
}

func payloadFromPB(m map[string]*pb.Value) Payload {
	return Payload{
		ArticleID:  m["article_id"].GetIntegerValue(),
		Source:     m["source"].GetStringValue(),
		ArticleKey: m["article_key"].GetStringValue(),
		ChunkIndex: int(m["chunk_index"].GetIntegerValue()),
		ChunkText:  m["chunk_text"].GetStringValue(),
		Title:      m["title"].GetStringValue(),
		Section:    m["section"].GetStringValue(),
		Chapter:    m["chapter"].GetStringValue(),
	}
}

func checkDims(points []Point, dims int) error {
	for _, p := range points {
		if len(p.Vector) != dims {
			return fmt.Errorf("semantic: point %s has %d dimensions, collection has %d: %w",
				p.ID, len(p.Vector), dims, domain.ErrConfiguration)
		}
	}
	return nil
}
