//go:build integration

package semantic

import (
	"context"
	"os"
	"testing"

	"github.com/florinhegedus/rag-system-romanian-laws/engine/pointid"
)

func qdrantAddr() string {
	if v := os.Getenv("QDRANT_ADDR"); v != "" {
		return v
	}
	return "localhost:6334"
}

func testStore(t *testing.T, collection string) *VectorStore {
	t.Helper()
	vs, err := New(qdrantAddr(), collection)
	if err != nil {
		t.Fatalf("connect qdrant: %v", err)
	}
	t.Cleanup(func() {
		vs.DeleteCollection(context.Background())
		vs.Close()
	})
	return vs
}

func TestQdrant_Lifecycle(t *testing.T) {
	vs := testStore(t, "lexrag_test_lifecycle")
	ctx := context.Background()

	ok, err := vs.CollectionExists(ctx)
	if err != nil {
		t.Fatalf("CollectionExists: %v", err)
	}
	if ok {
		if err := vs.DeleteCollection(ctx); err != nil {
			t.Fatalf("DeleteCollection: %v", err)
		}
	}
	if err := vs.CreateCollection(ctx, 4); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	info, err := vs.CollectionInfo(ctx)
	if err != nil {
		t.Fatalf("CollectionInfo: %v", err)
	}
	if info.Dimensions != 4 || info.Distance != DistanceCosine {
		t.Errorf("info = %+v", info)
	}
}

func TestQdrant_UpsertExistingSearchPrune(t *testing.T) {
	vs := testStore(t, "lexrag_test_points")
	ctx := context.Background()
	if err := vs.CreateCollection(ctx, 4); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	ref := "CODUL_MUNCII/A145"
	ids := pointid.DeriveAll(ref, 3)
	points := []Point{
		{ID: ids[0], Vector: []float32{1, 0, 0, 0}, Payload: Payload{ArticleID: 1, Source: "CODUL_MUNCII", ArticleKey: "A145", ChunkIndex: 0, ChunkText: "concediu"}},
		{ID: ids[1], Vector: []float32{0, 1, 0, 0}, Payload: Payload{ArticleID: 1, Source: "CODUL_MUNCII", ArticleKey: "A145", ChunkIndex: 1, ChunkText: "odihnă"}},
		{ID: ids[2], Vector: []float32{0.9, 0.1, 0, 0}, Payload: Payload{ArticleID: 1, Source: "CODUL_MUNCII", ArticleKey: "A145", ChunkIndex: 2, ChunkText: "plătit"}},
	}
	if err := vs.Upsert(ctx, points); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	found, err := vs.Existing(ctx, ids)
	if err != nil {
		t.Fatalf("Existing: %v", err)
	}
	if len(found) != 3 {
		t.Fatalf("expected 3 existing, got %v", found)
	}

	hits, err := vs.Search(ctx, []float32{1, 0, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 || hits[0].ID != ids[0] {
		t.Fatalf("unexpected hits %+v", hits)
	}

	if err := vs.DeleteStale(ctx, "CODUL_MUNCII", "A145", 1); err != nil {
		t.Fatalf("DeleteStale: %v", err)
	}
	n, err := vs.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 point after prune, got %d", n)
	}
}
