package semantic

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/coder/hnsw"

	"github.com/florinhegedus/rag-system-romanian-laws/engine/domain"
)

// MemoryStore is an in-process Index backed by an HNSW graph. It serves local
// runs without a Qdrant server. Replaced and deleted points are tombstoned in
// the graph and filtered out of search results.
type MemoryStore struct {
	mu     sync.RWMutex
	name   string
	exists bool
	dims   int
	graph  *hnsw.Graph[uint64]
	points map[string]memPoint
	ids    map[uint64]string // live graph key -> point id
	next   uint64
	dead   int
}

type memPoint struct {
	key     uint64
	vector  []float32
	payload Payload
}

var _ Index = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store without a collection.
func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{name: name}
}

func (m *MemoryStore) Name() string { return m.name }

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) CollectionExists(context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.exists, nil
}

func (m *MemoryStore) CollectionInfo(context.Context) (CollectionInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.exists {
		return CollectionInfo{}, fmt.Errorf("semantic: collection %s: %w", m.name, domain.ErrNotFound)
	}
	return CollectionInfo{Dimensions: m.dims, Distance: DistanceCosine}, nil
}

func (m *MemoryStore) CreateCollection(_ context.Context, dims int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exists {
		return fmt.Errorf("semantic: collection %s already exists: %w", m.name, domain.ErrConfiguration)
	}
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 64
	g.Ml = 0.25
	m.graph = g
	m.dims = dims
	m.exists = true
	m.points = make(map[string]memPoint)
	m.ids = make(map[uint64]string)
	m.dead = 0
	return nil
}

func (m *MemoryStore) DeleteCollection(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exists = false
	m.graph = nil
	m.points = nil
	m.ids = nil
	m.dims = 0
	m.dead = 0
	return nil
}

func (m *MemoryStore) requireCollection() error {
	if !m.exists {
		return fmt.Errorf("semantic: collection %s does not exist: %w", m.name, domain.ErrStoreUnavailable)
	}
	return nil
}

func (m *MemoryStore) Upsert(_ context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireCollection(); err != nil {
		return err
	}
	if err := checkDims(points, m.dims); err != nil {
		return err
	}
	for _, p := range points {
		m.tombstone(p.ID)
		key := m.next
		m.next++
		vec := slices.Clone(p.Vector)
		m.graph.Add(hnsw.MakeNode(key, normalize(vec)))
		m.points[p.ID] = memPoint{key: key, vector: vec, payload: p.Payload}
		m.ids[key] = p.ID
	}
	return nil
}

// tombstone must be called with mu held.
func (m *MemoryStore) tombstone(id string) {
	old, ok := m.points[id]
	if !ok {
		return
	}
	delete(m.ids, old.key)
	delete(m.points, id)
	m.dead++
}

func (m *MemoryStore) Existing(_ context.Context, ids []string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.requireCollection(); err != nil {
		return nil, err
	}
	found := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := m.points[id]; ok {
			found[id] = true
		}
	}
	return found, nil
}

func (m *MemoryStore) Search(_ context.Context, vector []float32, topK int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.requireCollection(); err != nil {
		return nil, err
	}
	if len(vector) != m.dims {
		return nil, fmt.Errorf("semantic: query has %d dimensions, collection has %d: %w",
			len(vector), m.dims, domain.ErrConfiguration)
	}
	if topK < 1 || len(m.points) == 0 {
		return []Hit{}, nil
	}
	q := normalize(slices.Clone(vector))
	nodes := m.graph.Search(q, topK+m.dead)
	hits := make([]Hit, 0, topK)
	for _, n := range nodes {
		id, live := m.ids[n.Key]
		if !live {
			continue
		}
		p := m.points[id]
		hits = append(hits, Hit{ID: id, Score: cosine(vector, p.vector), Payload: p.payload})
	}
	slices.SortStableFunc(hits, func(a, b Hit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (m *MemoryStore) DeleteStale(_ context.Context, source, articleKey string, fromChunk int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireCollection(); err != nil {
		return err
	}
	for id, p := range m.points {
		pl := p.payload
		if pl.Source == source && pl.ArticleKey == articleKey && pl.ChunkIndex >= fromChunk {
			m.tombstone(id)
		}
	}
	return nil
}

func (m *MemoryStore) Count(context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.requireCollection(); err != nil {
		return 0, err
	}
	return uint64(len(m.points)), nil
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	n := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= n
	}
	return v
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
