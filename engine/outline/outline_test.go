package outline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florinhegedus/rag-system-romanian-laws/engine/domain"
	"github.com/florinhegedus/rag-system-romanian-laws/pkg/logging"
	"github.com/florinhegedus/rag-system-romanian-laws/pkg/repo"
)

type fakeNodes struct {
	nodes   map[string]Node
	links   [][2]string
	upserts int
	failGet bool
	failUp  bool
}

func newFake() *fakeNodes { return &fakeNodes{nodes: map[string]Node{}} }

func (f *fakeNodes) Get(_ context.Context, id string) (Node, error) {
	if f.failGet {
		return Node{}, errors.New("connection reset")
	}
	n, ok := f.nodes[id]
	if !ok {
		return Node{}, fmt.Errorf("Outline %s: %w", id, repo.ErrNotFound)
	}
	return n, nil
}

func (f *fakeNodes) Upsert(_ context.Context, n Node) error {
	if f.failUp {
		return errors.New("neo4j down")
	}
	f.upserts++
	f.nodes[n.ID] = n
	return nil
}

func (f *fakeNodes) Exec(_ context.Context, _ string, params map[string]any) error {
	f.links = append(f.links, [2]string{params["parent"].(string), params["child"].(string)})
	return nil
}

func article(id, chapter, section string) domain.Article {
	return domain.Article{
		Source:     "CODUL_MUNCII",
		ArticleID:  id,
		Title:      "Articolul " + id,
		GroupTitle: "Titlul III Timpul de odihnă",
		Chapter:    chapter,
		Section:    section,
	}
}

func TestChain_SkipsEmptyLevels(t *testing.T) {
	chain := Chain(article("A145", "Capitolul III Concediul de odihnă", ""))
	require.Len(t, chain, 4)
	assert.Equal(t, KindCode, chain[0].Kind)
	assert.Equal(t, KindTitle, chain[1].Kind)
	assert.Equal(t, KindChapter, chain[2].Kind)
	assert.Equal(t, KindArticle, chain[3].Kind)
	assert.Equal(t, "CODUL_MUNCII/A145", chain[3].ID)
	assert.Equal(t, chain[2].ID, chain[3].Parent)
	assert.Equal(t, "CODUL_MUNCII/title:titlul iii timpul de odihnă", chain[1].ID)
}

func TestChain_StableAcrossWhitespace(t *testing.T) {
	a := Chain(article("A1", "Capitolul  I", ""))
	b := Chain(article("A2", "capitolul I ", ""))
	assert.Equal(t, a[2].ID, b[2].ID)
}

func TestSaveArticlesAndBreadcrumb(t *testing.T) {
	f := newFake()
	s := newStore(f, logging.Discard())
	ctx := context.Background()

	err := s.SaveArticles(ctx, []domain.Article{
		article("A145", "Capitolul III Concediul de odihnă", "Secţiunea 1"),
		article("A146", "Capitolul III Concediul de odihnă", "Secţiunea 1"),
	})
	require.NoError(t, err)
	assert.Equal(t, 6, f.upserts, "shared headings are written once")
	assert.Len(t, f.links, 5)

	crumbs, err := s.Breadcrumb(ctx, "CODUL_MUNCII", "A146")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"CODUL_MUNCII",
		"Titlul III Timpul de odihnă",
		"Capitolul III Concediul de odihnă",
		"Secţiunea 1",
	}, crumbs)
}

func TestBreadcrumb_NotFound(t *testing.T) {
	s := newStore(newFake(), logging.Discard())
	_, err := s.Breadcrumb(context.Background(), "CODUL_CIVIL", "A1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStoreErrors(t *testing.T) {
	f := newFake()
	f.failUp = true
	s := newStore(f, logging.Discard())
	err := s.SaveArticles(context.Background(), []domain.Article{article("A1", "", "")})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	f.failGet = true
	_, err = s.Breadcrumb(context.Background(), "CODUL_MUNCII", "A1")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestNodeFromRecord(t *testing.T) {
	rec := &neo4j.Record{Keys: []string{"n"}, Values: []any{neo4j.Node{Props: map[string]any{
		"id": "CODUL_PENAL/A1", "kind": "article", "label": "Art. 1", "source": "CODUL_PENAL", "parent": "CODUL_PENAL",
	}}}}
	n, err := nodeFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, Node{ID: "CODUL_PENAL/A1", Kind: KindArticle, Label: "Art. 1", Source: "CODUL_PENAL", Parent: "CODUL_PENAL"}, n)
	assert.Equal(t, "article", nodeToMap(n)["kind"])

	_, err = nodeFromRecord(&neo4j.Record{Values: []any{42}})
	assert.Error(t, err)
	_, err = nodeFromRecord(&neo4j.Record{})
	assert.Error(t, err)
}
