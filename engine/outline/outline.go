// Package outline mirrors each legal code's structure into Neo4j so search
// results can carry a breadcrumb from the code down to the article.
package outline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/florinhegedus/rag-system-romanian-laws/engine/domain"
	"github.com/florinhegedus/rag-system-romanian-laws/pkg/repo"
)

// Kind is the structural level of a node.
type Kind string

const (
	KindCode    Kind = "code"
	KindPart    Kind = "part"
	KindTitle   Kind = "title"
	KindChapter Kind = "chapter"
	KindSection Kind = "section"
	KindArticle Kind = "article"
)

// Node is one vertex of the outline tree. Parent is empty for the code root.
type Node struct {
	ID     string
	Kind   Kind
	Label  string
	Source string
	Parent string
}

func nodeToMap(n Node) map[string]any {
	return map[string]any{
		"id":     n.ID,
		"kind":   string(n.Kind),
		"label":  n.Label,
		"source": n.Source,
		"parent": n.Parent,
	}
}

func nodeFromRecord(rec *neo4j.Record) (Node, error) {
	if len(rec.Values) == 0 {
		return Node{}, errors.New("outline: empty record")
	}
	var props map[string]any
	switch v := rec.Values[0].(type) {
	case neo4j.Node:
		props = v.Props
	case map[string]any:
		props = v
	default:
		return Node{}, fmt.Errorf("outline: unexpected value %T", rec.Values[0])
	}
	str := func(k string) string { s, _ := props[k].(string); return s }
	return Node{
		ID:     str("id"),
		Kind:   Kind(str("kind")),
		Label:  str("label"),
		Source: str("source"),
		Parent: str("parent"),
	}, nil
}

// nodeStore is satisfied by *repo.Neo4jRepo[Node, string].
type nodeStore interface {
	Get(ctx context.Context, id string) (Node, error)
	Upsert(ctx context.Context, n Node) error
	Exec(ctx context.Context, cypher string, params map[string]any) error
}

// Store maintains the outline graph.
type Store struct {
	nodes nodeStore
	log   *slog.Logger
}

// New builds a Store on a Neo4j driver.
func New(driver neo4j.DriverWithContext, log *slog.Logger) *Store {
	return newStore(repo.NewNeo4jRepo[Node, string](driver, "Outline", nodeToMap, nodeFromRecord), log)
}

func newStore(nodes nodeStore, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{nodes: nodes, log: log}
}

const linkCypher = `MATCH (p:Outline {id: $parent}), (c:Outline {id: $child})
MERGE (p)-[:CONTAINS]->(c)`

// Chain returns the root-to-leaf node path for one article, skipping empty
// levels. Heading ids are derived from their labels so repeated runs MERGE
// onto the same nodes.
func Chain(a domain.Article) []Node {
	root := Node{ID: a.Source, Kind: KindCode, Label: a.Source, Source: a.Source}
	chain := []Node{root}
	parent := root.ID
	for _, lvl := range []struct {
		kind  Kind
		label string
	}{
		{KindPart, a.Part},
		{KindTitle, a.GroupTitle},
		{KindChapter, a.Chapter},
		{KindSection, a.Section},
	} {
		if lvl.label == "" {
			continue
		}
		id := parent + "/" + string(lvl.kind) + ":" + normalize(lvl.label)
		chain = append(chain, Node{ID: id, Kind: lvl.kind, Label: lvl.label, Source: a.Source, Parent: parent})
		parent = id
	}
	label := a.Title
	if label == "" {
		label = a.ArticleID
	}
	return append(chain, Node{ID: a.Reference(), Kind: KindArticle, Label: label, Source: a.Source, Parent: parent})
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// SaveArticles merges the node chain of every article. Nodes shared between
// articles are written once per call.
func (s *Store) SaveArticles(ctx context.Context, articles []domain.Article) error {
	seen := make(map[string]bool)
	for _, a := range articles {
		for _, n := range Chain(a) {
			if seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			if err := s.nodes.Upsert(ctx, n); err != nil {
				return domain.Wrap(domain.ErrStoreUnavailable, "outline: save "+n.ID, err)
			}
			if n.Parent == "" {
				continue
			}
			if err := s.nodes.Exec(ctx, linkCypher, map[string]any{"parent": n.Parent, "child": n.ID}); err != nil {
				return domain.Wrap(domain.ErrStoreUnavailable, "outline: link "+n.ID, err)
			}
		}
	}
	s.log.Info("outline saved", "articles", len(articles), "nodes", len(seen))
	return nil
}

// maxDepth bounds the parent walk; a code has at most six levels.
const maxDepth = 8

// Breadcrumb returns the labels of the article's ancestors from the code
// down, excluding the article itself.
func (s *Store) Breadcrumb(ctx context.Context, source, articleID string) ([]string, error) {
	n, err := s.nodes.Get(ctx, domain.Reference(source, articleID))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("outline: %s: %w", domain.Reference(source, articleID), domain.ErrNotFound)
	}
	if err != nil {
		return nil, domain.Wrap(domain.ErrStoreUnavailable, "outline: breadcrumb", err)
	}
	var labels []string
	for depth := 0; n.Parent != "" && depth < maxDepth; depth++ {
		n, err = s.nodes.Get(ctx, n.Parent)
		if err != nil {
			return nil, domain.Wrap(domain.ErrStoreUnavailable, "outline: breadcrumb", err)
		}
		labels = append(labels, n.Label)
	}
	for i, j := 0, len(labels)-1; i < j; i, j = i+1, j-1 {
		labels[i], labels[j] = labels[j], labels[i]
	}
	return labels, nil
}
