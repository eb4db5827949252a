// Package legal extracts articles and their structural scope from the HTML
// rendering of a Romanian legal code.
package legal

import (
	"fmt"
	"io"

	"golang.org/x/net/html"

	"github.com/florinhegedus/rag-system-romanian-laws/engine/domain"
)

// DefaultArticleClass marks an article span on legislatie.just.ro.
const DefaultArticleClass = "S_ART"

// Options configures Parse.
type Options struct {
	Source       string
	ArticleClass string
}

// Failure reports one article that could not be extracted.
type Failure struct {
	ArticleID string
	Position  int // index among article markers, for markers without an id
	Reason    string
}

func (f *Failure) Error() string {
	if f.ArticleID == "" {
		return fmt.Sprintf("article #%d: %s", f.Position, f.Reason)
	}
	return fmt.Sprintf("article %s: %s", f.ArticleID, f.Reason)
}

func (f *Failure) Unwrap() error { return domain.ErrParse }

// Result is the outcome of parsing one document. Articles keep document order.
type Result struct {
	Articles []domain.Article
	Failures []*Failure
}

// Parse reads an HTML document and extracts every article marker. Malformed
// articles are reported in Result.Failures and never stop the scan.
func Parse(r io.Reader, opts Options) (Result, error) {
	if opts.ArticleClass == "" {
		opts.ArticleClass = DefaultArticleClass
	}
	doc, err := html.Parse(r)
	if err != nil {
		return Result{}, domain.Wrap(domain.ErrParse, "legal: parse document", err)
	}
	return Extract(Resolve(Flatten(doc, opts.ArticleClass)), opts.Source), nil
}

// Extract turns placed article tokens into articles of the given source.
func Extract(placed []Placed, source string) Result {
	var res Result
	seen := make(map[string]bool, len(placed))
	for i, p := range placed {
		tok := p.Token
		switch {
		case !tok.HasID:
			res.Failures = append(res.Failures, &Failure{Position: i, Reason: "missing id attribute"})
			continue
		case len(tok.Children) < 2:
			res.Failures = append(res.Failures, &Failure{ArticleID: tok.ID, Position: i,
				Reason: fmt.Sprintf("expected title and body, found %d significant children", len(tok.Children))})
			continue
		case seen[tok.ID]:
			res.Failures = append(res.Failures, &Failure{ArticleID: tok.ID, Position: i, Reason: "duplicate id"})
			continue
		}
		seen[tok.ID] = true
		res.Articles = append(res.Articles, domain.Article{
			Source:     source,
			ArticleID:  tok.ID,
			Title:      tok.Children[0],
			Body:       tok.Children[1],
			Part:       p.Scope.Part,
			GroupTitle: p.Scope.GroupTitle,
			Chapter:    p.Scope.Chapter,
			Section:    p.Scope.Section,
		})
	}
	return res
}
