package legal

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Kind classifies a flattened token.
type Kind int

const (
	KindMarker  Kind = iota // hierarchy heading span
	KindArticle             // article span
	KindLeave               // an element whose subtree produced tokens has closed
)

// Level is one of the four structural fields of an article.
type Level int

const (
	LevelPart Level = iota
	LevelGroupTitle
	LevelChapter
	LevelSection
	numLevels
)

type markerClass struct {
	level Level
	title bool
}

// Recognised heading classes. *_TTL carries the label, *_DEN the descriptive name.
var markerClasses = map[string]markerClass{
	"S_PRT_TTL": {LevelPart, true},
	"S_PRT_DEN": {LevelPart, false},
	"S_TTL_TTL": {LevelGroupTitle, true},
	"S_TTL_DEN": {LevelGroupTitle, false},
	"S_CAP_TTL": {LevelChapter, true},
	"S_CAP_DEN": {LevelChapter, false},
	"S_SEC_TTL": {LevelSection, true},
	"S_SEC_DEN": {LevelSection, false},
}

// Token is one entry of the flattened document.
//
// Depth is the element's distance from the document root. For KindArticle,
// ID and HasID come from the id attribute and Children holds the trimmed text
// of each significant child node.
type Token struct {
	Kind     Kind
	Class    string
	Level    Level
	Title    bool
	Text     string
	Depth    int
	ID       string
	HasID    bool
	Children []string
}

// Flatten walks doc in document order and returns its marker stream.
// Article subtrees are not scanned for further markers.
func Flatten(doc *html.Node, articleClass string) []Token {
	var toks []Token
	var walk func(n *html.Node, depth int) bool
	walk = func(n *html.Node, depth int) bool {
		emitted := false
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			d := depth + 1
			if c.DataAtom == atom.Span && hasClass(c, articleClass) {
				toks = append(toks, articleToken(c, d, articleClass))
				emitted = true
				continue
			}
			if cls := firstClass(c); c.DataAtom == atom.Span && cls != "" {
				if m, ok := markerClasses[cls]; ok {
					toks = append(toks, Token{
						Kind:  KindMarker,
						Class: cls,
						Level: m.level,
						Title: m.title,
						Text:  strings.TrimSpace(textOf(c)),
						Depth: d,
					})
					emitted = true
				}
			}
			if walk(c, d) {
				toks = append(toks, Token{Kind: KindLeave, Depth: d})
				emitted = true
			}
		}
		return emitted
	}
	walk(doc, 0)
	return toks
}

func articleToken(n *html.Node, depth int, class string) Token {
	tok := Token{Kind: KindArticle, Class: class, Depth: depth}
	for _, a := range n.Attr {
		if a.Key == "id" && a.Namespace == "" {
			tok.ID = strings.TrimSpace(a.Val)
			tok.HasID = tok.ID != ""
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			tok.Children = append(tok.Children, strings.TrimSpace(textOf(c)))
		case html.TextNode:
			if t := strings.TrimSpace(c.Data); t != "" {
				tok.Children = append(tok.Children, t)
			}
		}
	}
	return tok
}

func classes(n *html.Node) []string {
	for _, a := range n.Attr {
		if a.Key == "class" {
			return strings.Fields(a.Val)
		}
	}
	return nil
}

func firstClass(n *html.Node) string {
	if cs := classes(n); len(cs) > 0 {
		return cs[0]
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range classes(n) {
		if c == class {
			return true
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return b.String()
}
