package legal

// Scope holds the resolved structural labels of one article.
type Scope struct {
	Part       string
	GroupTitle string
	Chapter    string
	Section    string
}

func (s *Scope) set(l Level, v string) {
	switch l {
	case LevelPart:
		s.Part = v
	case LevelGroupTitle:
		s.GroupTitle = v
	case LevelChapter:
		s.Chapter = v
	case LevelSection:
		s.Section = v
	}
}

// Placed pairs an article token with its resolved scope.
type Placed struct {
	Token Token
	Scope Scope
}

// Resolve scans a flattened token stream once and assigns every article the
// nearest enclosing heading of each level.
//
// Row d holds the latest heading seen among the children of the currently open
// element at depth d-1, so for an article at depth k the rows k-1..1 hold
// exactly the ancestors and their preceding siblings, nearest first. The
// article's own siblings (row k) are not consulted.
func Resolve(tokens []Token) []Placed {
	var (
		rows [][numLevels]string
		out  []Placed
	)
	for _, tok := range tokens {
		switch tok.Kind {
		case KindLeave:
			for d := tok.Depth + 1; d < len(rows); d++ {
				rows[d] = [numLevels]string{}
			}
		case KindMarker:
			if !tok.Title {
				continue
			}
			for len(rows) <= tok.Depth {
				rows = append(rows, [numLevels]string{})
			}
			rows[tok.Depth][tok.Level] = tok.Text
		case KindArticle:
			var found [numLevels]string
			for d := min(tok.Depth-1, len(rows)-1); d >= 1; d-- {
				for l := range found {
					if found[l] == "" && rows[d][l] != "" {
						found[l] = rows[d][l]
					}
				}
			}
			p := Placed{Token: tok}
			for l, v := range found {
				p.Scope.set(Level(l), v)
			}
			out = append(out, p)
		}
	}
	return out
}
