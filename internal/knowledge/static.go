package knowledge

import (
	"context"
	"sort"
	"strings"
	"unicode"
)

const sourceStatic = "static"

// StaticSearcher ranks the embedded documents by keyword overlap with the query.
type StaticSearcher struct {
	docs []Document
}

func NewStaticSearcher(content *Content) *StaticSearcher {
	return &StaticSearcher{docs: content.Documents}
}

// Documents returns the corpus the searcher ranks.
func (s *StaticSearcher) Documents() []Document {
	return s.docs
}

// Search scores each document by the share of query terms that hit one of
// its keywords. Ties keep corpus order.
func (s *StaticSearcher) Search(ctx context.Context, query string, k int) ([]Snippet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := tokenize(query)
	if len(terms) == 0 {
		return []Snippet{}, nil
	}

	type hit struct {
		doc   Document
		score float64
	}
	var hits []hit
	for _, doc := range s.docs {
		matched := 0
		for _, term := range terms {
			if matchesKeyword(term, doc.Keywords) {
				matched++
			}
		}
		if matched > 0 {
			hits = append(hits, hit{doc: doc, score: float64(matched) / float64(len(terms))})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	limit := clampLimit(k)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]Snippet, len(hits))
	for i, h := range hits {
		out[i] = Snippet{
			ID:       h.doc.ID,
			Title:    h.doc.Title,
			Content:  strings.TrimSpace(h.doc.Content),
			Category: h.doc.Category,
			Score:    h.score,
			Source:   sourceStatic,
		}
	}
	return out, nil
}

func matchesKeyword(term string, keywords []string) bool {
	for _, kw := range keywords {
		if term == fold(kw) {
			return true
		}
	}
	return false
}

// tokenize lowercases, strips accents and splits on anything that is not a letter or digit.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(fold(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

var accentFolder = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
)

func fold(s string) string {
	return accentFolder.Replace(strings.ToLower(strings.TrimSpace(s)))
}
