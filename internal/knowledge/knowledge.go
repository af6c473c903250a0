// Package knowledge answers product, regulation and trading questions during
// a call. Vector search over Qdrant is preferred; a static keyword index over
// the embedded content answers when the vector path is off, slow or empty.
package knowledge

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultLimit is used when a caller asks for k <= 0 results.
const DefaultLimit = 3

// MaxLimit caps k.
const MaxLimit = 10

//go:embed content.yaml
var defaultContent []byte

// Snippet is one ranked search hit.
type Snippet struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	Category string  `json:"category,omitempty"`
	Score    float64 `json:"score"`
	Source   string  `json:"source"`
}

// Searcher finds the k most relevant snippets for query. Implementations are
// best-effort: no match is an empty slice, not an error.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]Snippet, error)
}

// Document is one entry of the static corpus.
type Document struct {
	ID       string   `yaml:"id"`
	Title    string   `yaml:"title"`
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
	Content  string   `yaml:"content"`
}

// Concept is a glossary entry.
type Concept struct {
	Key         string   `yaml:"key" json:"concept"`
	Aliases     []string `yaml:"aliases" json:"-"`
	Explanation string   `yaml:"explanation" json:"explanation"`
}

// Market describes the trading hours of one market.
type Market struct {
	Key     string   `yaml:"key" json:"market"`
	Aliases []string `yaml:"aliases" json:"-"`
	Hours   string   `yaml:"hours" json:"hours"`
}

// Content is the embedded corpus.
type Content struct {
	Documents []Document `yaml:"documents"`
	Concepts  []Concept  `yaml:"concepts"`
	Markets   []Market   `yaml:"markets"`
}

// DefaultContent parses the embedded corpus.
func DefaultContent() (*Content, error) {
	var c Content
	if err := yaml.Unmarshal(defaultContent, &c); err != nil {
		return nil, fmt.Errorf("parse knowledge content: %w", err)
	}
	for _, doc := range c.Documents {
		if doc.ID == "" || strings.TrimSpace(doc.Content) == "" {
			return nil, fmt.Errorf("knowledge document %q is incomplete", doc.Title)
		}
	}
	return &c, nil
}

func clampLimit(k int) int {
	switch {
	case k <= 0:
		return DefaultLimit
	case k > MaxLimit:
		return MaxLimit
	default:
		return k
	}
}
