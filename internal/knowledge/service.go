package knowledge

import (
	"context"
	"strings"

	"voice_sales_backend/platform/apperr"
)

// Indexer writes documents to the vector index.
type Indexer interface {
	Index(ctx context.Context, docs []Document) (int, error)
}

// Service is the knowledge entry point used by the call tools and HTTP handlers.
type Service struct {
	searcher Searcher
	glossary *Glossary
	indexer  Indexer
	docs     []Document
}

// NewService wires a searcher and glossary over content. indexer may be nil
// when no vector index is configured.
func NewService(searcher Searcher, content *Content, indexer Indexer) *Service {
	return &Service{
		searcher: searcher,
		glossary: NewGlossary(content),
		indexer:  indexer,
		docs:     content.Documents,
	}
}

// Search returns up to k snippets for query.
func (s *Service) Search(ctx context.Context, query string, k int) ([]Snippet, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("query is required")
	}
	return s.searcher.Search(ctx, query, k)
}

// Explain describes a trading concept.
func (s *Service) Explain(concept string) (Concept, error) {
	c, ok := s.glossary.Explain(concept)
	if !ok {
		return Concept{}, apperr.NotFound("unknown concept").WithDetails(map[string]any{
			"concept": concept,
			"known":   s.glossary.Concepts(),
		})
	}
	return c, nil
}

// MarketHours describes when a market trades.
func (s *Service) MarketHours(market string) (Market, error) {
	m, ok := s.glossary.MarketHours(market)
	if !ok {
		return Market{}, apperr.NotFound("unknown market").WithDetails(map[string]any{
			"market": market,
			"known":  s.glossary.Markets(),
		})
	}
	return m, nil
}

// Reindex pushes the embedded corpus into the vector index.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	if s.indexer == nil {
		return 0, apperr.BadRequest("vector search is not configured")
	}
	n, err := s.indexer.Index(ctx, s.docs)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "knowledge reindex failed", err).WithOp("knowledge.Reindex")
	}
	return n, nil
}
