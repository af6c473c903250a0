package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"voice_sales_backend/platform/logger"
	"voice_sales_backend/platform/qdrant"

	"github.com/google/uuid"
)

const sourceVector = "vector"

// minVectorScore drops weak vector hits.
const minVectorScore = 0.35

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is the subset of the Qdrant client the searcher uses.
type VectorIndex interface {
	Search(ctx context.Context, params qdrant.SearchParams) ([]qdrant.SearchResult, error)
	Upsert(ctx context.Context, points []qdrant.Point) error
	EnsureCollection(ctx context.Context, dimensions int) error
}

// VectorSearcher embeds the query and searches the vector index.
type VectorSearcher struct {
	embedder Embedder
	index    VectorIndex
}

func NewVectorSearcher(embedder Embedder, index VectorIndex) *VectorSearcher {
	return &VectorSearcher{embedder: embedder, index: index}
}

func (s *VectorSearcher) Search(ctx context.Context, query string, k int) ([]Snippet, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.index.Search(ctx, qdrant.SearchParams{
		Vector:         vector,
		Limit:          clampLimit(k),
		ScoreThreshold: minVectorScore,
	})
	if err != nil {
		return nil, err
	}

	out := make([]Snippet, 0, len(results))
	for _, r := range results {
		content := payloadString(r.Payload, "content")
		if content == "" {
			continue
		}
		out = append(out, Snippet{
			ID:       payloadString(r.Payload, "doc_id"),
			Title:    payloadString(r.Payload, "title"),
			Content:  content,
			Category: payloadString(r.Payload, "category"),
			Score:    r.Score,
			Source:   sourceVector,
		})
	}
	return out, nil
}

// Index embeds every document and writes it to the vector index. Point ids
// are derived from document ids so reindexing replaces rather than duplicates.
func (s *VectorSearcher) Index(ctx context.Context, docs []Document) (int, error) {
	points := make([]qdrant.Point, 0, len(docs))
	for _, doc := range docs {
		text := doc.Title + "\n" + strings.TrimSpace(doc.Content)
		vector, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return 0, fmt.Errorf("embed %s: %w", doc.ID, err)
		}
		if len(points) == 0 {
			if err := s.index.EnsureCollection(ctx, len(vector)); err != nil {
				return 0, err
			}
		}
		points = append(points, qdrant.Point{
			ID:     uuid.NewSHA1(uuid.NameSpaceURL, []byte("knowledge:"+doc.ID)).String(),
			Vector: vector,
			Payload: map[string]any{
				"doc_id":   doc.ID,
				"title":    doc.Title,
				"category": doc.Category,
				"content":  strings.TrimSpace(doc.Content),
			},
		})
	}
	if err := s.index.Upsert(ctx, points); err != nil {
		return 0, err
	}
	return len(points), nil
}

func payloadString(payload map[string]any, key string) string {
	v, _ := payload[key].(string)
	return v
}

// FallbackSearcher tries the primary searcher within a time budget and
// answers from the fallback when the primary fails, times out or finds nothing.
type FallbackSearcher struct {
	primary  Searcher
	fallback Searcher
	timeout  time.Duration
	log      *logger.Logger
}

// NewFallbackSearcher wraps primary. A nil primary always uses fallback.
func NewFallbackSearcher(primary, fallback Searcher, timeout time.Duration, log *logger.Logger) *FallbackSearcher {
	return &FallbackSearcher{primary: primary, fallback: fallback, timeout: timeout, log: log}
}

func (s *FallbackSearcher) Search(ctx context.Context, query string, k int) ([]Snippet, error) {
	if strings.TrimSpace(query) == "" {
		return []Snippet{}, nil
	}

	if s.primary != nil {
		searchCtx, cancel := context.WithTimeout(ctx, s.timeout)
		snippets, err := s.primary.Search(searchCtx, query, k)
		cancel()
		switch {
		case err != nil:
			s.log.WithContext(ctx).Warn("knowledge search degraded to static index", "error", err)
		case len(snippets) > 0:
			return snippets, nil
		}
	}

	// The caller's own deadline still applies to the fallback.
	if err := ctx.Err(); err != nil {
		return []Snippet{}, nil
	}
	snippets, err := s.fallback.Search(ctx, query, k)
	if err != nil {
		return []Snippet{}, nil
	}
	return snippets, nil
}
