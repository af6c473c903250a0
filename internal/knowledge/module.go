package knowledge

import (
	apphttp "voice_sales_backend/internal/http"
	"voice_sales_backend/platform/ai/embeddings"
	"voice_sales_backend/platform/config"
	"voice_sales_backend/platform/logger"
	"voice_sales_backend/platform/qdrant"
)

// Config is what the knowledge module reads from the application configuration.
type Config interface {
	config.QdrantConfig
	config.EmbeddingConfig
	config.KnowledgeConfig
}

// Module is the knowledge base module implementing http.Module.
type Module struct {
	service *Service
	handler *Handler
}

// NewModule builds the searcher chain. Vector search is used only when both
// Qdrant and the embedding API are configured.
func NewModule(cfg Config, log *logger.Logger) (*Module, error) {
	content, err := DefaultContent()
	if err != nil {
		return nil, err
	}

	static := NewStaticSearcher(content)
	var (
		primary Searcher
		indexer Indexer
	)
	if cfg.IsQdrantEnabled() && cfg.IsEmbeddingEnabled() {
		vector := NewVectorSearcher(
			embeddings.NewClient(embeddings.Config{
				BaseURL: cfg.GetEmbeddingAPIURL(),
				APIKey:  cfg.GetEmbeddingAPIKey(),
			}),
			qdrant.NewClient(qdrant.Config{
				BaseURL:    cfg.GetQdrantURL(),
				APIKey:     cfg.GetQdrantAPIKey(),
				Collection: cfg.GetQdrantCollection(),
			}),
		)
		primary, indexer = vector, vector
		log.Info("knowledge vector search enabled", "collection", cfg.GetQdrantCollection())
	}

	svc := NewService(NewFallbackSearcher(primary, static, cfg.GetKnowledgeTimeout(), log), content, indexer)
	return &Module{service: svc, handler: NewHandler(svc)}, nil
}

func (m *Module) Name() string {
	return "knowledge"
}

// Service returns the knowledge service for the call tools.
func (m *Module) Service() *Service {
	return m.service
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/knowledge"))
}

var _ apphttp.Module = (*Module)(nil)
