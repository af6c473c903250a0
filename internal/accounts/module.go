package accounts

import (
	apphttp "voice_sales_backend/internal/http"
	"voice_sales_backend/internal/policy"
)

// Module is the account catalog module implementing http.Module.
type Module struct {
	engine  *Engine
	handler *Handler
}

// NewModule builds the engine over the configured catalog.
func NewModule(tables *policy.Tables) *Module {
	engine := NewEngine(tables.Catalog)
	return &Module{engine: engine, handler: NewHandler(engine)}
}

func (m *Module) Name() string {
	return "accounts"
}

// Engine returns the recommendation engine for the call tools.
func (m *Module) Engine() *Engine {
	return m.engine
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/accounts"))
}

var _ apphttp.Module = (*Module)(nil)
