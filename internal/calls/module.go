package calls

import (
	"context"
	"time"

	"voice_sales_backend/internal/callmetrics"
	"voice_sales_backend/internal/events"
	apphttp "voice_sales_backend/internal/http"
	"voice_sales_backend/internal/leads/domain"
	"voice_sales_backend/platform/config"
	"voice_sales_backend/platform/logger"
	"voice_sales_backend/platform/validator"
)

// Module is the live call module implementing http.Module.
type Module struct {
	service *Service
	handler *Handler
	cfg     config.CallConfig
}

// NewModule wires the dispatcher and call lifecycle. registry may be nil.
func NewModule(tools Tools, tracker *callmetrics.Tracker, registry *Registry, phones domain.PhoneNormalizer, bus events.Bus, val *validator.Validator, cfg config.CallConfig, log *logger.Logger) *Module {
	dispatcher := NewDispatcher(tools, tracker, log)
	svc := NewService(tracker, dispatcher, registry, phones, bus, log)
	return &Module{service: svc, handler: NewHandler(svc, val), cfg: cfg}
}

func (m *Module) Name() string {
	return "calls"
}

// Service returns the call lifecycle service.
func (m *Module) Service() *Service {
	return m.service
}

// RunSweeper ends abandoned calls until ctx is done.
func (m *Module) RunSweeper(ctx context.Context) error {
	return m.service.RunSweeper(ctx, m.cfg.GetCallSweepInterval(), m.cfg.GetCallIdleTimeout())
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/calls"))
}

// RegistryTTL is how long an active call hash outlives its last write.
func RegistryTTL(cfg config.CallConfig) time.Duration {
	if ttl := cfg.GetCallIdleTimeout(); ttl > 0 {
		return ttl + time.Minute
	}
	return 2 * time.Hour
}

var _ apphttp.Module = (*Module)(nil)
