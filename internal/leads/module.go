// Package leads provides the lead qualification bounded context module.
// This file defines the module that encapsulates all leads setup and route registration.
package leads

import (
	"voice_sales_backend/internal/events"
	apphttp "voice_sales_backend/internal/http"
	"voice_sales_backend/internal/leads/domain"
	"voice_sales_backend/internal/leads/handler"
	"voice_sales_backend/internal/leads/management"
	"voice_sales_backend/internal/leads/notes"
	"voice_sales_backend/internal/leads/qualification"
	"voice_sales_backend/internal/leads/repository"
	"voice_sales_backend/internal/leads/scheduling"
	"voice_sales_backend/internal/policy"
	"voice_sales_backend/platform/logger"
	"voice_sales_backend/platform/validator"
)

// Config is what the leads module reads from the application configuration.
type Config interface {
	GetDefaultTimezone() string
}

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler       *handler.Handler
	qualification *qualification.Service
	management    *management.Service
	scheduling    *scheduling.Service
	notes         *notes.Service
}

// NewModule creates and initializes the leads module with all its dependencies.
// store is the Postgres repository in production and the memory store in the simulator.
func NewModule(store repository.LeadStore, phones domain.PhoneNormalizer, tables *policy.Tables, eventBus events.Bus, val *validator.Validator, cfg Config, log *logger.Logger) *Module {
	// Create focused services (vertical slices)
	qualSvc := qualification.New(store, phones, tables.Scoring, eventBus, log)
	mgmtSvc := management.New(store, phones, eventBus)
	schedulingSvc := scheduling.New(store, phones, eventBus, cfg.GetDefaultTimezone())
	notesSvc := notes.New(store, phones)

	return &Module{
		handler:       handler.New(qualSvc, mgmtSvc, notesSvc, schedulingSvc, val),
		qualification: qualSvc,
		management:    mgmtSvc,
		scheduling:    schedulingSvc,
		notes:         notesSvc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// QualificationService returns the qualification service for the call tools.
func (m *Module) QualificationService() *qualification.Service {
	return m.qualification
}

// ManagementService returns the lead management service for external use.
func (m *Module) ManagementService() *management.Service {
	return m.management
}

// SchedulingService returns the callback scheduling service for external use.
func (m *Module) SchedulingService() *scheduling.Service {
	return m.scheduling
}

// NotesService returns the notes service for external use.
func (m *Module) NotesService() *notes.Service {
	return m.notes
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// All leads routes require a driver token
	m.handler.RegisterRoutes(ctx.Protected.Group("/leads"))
	m.handler.RegisterCallbackRoutes(ctx.Protected.Group("/callbacks"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
