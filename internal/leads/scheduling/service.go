// Package scheduling handles callback requests for leads.
// This is a vertically sliced feature package containing service logic
// for scheduling, completing and cancelling callbacks.
package scheduling

import (
	"context"
	"errors"
	"strings"
	"time"

	"voice_sales_backend/internal/events"
	"voice_sales_backend/internal/leads/domain"
	"voice_sales_backend/internal/leads/repository"
	"voice_sales_backend/internal/leads/transport"
	"voice_sales_backend/platform/apperr"

	"github.com/google/uuid"
)

// Repository defines the data access interface needed by the scheduling service.
// This is a consumer-driven interface - only what scheduling needs.
type Repository interface {
	repository.LeadReader
	repository.LeadWriter
	repository.CallbackStore
}

// Service handles callback scheduling operations.
type Service struct {
	repo            Repository
	phones          domain.PhoneNormalizer
	eventBus        events.Bus
	defaultTimezone string
	now             func() time.Time
}

// New creates a new callback scheduling service.
func New(repo Repository, phones domain.PhoneNormalizer, eventBus events.Bus, defaultTimezone string) *Service {
	return &Service{
		repo:            repo,
		phones:          phones,
		eventBus:        eventBus,
		defaultTimezone: defaultTimezone,
		now:             time.Now,
	}
}

// layouts accepted for a resolvable preferred time, tried in order.
var layouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02T15:04"}

// ResolvePreferredTime turns free text into an instant when it is a
// recognised timestamp in loc. Anything else ("tomorrow morning") stays text.
// Instants are kept at whole seconds, the precision reminder tasks carry.
func ResolvePreferredTime(text string, loc *time.Location) *time.Time {
	text = strings.TrimSpace(text)
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			utc := t.UTC().Truncate(time.Second)
			return &utc
		}
	}
	return nil
}

// Schedule stores the lead's pending callback, replacing any earlier pending
// request, and moves the lead to scheduled when its lifecycle allows it.
func (s *Service) Schedule(ctx context.Context, rawPhone string, req transport.ScheduleCallbackRequest) (transport.CallbackResponse, error) {
	phone, err := domain.NormalizePhone(s.phones, rawPhone)
	if err != nil {
		return transport.CallbackResponse{}, err
	}

	preferred := strings.TrimSpace(req.PreferredTime)
	if preferred == "" {
		return transport.CallbackResponse{}, apperr.Validation("preferredTime is required")
	}

	tz := strings.TrimSpace(req.Timezone)
	if tz == "" {
		tz = s.defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return transport.CallbackResponse{}, apperr.Validation("unknown timezone").WithDetails(map[string]string{"timezone": tz})
	}

	scheduledAt := ResolvePreferredTime(preferred, loc)
	if scheduledAt != nil && scheduledAt.Before(s.now()) {
		return transport.CallbackResponse{}, apperr.Validation("cannot schedule a callback in the past")
	}

	var reason *string
	if req.Reason != nil {
		if r := strings.TrimSpace(*req.Reason); r != "" {
			reason = &r
		}
	}

	now := s.now().UTC()
	var oldStatus domain.Status
	lead, err := s.repo.Upsert(ctx, phone, func(lead *domain.Lead, _ bool) error {
		oldStatus = lead.Status
		if domain.CanTransition(lead.Status, domain.StatusScheduled) {
			lead.Status = domain.StatusScheduled
		}
		lead.LastContactAt = &now
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return transport.CallbackResponse{}, ctxErr
		}
		return transport.CallbackResponse{}, apperr.Persistence("lead could not be saved", err).WithOp("scheduling.Schedule")
	}

	cb, _, err := s.repo.UpsertCallback(ctx, repository.UpsertCallbackParams{
		LeadID:        lead.ID,
		PreferredTime: preferred,
		ScheduledAt:   scheduledAt,
		Timezone:      tz,
		Reason:        reason,
	})
	if err != nil {
		return transport.CallbackResponse{}, apperr.Persistence("callback could not be saved", err).WithOp("scheduling.Schedule")
	}

	if oldStatus != lead.Status {
		s.eventBus.Publish(ctx, events.LeadStatusChanged{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			Phone:     lead.Phone,
			OldStatus: string(oldStatus),
			NewStatus: string(lead.Status),
		})
	}

	s.eventBus.Publish(ctx, events.CallbackScheduled{
		BaseEvent:     events.NewBaseEvent(),
		CallbackID:    cb.ID,
		LeadID:        lead.ID,
		Phone:         lead.Phone,
		PreferredTime: cb.PreferredTime,
		ScheduledAt:   cb.ScheduledAt,
		Timezone:      cb.Timezone,
		Reason:        derefString(cb.Reason),
	})

	return transport.ToCallbackResponse(cb), nil
}

// List returns every callback recorded for a phone, newest first.
func (s *Service) List(ctx context.Context, rawPhone string) (transport.CallbacksResponse, error) {
	phone, err := domain.NormalizePhone(s.phones, rawPhone)
	if err != nil {
		return transport.CallbacksResponse{}, err
	}

	lead, err := s.repo.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.CallbacksResponse{}, apperr.NotFound("lead not found")
		}
		return transport.CallbacksResponse{}, err
	}

	callbacks, err := s.repo.ListCallbacks(ctx, lead.ID)
	if err != nil {
		return transport.CallbacksResponse{}, err
	}

	items := make([]transport.CallbackResponse, len(callbacks))
	for i, cb := range callbacks {
		items[i] = transport.ToCallbackResponse(cb)
	}
	return transport.CallbacksResponse{Items: items}, nil
}

// Get returns one callback.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (transport.CallbackResponse, error) {
	cb, err := s.repo.GetCallback(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCallbackNotFound) {
			return transport.CallbackResponse{}, apperr.NotFound("callback not found")
		}
		return transport.CallbackResponse{}, err
	}
	return transport.ToCallbackResponse(cb), nil
}

// Complete marks a pending callback as done.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (transport.CallbackResponse, error) {
	return s.transition(ctx, id, domain.CallbackCompleted)
}

// Cancel withdraws a pending callback.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (transport.CallbackResponse, error) {
	return s.transition(ctx, id, domain.CallbackCancelled)
}

// UpdateStatus applies a status change requested over HTTP.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, req transport.UpdateCallbackStatusRequest) (transport.CallbackResponse, error) {
	status, ok := domain.ParseCallbackStatus(req.Status)
	if !ok || status == domain.CallbackPending {
		return transport.CallbackResponse{}, apperr.Validation("status must be completed or cancelled")
	}
	return s.transition(ctx, id, status)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to domain.CallbackStatus) (transport.CallbackResponse, error) {
	cb, err := s.repo.UpdateCallbackStatus(ctx, id, domain.CallbackPending, to)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCallbackNotFound):
			return transport.CallbackResponse{}, apperr.NotFound("callback not found")
		case errors.Is(err, repository.ErrCallbackStateChanged):
			return transport.CallbackResponse{}, apperr.Conflict("callback is no longer pending")
		default:
			return transport.CallbackResponse{}, err
		}
	}
	return transport.ToCallbackResponse(cb), nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
