// Package management handles lead lookups and lifecycle changes.
// This is a vertically sliced feature package containing service logic
// for reading a lead, assembling its call history and moving its status.
package management

import (
	"context"
	"errors"
	"fmt"

	"voice_sales_backend/internal/events"
	"voice_sales_backend/internal/leads/domain"
	"voice_sales_backend/internal/leads/repository"
	"voice_sales_backend/internal/leads/transport"
	"voice_sales_backend/platform/apperr"

	"github.com/google/uuid"
)

const historyNoteLimit = 50

// Repository defines the data access interface needed by the management service.
// This is a consumer-driven interface - only what management needs.
type Repository interface {
	repository.LeadReader
	repository.LeadWriter
	ListNotes(ctx context.Context, leadID uuid.UUID, limit int) ([]domain.ConversationNote, error)
	ListCallbacks(ctx context.Context, leadID uuid.UUID) ([]domain.Callback, error)
}

// Service handles lead management operations.
type Service struct {
	repo     Repository
	phones   domain.PhoneNormalizer
	eventBus events.Bus
}

// New creates a new lead management service.
func New(repo Repository, phones domain.PhoneNormalizer, eventBus events.Bus) *Service {
	return &Service{repo: repo, phones: phones, eventBus: eventBus}
}

// GetByPhone retrieves a lead by its phone number.
func (s *Service) GetByPhone(ctx context.Context, rawPhone string) (transport.LeadResponse, error) {
	phone, err := domain.NormalizePhone(s.phones, rawPhone)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	lead, err := s.repo.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, apperr.NotFound("lead not found")
		}
		return transport.LeadResponse{}, err
	}
	return transport.ToLeadResponse(lead), nil
}

// History summarises what is known about a caller before the conversation
// starts. An unknown phone is not an error: Found is false.
func (s *Service) History(ctx context.Context, rawPhone string) (transport.LeadHistoryResponse, error) {
	resp := transport.LeadHistoryResponse{
		PainPoints:       []string{},
		Objections:       []string{},
		Preferences:      []string{},
		OtherNotes:       []string{},
		PendingCallbacks: []transport.CallbackResponse{},
	}

	phone, err := domain.NormalizePhone(s.phones, rawPhone)
	if err != nil {
		return resp, err
	}

	lead, err := s.repo.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return resp, nil
		}
		return resp, err
	}

	notes, err := s.repo.ListNotes(ctx, lead.ID, historyNoteLimit)
	if err != nil {
		return resp, err
	}
	callbacks, err := s.repo.ListCallbacks(ctx, lead.ID)
	if err != nil {
		return resp, err
	}

	leadResp := transport.ToLeadResponse(lead)
	resp.Found = true
	resp.Lead = &leadResp
	resp.NotesCount = len(notes)

	for _, note := range notes {
		switch note.Type {
		case domain.NotePainPoint:
			resp.PainPoints = append(resp.PainPoints, note.Content)
		case domain.NoteObjection:
			resp.Objections = append(resp.Objections, note.Content)
		case domain.NotePreference:
			resp.Preferences = append(resp.Preferences, note.Content)
		default:
			resp.OtherNotes = append(resp.OtherNotes, note.Content)
		}
	}
	for _, cb := range callbacks {
		if cb.Status == domain.CallbackPending {
			resp.PendingCallbacks = append(resp.PendingCallbacks, transport.ToCallbackResponse(cb))
		}
	}

	return resp, nil
}

// UpdateStatus moves an existing lead through its lifecycle.
func (s *Service) UpdateStatus(ctx context.Context, rawPhone string, req transport.UpdateStatusRequest) (transport.LeadResponse, error) {
	phone, err := domain.NormalizePhone(s.phones, rawPhone)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	target, ok := domain.ParseStatus(req.Status)
	if !ok {
		return transport.LeadResponse{}, apperr.Validation("invalid lead status")
	}

	var oldStatus domain.Status
	lead, err := s.repo.Upsert(ctx, phone, func(lead *domain.Lead, created bool) error {
		if created {
			return apperr.NotFound("lead not found")
		}
		oldStatus = lead.Status
		if lead.Status == target {
			return nil
		}
		if !domain.CanTransition(lead.Status, target) {
			return apperr.Conflict(fmt.Sprintf("lead cannot move from %s to %s", lead.Status, target))
		}
		lead.Status = target
		return nil
	})
	if err != nil {
		return transport.LeadResponse{}, err
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

	return transport.ToLeadResponse(lead), nil
}
