// Package notes handles conversation note operations.
// This is a vertically sliced feature package containing service logic
// for appending and listing the observations captured during calls.
package notes

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"voice_sales_backend/internal/leads/domain"
	"voice_sales_backend/internal/leads/repository"
	"voice_sales_backend/internal/leads/transport"
	"voice_sales_backend/platform/apperr"
	"voice_sales_backend/platform/sanitize"
)

const maxNoteLength = 2000

// Repository defines the data access interface needed by the notes service.
// This is a consumer-driven interface - only what notes needs.
type Repository interface {
	GetByPhone(ctx context.Context, phone string) (domain.Lead, error)
	repository.LeadWriter
	repository.NoteStore
}

// Service handles conversation note operations.
type Service struct {
	repo   Repository
	phones domain.PhoneNormalizer
	now    func() time.Time
}

// New creates a new notes service.
func New(repo Repository, phones domain.PhoneNormalizer) *Service {
	return &Service{repo: repo, phones: phones, now: time.Now}
}

// Add appends a note to the caller's lead. A phone seen for the first time
// gets a minimal lead so the observation is never lost.
func (s *Service) Add(ctx context.Context, rawPhone string, req transport.CreateNoteRequest) (transport.NoteResponse, error) {
	phone, err := domain.NormalizePhone(s.phones, rawPhone)
	if err != nil {
		return transport.NoteResponse{}, err
	}

	content := sanitize.Text(req.Content)
	if content == "" {
		return transport.NoteResponse{}, apperr.Validation("note content must be between 1 and 2000 characters")
	}

	noteType, ok := domain.ParseNoteType(req.Type)
	if !ok {
		return transport.NoteResponse{}, apperr.Validation("invalid note type")
	}
	if noteType == domain.NoteOther && !strings.EqualFold(strings.TrimSpace(req.Type), string(domain.NoteOther)) {
		// Keep the original label so history still distinguishes budget from timeline.
		content = strings.ToLower(strings.TrimSpace(req.Type)) + ": " + content
	}
	// The stored text, label included, is what the column limit applies to.
	if utf8.RuneCountInString(content) > maxNoteLength {
		return transport.NoteResponse{}, apperr.Validation("note content must be between 1 and 2000 characters")
	}

	lead, err := s.touch(ctx, phone)
	if err != nil {
		return transport.NoteResponse{}, err
	}

	var callID *string
	if id := strings.TrimSpace(req.CallID); id != "" {
		callID = &id
	}

	note, err := s.repo.AppendNote(ctx, repository.AppendNoteParams{
		LeadID:  lead.ID,
		Type:    noteType,
		Content: content,
		CallID:  callID,
	})
	if err != nil {
		return transport.NoteResponse{}, apperr.Persistence("note could not be saved", err).WithOp("notes.Add")
	}

	return transport.ToNoteResponse(note), nil
}

// List retrieves the newest notes for a phone.
func (s *Service) List(ctx context.Context, rawPhone string, limit int) (transport.NotesResponse, error) {
	phone, err := domain.NormalizePhone(s.phones, rawPhone)
	if err != nil {
		return transport.NotesResponse{}, err
	}

	lead, err := s.repo.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.NotesResponse{}, apperr.NotFound("lead not found")
		}
		return transport.NotesResponse{}, err
	}

	notesList, err := s.repo.ListNotes(ctx, lead.ID, limit)
	if err != nil {
		return transport.NotesResponse{}, err
	}

	items := make([]transport.NoteResponse, len(notesList))
	for i, note := range notesList {
		items[i] = transport.ToNoteResponse(note)
	}

	return transport.NotesResponse{Items: items}, nil
}

// touch creates the lead if needed and stamps the contact time.
func (s *Service) touch(ctx context.Context, phone string) (domain.Lead, error) {
	now := s.now().UTC()
	lead, err := s.repo.Upsert(ctx, phone, func(lead *domain.Lead, _ bool) error {
		lead.LastContactAt = &now
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Lead{}, ctxErr
		}
		return domain.Lead{}, apperr.Persistence("lead could not be saved", err).WithOp("notes.touch")
	}
	return lead, nil
}
