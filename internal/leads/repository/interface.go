package repository

import (
	"context"
	"errors"
	"time"

	"voice_sales_backend/internal/leads/domain"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no lead exists for a phone or ID.
	ErrNotFound = errors.New("lead not found")
	// ErrCallbackNotFound is returned when a callback ID is unknown.
	ErrCallbackNotFound = errors.New("callback not found")
	// ErrCallbackStateChanged is returned when a conditional callback status update lost a race.
	ErrCallbackStateChanged = errors.New("callback status changed concurrently")
)

// Mutator edits a lead inside the store's per-phone critical section.
// created is true when the lead did not exist before this call.
// Returning an error aborts the write.
type Mutator func(lead *domain.Lead, created bool) error

// =====================================
// Segregated Interfaces (Interface Segregation Principle)
// =====================================

// LeadReader provides read-only access to lead data.
type LeadReader interface {
	GetByPhone(ctx context.Context, phone string) (domain.Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error)
}

// LeadWriter performs read-modify-write on a lead. The lead is created when
// the phone is unseen. Writes for one phone are serialized; writes for
// different phones never wait on each other.
type LeadWriter interface {
	Upsert(ctx context.Context, phone string, mutate Mutator) (domain.Lead, error)
}

// NoteStore manages conversation notes.
type NoteStore interface {
	AppendNote(ctx context.Context, params AppendNoteParams) (domain.ConversationNote, error)
	ListNotes(ctx context.Context, leadID uuid.UUID, limit int) ([]domain.ConversationNote, error)
}

// CallbackStore manages callback requests. A lead has at most one pending callback.
type CallbackStore interface {
	// UpsertCallback replaces the lead's pending callback or inserts a new one.
	UpsertCallback(ctx context.Context, params UpsertCallbackParams) (domain.Callback, bool, error)
	GetCallback(ctx context.Context, id uuid.UUID) (domain.Callback, error)
	ListCallbacks(ctx context.Context, leadID uuid.UUID) ([]domain.Callback, error)
	// UpdateCallbackStatus moves a callback from one status to another, failing
	// with ErrCallbackStateChanged when the current status is not from.
	UpdateCallbackStatus(ctx context.Context, id uuid.UUID, from, to domain.CallbackStatus) (domain.Callback, error)
}

// LeadStore is the full persistence surface used by the leads module.
type LeadStore interface {
	LeadReader
	LeadWriter
	NoteStore
	CallbackStore
}

// AppendNoteParams describes a note to store.
type AppendNoteParams struct {
	LeadID  uuid.UUID
	Type    domain.NoteType
	Content string
	CallID  *string
}

// UpsertCallbackParams describes a callback request.
type UpsertCallbackParams struct {
	LeadID        uuid.UUID
	PreferredTime string
	ScheduledAt   *time.Time
	Timezone      string
	Reason        *string
}
