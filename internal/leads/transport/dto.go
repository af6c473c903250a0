package transport

import (
	"time"

	"voice_sales_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// Request DTOs
type QualifyLeadRequest struct {
	Phone         string   `json:"phone" validate:"required,min=5,max=32"`
	Name          *string  `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Email         *string  `json:"email,omitempty" validate:"omitempty,email"`
	CapitalUSD    *float64 `json:"capitalAvailable,omitempty" validate:"omitempty,gte=0"`
	Experience    string   `json:"tradingExperience" validate:"required,max=40"`
	Urgency       string   `json:"urgency" validate:"required,max=40"`
	PainPoints    []string `json:"painPoints,omitempty" validate:"max=20,dive,min=1,max=2000"`
	CurrentBroker *string  `json:"currentBroker,omitempty" validate:"omitempty,max=200"`
	CallID        string   `json:"callId,omitempty" validate:"max=100"`
}

type CreateNoteRequest struct {
	Type    string `json:"noteType" validate:"required,max=40"`
	Content string `json:"content" validate:"required,max=2000"`
	CallID  string `json:"callId,omitempty" validate:"max=100"`
}

type ScheduleCallbackRequest struct {
	PreferredTime string  `json:"preferredTime" validate:"required,min=1,max=200"`
	Timezone      string  `json:"timezone,omitempty" validate:"max=64"`
	Reason        *string `json:"reason,omitempty" validate:"omitempty,max=2000"`
}

type UpdateCallbackStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=completed cancelled"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,max=40"`
}

// Response DTOs
type QualifyLeadResponse struct {
	LeadID            *uuid.UUID     `json:"leadId,omitempty"`
	Phone             string         `json:"phone"`
	Tier              domain.Tier    `json:"tier"`
	Score             int            `json:"score"`
	RecommendedAction domain.Action  `json:"recommendedAction"`
	ScoreVersion      string         `json:"scoreVersion"`
	Factors           map[string]int `json:"factors"`
	Persisted         bool           `json:"persisted"`
	PersistenceError  string         `json:"persistenceError,omitempty"`
}

type LeadResponse struct {
	ID            uuid.UUID          `json:"id"`
	Phone         string             `json:"phone"`
	Name          *string            `json:"name,omitempty"`
	Email         *string            `json:"email,omitempty"`
	Experience    *domain.Experience `json:"tradingExperience,omitempty"`
	CapitalUSD    *float64           `json:"capitalAvailable,omitempty"`
	Urgency       *domain.Urgency    `json:"urgency,omitempty"`
	Tier          domain.Tier        `json:"tier"`
	Score         int                `json:"score"`
	ScoreVersion  *string            `json:"scoreVersion,omitempty"`
	Status        domain.Status      `json:"status"`
	Source        string             `json:"source"`
	Version       int64              `json:"version"`
	LastContactAt *time.Time         `json:"lastContactAt,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

type NoteResponse struct {
	ID        uuid.UUID       `json:"id"`
	LeadID    uuid.UUID       `json:"leadId"`
	Type      domain.NoteType `json:"noteType"`
	Content   string          `json:"content"`
	CallID    *string         `json:"callId,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

type NotesResponse struct {
	Items []NoteResponse `json:"items"`
}

type CallbackResponse struct {
	ID            uuid.UUID             `json:"id"`
	LeadID        uuid.UUID             `json:"leadId"`
	PreferredTime string                `json:"preferredTime"`
	ScheduledAt   *time.Time            `json:"scheduledAt,omitempty"`
	Timezone      string                `json:"timezone"`
	Reason        *string               `json:"reason,omitempty"`
	Status        domain.CallbackStatus `json:"status"`
	CreatedAt     time.Time             `json:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

type CallbacksResponse struct {
	Items []CallbackResponse `json:"items"`
}

// LeadHistoryResponse is what the conversation driver sees at the start of a call.
type LeadHistoryResponse struct {
	Found            bool               `json:"found"`
	Lead             *LeadResponse      `json:"lead,omitempty"`
	PainPoints       []string           `json:"previousPainPoints"`
	Objections       []string           `json:"previousObjections"`
	Preferences      []string           `json:"preferences"`
	OtherNotes       []string           `json:"otherNotes"`
	PendingCallbacks []CallbackResponse `json:"pendingCallbacks"`
	NotesCount       int                `json:"notesCount"`
}

// Mappers

func ToLeadResponse(lead domain.Lead) LeadResponse {
	return LeadResponse{
		ID:            lead.ID,
		Phone:         lead.Phone,
		Name:          lead.Name,
		Email:         lead.Email,
		Experience:    lead.Experience,
		CapitalUSD:    lead.CapitalUSD,
		Urgency:       lead.Urgency,
		Tier:          lead.Tier,
		Score:         lead.Score,
		ScoreVersion:  lead.ScoreVersion,
		Status:        lead.Status,
		Source:        lead.Source,
		Version:       lead.Version,
		LastContactAt: lead.LastContactAt,
		CreatedAt:     lead.CreatedAt,
		UpdatedAt:     lead.UpdatedAt,
	}
}

func ToNoteResponse(note domain.ConversationNote) NoteResponse {
	return NoteResponse{
		ID:        note.ID,
		LeadID:    note.LeadID,
		Type:      note.Type,
		Content:   note.Content,
		CallID:    note.CallID,
		CreatedAt: note.CreatedAt,
	}
}

func ToCallbackResponse(cb domain.Callback) CallbackResponse {
	return CallbackResponse{
		ID:            cb.ID,
		LeadID:        cb.LeadID,
		PreferredTime: cb.PreferredTime,
		ScheduledAt:   cb.ScheduledAt,
		Timezone:      cb.Timezone,
		Reason:        cb.Reason,
		Status:        cb.Status,
		CreatedAt:     cb.CreatedAt,
		UpdatedAt:     cb.UpdatedAt,
	}
}
