// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"voice_sales_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Domain Events
// =============================================================================

// LeadQualified is published after a qualification decision has been committed.
type LeadQualified struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	Phone  string    `json:"phone"`
	Name   string    `json:"name,omitempty"`
	Tier   string    `json:"tier"`
	Score  int       `json:"score"`
	Action string    `json:"action"`
	CallID string    `json:"callId,omitempty"`
}

func (e LeadQualified) EventName() string { return "leads.qualified" }

// LeadStatusChanged is published when a lead moves through its lifecycle.
type LeadStatusChanged struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	Phone     string    `json:"phone"`
	OldStatus string    `json:"oldStatus"`
	NewStatus string    `json:"newStatus"`
}

func (e LeadStatusChanged) EventName() string { return "leads.status_changed" }

// CallbackScheduled is published when a callback request is stored.
type CallbackScheduled struct {
	BaseEvent
	CallbackID    uuid.UUID  `json:"callbackId"`
	LeadID        uuid.UUID  `json:"leadId"`
	Phone         string     `json:"phone"`
	PreferredTime string     `json:"preferredTime"`
	ScheduledAt   *time.Time `json:"scheduledAt,omitempty"`
	Timezone      string     `json:"timezone"`
	Reason        string     `json:"reason,omitempty"`
}

func (e CallbackScheduled) EventName() string { return "callbacks.scheduled" }

// CallbackDue is published by the scheduler worker when a reminder fires.
// ScheduledAt is the due time the reminder was created for.
type CallbackDue struct {
	BaseEvent
	CallbackID  uuid.UUID  `json:"callbackId"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
}

func (e CallbackDue) EventName() string { return "callbacks.due" }

// FollowUpDue is published by the scheduler worker when a COLD lead follow-up fires.
type FollowUpDue struct {
	BaseEvent
	Phone string `json:"phone"`
}

func (e FollowUpDue) EventName() string { return "leads.followup_due" }

// =============================================================================
// Call Domain Events
// =============================================================================

// CallEnded is published once per call after its metrics summary is produced.
type CallEnded struct {
	BaseEvent
	CallID       string  `json:"callId"`
	Phone        string  `json:"phone,omitempty"`
	DurationSecs float64 `json:"durationSeconds"`
	TotalCost    string  `json:"totalCost"`
}

func (e CallEnded) EventName() string { return "calls.ended" }
