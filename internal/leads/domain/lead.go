// Package domain holds the lead vocabulary shared by the qualification,
// notes, scheduling and recommendation slices.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Experience is the caller's self-reported trading experience.
type Experience string

const (
	ExperienceNone         Experience = "none"
	ExperienceBeginner     Experience = "beginner"
	ExperienceIntermediate Experience = "intermediate"
	ExperienceExperienced  Experience = "experienced"
)

// ExperienceLevels lists experience values from least to most experienced.
var ExperienceLevels = []Experience{ExperienceNone, ExperienceBeginner, ExperienceIntermediate, ExperienceExperienced}

var experienceAliases = map[string]Experience{
	"none":         ExperienceNone,
	"no":           ExperienceNone,
	"ninguna":      ExperienceNone,
	"beginner":     ExperienceBeginner,
	"novice":       ExperienceBeginner,
	"principiante": ExperienceBeginner,
	"intermediate": ExperienceIntermediate,
	"intermedio":   ExperienceIntermediate,
	"experienced":  ExperienceExperienced,
	"advanced":     ExperienceExperienced,
	"expert":       ExperienceExperienced,
	"avanzado":     ExperienceExperienced,
}

// ParseExperience maps free-form labels onto the Experience enum.
func ParseExperience(raw string) (Experience, bool) {
	exp, ok := experienceAliases[normalizeLabel(raw)]
	return exp, ok
}

// Rank orders experience levels; unknown values rank below none.
func (e Experience) Rank() int {
	for i, level := range ExperienceLevels {
		if level == e {
			return i
		}
	}
	return -1
}

// Urgency is how soon the caller intends to start trading.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// UrgencyLevels lists urgency values from lowest to highest.
var UrgencyLevels = []Urgency{UrgencyLow, UrgencyMedium, UrgencyHigh}

var urgencyAliases = map[string]Urgency{
	"low":     UrgencyLow,
	"baja":    UrgencyLow,
	"medium":  UrgencyMedium,
	"media":   UrgencyMedium,
	"high":    UrgencyHigh,
	"alta":    UrgencyHigh,
	"urgent":  UrgencyHigh,
	"urgente": UrgencyHigh,
}

// ParseUrgency maps free-form labels onto the Urgency enum.
func ParseUrgency(raw string) (Urgency, bool) {
	u, ok := urgencyAliases[normalizeLabel(raw)]
	return u, ok
}

// Tier is the qualification bucket derived from the score.
type Tier string

const (
	TierHot   Tier = "HOT"
	TierWarm  Tier = "WARM"
	TierCold  Tier = "COLD"
	TierUnset Tier = "unset"
)

// Action is the next step the conversation driver should take.
type Action string

const (
	ActionImmediateHandoff Action = "immediate_handoff"
	ActionScheduleCallback Action = "schedule_callback"
	ActionAsyncFollowUp    Action = "async_followup"
)

// ActionFor returns the recommended action for a tier.
func ActionFor(t Tier) Action {
	switch t {
	case TierHot:
		return ActionImmediateHandoff
	case TierWarm:
		return ActionScheduleCallback
	default:
		return ActionAsyncFollowUp
	}
}

// Status is the lead lifecycle state.
type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusQualified Status = "qualified"
	StatusScheduled Status = "scheduled"
	StatusConverted Status = "converted"
	StatusLost      Status = "lost"
)

var statusTransitions = map[Status]map[Status]bool{
	StatusNew:       {StatusContacted: true, StatusQualified: true, StatusScheduled: true, StatusLost: true},
	StatusContacted: {StatusQualified: true, StatusScheduled: true, StatusLost: true},
	StatusQualified: {StatusQualified: true, StatusScheduled: true, StatusConverted: true, StatusLost: true},
	StatusScheduled: {StatusQualified: true, StatusScheduled: true, StatusConverted: true, StatusLost: true},
	StatusConverted: {},
	StatusLost:      {StatusContacted: true, StatusQualified: true},
}

// ParseStatus validates a lifecycle status.
func ParseStatus(raw string) (Status, bool) {
	s := Status(normalizeLabel(raw))
	_, ok := statusTransitions[s]
	return s, ok
}

// CanTransition reports whether a lead may move from one status to another.
func CanTransition(from, to Status) bool {
	return statusTransitions[from][to]
}

// NoteType classifies a conversation note.
type NoteType string

const (
	NotePainPoint  NoteType = "pain_point"
	NoteObjection  NoteType = "objection"
	NotePreference NoteType = "preference"
	NoteOther      NoteType = "other"
)

var noteTypeAliases = map[string]NoteType{
	"pain_point":         NotePainPoint,
	"painpoint":          NotePainPoint,
	"objection":          NoteObjection,
	"preference":         NotePreference,
	"interest":           NotePreference,
	"trading_preference": NotePreference,
	"other":              NoteOther,
	"current_broker":     NoteOther,
	"budget":             NoteOther,
	"timeline":           NoteOther,
}

// ParseNoteType maps note labels onto NoteType.
func ParseNoteType(raw string) (NoteType, bool) {
	nt, ok := noteTypeAliases[normalizeLabel(raw)]
	return nt, ok
}

// CallbackStatus is the state of a callback request.
type CallbackStatus string

const (
	CallbackPending   CallbackStatus = "pending"
	CallbackCompleted CallbackStatus = "completed"
	CallbackCancelled CallbackStatus = "cancelled"
)

// ParseCallbackStatus validates a callback status.
func ParseCallbackStatus(raw string) (CallbackStatus, bool) {
	switch s := CallbackStatus(normalizeLabel(raw)); s {
	case CallbackPending, CallbackCompleted, CallbackCancelled:
		return s, true
	default:
		return "", false
	}
}

// Lead is the aggregate root keyed by E.164 phone.
type Lead struct {
	ID            uuid.UUID
	Phone         string
	Name          *string
	Email         *string
	Experience    *Experience
	CapitalUSD    *float64
	Urgency       *Urgency
	Tier          Tier
	Score         int
	ScoreVersion  *string
	Status        Status
	Source        string
	Version       int64
	LastContactAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewLead returns the minimal record created the first time a phone is seen.
func NewLead(phone string, now time.Time) Lead {
	return Lead{
		ID:        uuid.New(),
		Phone:     phone,
		Tier:      TierUnset,
		Status:    StatusNew,
		Source:    "voice_call",
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ConversationNote is an append-only observation captured during a call.
type ConversationNote struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	Type      NoteType
	Content   string
	CallID    *string
	CreatedAt time.Time
}

// Callback is a request to call the lead back.
type Callback struct {
	ID            uuid.UUID
	LeadID        uuid.UUID
	PreferredTime string
	ScheduledAt   *time.Time
	Timezone      string
	Reason        *string
	Status        CallbackStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func normalizeLabel(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}
