// Package qualification turns the facts collected during a call into a
// persisted tier, score and next action for the caller.
package qualification

import (
	"context"
	"strings"
	"time"

	"voice_sales_backend/internal/events"
	"voice_sales_backend/internal/leads/domain"
	"voice_sales_backend/internal/leads/repository"
	"voice_sales_backend/internal/leads/scoring"
	"voice_sales_backend/internal/leads/transport"
	"voice_sales_backend/internal/policy"
	"voice_sales_backend/platform/apperr"
	"voice_sales_backend/platform/logger"
	"voice_sales_backend/platform/sanitize"
)

// Store is the slice of the lead store qualification needs.
type Store interface {
	repository.LeadWriter
	AppendNote(ctx context.Context, params repository.AppendNoteParams) (domain.ConversationNote, error)
}

// Service scores callers and records the outcome on their lead.
type Service struct {
	store  Store
	phones domain.PhoneNormalizer
	table  policy.ScoringTable
	bus    events.Bus
	log    *logger.Logger
	now    func() time.Time
}

// New creates a qualification service.
func New(store Store, phones domain.PhoneNormalizer, table policy.ScoringTable, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store:  store,
		phones: phones,
		table:  table,
		bus:    bus,
		log:    log,
		now:    time.Now,
	}
}

// Qualify scores the caller and upserts the lead.
//
// The decision is computed before any I/O. When the write fails the decision
// is still returned, with Persisted=false, together with a persistence error.
// A context cancelled before the write discards the decision.
func (s *Service) Qualify(ctx context.Context, req transport.QualifyLeadRequest) (transport.QualifyLeadResponse, error) {
	phone, err := domain.NormalizePhone(s.phones, req.Phone)
	if err != nil {
		return transport.QualifyLeadResponse{}, err
	}
	experience, ok := domain.ParseExperience(req.Experience)
	if !ok {
		return transport.QualifyLeadResponse{}, apperr.Validation("tradingExperience must be one of none, beginner, intermediate, experienced")
	}
	urgency, ok := domain.ParseUrgency(req.Urgency)
	if !ok {
		return transport.QualifyLeadResponse{}, apperr.Validation("urgency must be one of low, medium, high")
	}
	if req.CapitalUSD != nil && *req.CapitalUSD < 0 {
		return transport.QualifyLeadResponse{}, apperr.Validation("capitalAvailable must not be negative")
	}

	result := scoring.Score(s.table, scoring.Signals{
		CapitalUSD:     req.CapitalUSD,
		Experience:     experience,
		Urgency:        urgency,
		PainPointCount: countNonBlank(req.PainPoints),
	})

	resp := transport.QualifyLeadResponse{
		Phone:             phone,
		Tier:              result.Tier,
		Score:             result.Score,
		RecommendedAction: result.Action,
		ScoreVersion:      result.Version,
		Factors:           result.Factors,
	}

	if err := ctx.Err(); err != nil {
		return transport.QualifyLeadResponse{}, err
	}

	now := s.now().UTC()
	lead, err := s.store.Upsert(ctx, phone, func(lead *domain.Lead, _ bool) error {
		mergeString(&lead.Name, req.Name)
		mergeString(&lead.Email, req.Email)
		if req.CapitalUSD != nil {
			capital := *req.CapitalUSD
			lead.CapitalUSD = &capital
		}
		lead.Experience = &experience
		lead.Urgency = &urgency
		lead.Tier = result.Tier
		lead.Score = result.Score
		version := result.Version
		lead.ScoreVersion = &version
		if domain.CanTransition(lead.Status, domain.StatusQualified) {
			lead.Status = domain.StatusQualified
		}
		lead.LastContactAt = &now
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return transport.QualifyLeadResponse{}, ctxErr
		}
		s.log.DatabaseError("qualify lead", err)
		resp.PersistenceError = "lead could not be saved"
		return resp, apperr.Persistence("lead could not be saved", err).WithOp("qualification.Qualify")
	}

	resp.LeadID = &lead.ID
	resp.Persisted = true

	if broker := trimmed(req.CurrentBroker); broker != "" {
		params := repository.AppendNoteParams{
			LeadID:  lead.ID,
			Type:    domain.NoteOther,
			Content: "current broker: " + broker,
			CallID:  optionalString(req.CallID),
		}
		if _, err := s.store.AppendNote(ctx, params); err != nil {
			s.log.Warn("failed to save current broker note", "leadId", lead.ID, "error", err)
		}
	}

	s.bus.Publish(ctx, events.LeadQualified{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		Phone:     lead.Phone,
		Name:      derefString(lead.Name),
		Tier:      string(lead.Tier),
		Score:     lead.Score,
		Action:    string(result.Action),
		CallID:    req.CallID,
	})

	s.log.Info("lead qualified", "leadId", lead.ID, "tier", lead.Tier, "score", lead.Score, "version", lead.Version)
	return resp, nil
}

func countNonBlank(items []string) int {
	n := 0
	for _, item := range items {
		if strings.TrimSpace(item) != "" {
			n++
		}
	}
	return n
}

// mergeString overwrites dst only when the caller supplied a non-blank value.
func mergeString(dst **string, src *string) {
	if v := trimmed(src); v != "" {
		*dst = &v
	}
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return sanitize.Text(*s)
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
