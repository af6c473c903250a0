package calls

import (
	"context"
	"strings"
	"time"

	"voice_sales_backend/internal/callmetrics"
	"voice_sales_backend/internal/events"
	"voice_sales_backend/internal/leads/domain"
	"voice_sales_backend/platform/apperr"
	"voice_sales_backend/platform/logger"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

// StartRequest opens a call. CallID is generated when empty.
type StartRequest struct {
	CallID string `json:"callId,omitempty" validate:"max=100"`
	Phone  string `json:"phone,omitempty" validate:"max=32"`
}

type StartResponse struct {
	CallID    string                       `json:"callId"`
	Phone     string                       `json:"phone,omitempty"`
	StartedAt time.Time                    `json:"startedAt"`
	Tools     []*genai.FunctionDeclaration `json:"tools"`
}

// UsageRequest adds model and speech usage to a call.
type UsageRequest struct {
	STTSeconds      float64 `json:"sttSeconds" validate:"gte=0"`
	LLMInputTokens  int64   `json:"llmInputTokens" validate:"gte=0"`
	LLMOutputTokens int64   `json:"llmOutputTokens" validate:"gte=0"`
	TTSCharacters   int64   `json:"ttsCharacters" validate:"gte=0"`
}

// LatencyRequest records how long the caller waited for a response.
type LatencyRequest struct {
	Seconds float64 `json:"seconds" validate:"gte=0"`
}

// Service manages the lifecycle of live calls.
type Service struct {
	tracker    *callmetrics.Tracker
	dispatcher *Dispatcher
	registry   *Registry
	phones     domain.PhoneNormalizer
	bus        events.Bus
	log        *logger.Logger
}

// NewService wires the call lifecycle. registry may be nil when Redis is not configured.
func NewService(tracker *callmetrics.Tracker, dispatcher *Dispatcher, registry *Registry, phones domain.PhoneNormalizer, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		tracker:    tracker,
		dispatcher: dispatcher,
		registry:   registry,
		phones:     phones,
		bus:        bus,
		log:        log,
	}
}

// Start opens a metrics session for the call and registers it as active.
func (s *Service) Start(ctx context.Context, req StartRequest) (StartResponse, error) {
	callID := strings.TrimSpace(req.CallID)
	if callID == "" {
		callID = uuid.NewString()
	}

	var phone string
	if raw := strings.TrimSpace(req.Phone); raw != "" {
		normalized, err := domain.NormalizePhone(s.phones, raw)
		if err != nil {
			return StartResponse{}, err
		}
		phone = normalized
	}

	session, err := s.tracker.Start(callID, phone)
	if err != nil {
		return StartResponse{}, err
	}

	if s.registry != nil {
		if err := s.registry.Register(ctx, ActiveCall{CallID: callID, Phone: phone, StartedAt: session.StartedAt()}); err != nil {
			s.log.Warn("active call not mirrored", "call_id", callID, "error", err)
		}
	}

	s.log.Info("call started", "call_id", callID, "phone", phone)
	return StartResponse{CallID: callID, Phone: phone, StartedAt: session.StartedAt(), Tools: Declarations()}, nil
}

// End finalizes the call and returns its summary.
func (s *Service) End(ctx context.Context, callID string) (callmetrics.Summary, error) {
	summary, err := s.tracker.End(ctx, callID)
	if err != nil {
		return callmetrics.Summary{}, err
	}
	s.afterEnd(ctx, summary)
	return summary, nil
}

func (s *Service) afterEnd(ctx context.Context, summary callmetrics.Summary) {
	s.dispatcher.Forget(summary.CallID)
	if s.registry != nil {
		if err := s.registry.Remove(ctx, summary.CallID); err != nil {
			s.log.Warn("active call not removed", "call_id", summary.CallID, "error", err)
		}
	}
	s.bus.Publish(ctx, events.CallEnded{
		BaseEvent:    events.NewBaseEvent(),
		CallID:       summary.CallID,
		Phone:        summary.Phone,
		DurationSecs: summary.DurationSeconds,
		TotalCost:    summary.Total.String(),
	})
}

// SweepIdle ends calls with no activity for longer than idle.
func (s *Service) SweepIdle(ctx context.Context, idle time.Duration) int {
	ended := s.tracker.Expire(ctx, idle)
	for _, id := range ended {
		s.dispatcher.Forget(id)
		if s.registry != nil {
			if err := s.registry.Remove(ctx, id); err != nil {
				s.log.Warn("active call not removed", "call_id", id, "error", err)
			}
		}
		s.log.Warn("idle call ended", "call_id", id)
	}
	return len(ended)
}

// RunSweeper calls SweepIdle every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval, idle time.Duration) error {
	if interval <= 0 || idle <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SweepIdle(ctx, idle)
		}
	}
}

func (s *Service) RecordUsage(ctx context.Context, callID string, req UsageRequest) (callmetrics.Summary, error) {
	session, err := s.tracker.Get(callID)
	if err != nil {
		return callmetrics.Summary{}, err
	}
	if err := session.RecordModelUsage(req.LLMInputTokens, req.LLMOutputTokens); err != nil {
		return callmetrics.Summary{}, err
	}
	if err := session.RecordSpeechUsage(req.STTSeconds, req.TTSCharacters); err != nil {
		return callmetrics.Summary{}, err
	}
	s.touch(ctx, callID)
	return session.Snapshot(), nil
}

func (s *Service) RecordLatency(ctx context.Context, callID string, req LatencyRequest) (callmetrics.Summary, error) {
	session, err := s.tracker.Get(callID)
	if err != nil {
		return callmetrics.Summary{}, err
	}
	if err := session.RecordUserTurnLatency(req.Seconds); err != nil {
		return callmetrics.Summary{}, err
	}
	s.touch(ctx, callID)
	return session.Snapshot(), nil
}

// touch keeps the mirrored call from expiring while it is in use.
func (s *Service) touch(ctx context.Context, callID string) {
	if s.registry == nil {
		return
	}
	if err := s.registry.Touch(ctx, callID); err != nil {
		s.log.Warn("active call expiry not refreshed", "call_id", callID, "error", err)
	}
}

// Metrics returns the running summary of an active call.
func (s *Service) Metrics(callID string) (callmetrics.Summary, error) {
	session, err := s.tracker.Get(callID)
	if err != nil {
		return callmetrics.Summary{}, err
	}
	return session.Snapshot(), nil
}

func (s *Service) Stats() callmetrics.Stats {
	return s.tracker.Stats()
}

// Active lists live calls across instances when Redis is configured, and
// this instance's calls otherwise.
func (s *Service) Active(ctx context.Context) ([]ActiveCall, error) {
	if s.registry != nil {
		calls, err := s.registry.List(ctx)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "active calls unavailable", err).WithOp("calls.Active")
		}
		return calls, nil
	}

	ids := s.tracker.Active()
	calls := make([]ActiveCall, 0, len(ids))
	for _, id := range ids {
		session, err := s.tracker.Get(id)
		if err != nil {
			continue
		}
		snapshot := session.Snapshot()
		calls = append(calls, ActiveCall{CallID: id, Phone: snapshot.Phone, StartedAt: snapshot.StartedAt})
	}
	return calls, nil
}

// Dispatch runs a function call for an active call.
func (s *Service) Dispatch(ctx context.Context, callID string, call *genai.FunctionCall) (*genai.FunctionResponse, error) {
	if _, err := s.tracker.Get(callID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(call.Name) == "" {
		return nil, apperr.Validation("tool name is required")
	}
	resp := s.dispatcher.Dispatch(ctx, callID, call)
	s.touch(ctx, callID)
	return resp, nil
}
