package calls

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"voice_sales_backend/internal/accounts"
	"voice_sales_backend/internal/callmetrics"
	"voice_sales_backend/internal/knowledge"
	"voice_sales_backend/internal/leads/domain"
	"voice_sales_backend/internal/leads/transport"
	"voice_sales_backend/platform/apperr"
	"voice_sales_backend/platform/logger"

	"google.golang.org/genai"
)

type HistoryReader interface {
	History(ctx context.Context, rawPhone string) (transport.LeadHistoryResponse, error)
}

type Qualifier interface {
	Qualify(ctx context.Context, req transport.QualifyLeadRequest) (transport.QualifyLeadResponse, error)
}

type NoteWriter interface {
	Add(ctx context.Context, rawPhone string, req transport.CreateNoteRequest) (transport.NoteResponse, error)
}

type CallbackScheduler interface {
	Schedule(ctx context.Context, rawPhone string, req transport.ScheduleCallbackRequest) (transport.CallbackResponse, error)
}

type Knowledge interface {
	Search(ctx context.Context, query string, k int) ([]knowledge.Snippet, error)
	Explain(concept string) (knowledge.Concept, error)
	MarketHours(market string) (knowledge.Market, error)
}

// Tools are the services the dispatcher calls into.
type Tools struct {
	History   HistoryReader
	Qualifier Qualifier
	Notes     NoteWriter
	Callbacks CallbackScheduler
	Accounts  *accounts.Engine
	Knowledge Knowledge
}

// Dispatcher executes function calls for live calls. Calls for one call id
// run one at a time; different calls run in parallel.
type Dispatcher struct {
	tools   Tools
	tracker *callmetrics.Tracker
	log     *logger.Logger
	locks   sync.Map
	now     func() time.Time
}

func NewDispatcher(tools Tools, tracker *callmetrics.Tracker, log *logger.Logger) *Dispatcher {
	return &Dispatcher{tools: tools, tracker: tracker, log: log, now: time.Now}
}

func (d *Dispatcher) lock(callID string) func() {
	value, _ := d.locks.LoadOrStore(callID, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Forget drops the per-call lock once the call has ended.
func (d *Dispatcher) Forget(callID string) {
	d.locks.Delete(callID)
}

// Dispatch runs one function call and always returns a response. Failures
// become {"error": ..., "kind": ...} so the conversation can continue.
func (d *Dispatcher) Dispatch(ctx context.Context, callID string, call *genai.FunctionCall) *genai.FunctionResponse {
	unlock := d.lock(callID)
	defer unlock()

	start := d.now()
	result, err := d.run(ctx, callID, call.Name, args(call.Args))
	elapsed := d.now().Sub(start)

	d.log.ToolCall(callID, call.Name, elapsed, err)
	d.record(callID, call.Name, elapsed)

	response := &genai.FunctionResponse{ID: call.ID, Name: call.Name}
	if err != nil {
		response.Response = errorResponse(err)
		return response
	}
	response.Response = toResponseMap(result)
	return response
}

func (d *Dispatcher) record(callID, tool string, elapsed time.Duration) {
	if d.tracker == nil {
		return
	}
	session, err := d.tracker.Get(callID)
	if err != nil {
		return
	}
	if err := session.RecordToolCall(tool, elapsed); err != nil && !errors.Is(err, callmetrics.ErrSessionClosed) {
		d.log.Warn("tool call not recorded", "call_id", callID, "tool", tool, "error", err)
	}
}

func (d *Dispatcher) run(ctx context.Context, callID, name string, a args) (any, error) {
	switch name {
	case ToolGetLeadHistory:
		phone, err := a.requiredStr("phone")
		if err != nil {
			return nil, err
		}
		return d.tools.History.History(ctx, phone)

	case ToolQualifyLead:
		return d.qualify(ctx, callID, a)

	case ToolSaveNote:
		phone, err := a.requiredStr("phone")
		if err != nil {
			return nil, err
		}
		content, err := a.requiredStr("content")
		if err != nil {
			return nil, err
		}
		noteType := a.str("note_type")
		if noteType == "" {
			noteType = string(domain.NoteOther)
		}
		return d.tools.Notes.Add(ctx, phone, transport.CreateNoteRequest{Type: noteType, Content: content, CallID: callID})

	case ToolScheduleCallback:
		phone, err := a.requiredStr("phone")
		if err != nil {
			return nil, err
		}
		preferred, err := a.requiredStr("preferred_time")
		if err != nil {
			return nil, err
		}
		return d.tools.Callbacks.Schedule(ctx, phone, transport.ScheduleCallbackRequest{
			PreferredTime: preferred,
			Timezone:      a.str("timezone"),
			Reason:        a.optionalStr("reason"),
		})

	case ToolRecommendAccount:
		return d.recommend(a)

	case ToolEstimateCost:
		return d.estimate(a)

	case ToolSearchKnowledge:
		query, err := a.requiredStr("query")
		if err != nil {
			return nil, err
		}
		k, err := a.integer("k")
		if err != nil {
			return nil, err
		}
		limit := 0
		if k != nil {
			limit = *k
		}
		snippets, err := d.tools.Knowledge.Search(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"results": snippets, "found": len(snippets) > 0}, nil

	case ToolExplainConcept:
		concept, err := a.requiredStr("concept")
		if err != nil {
			return nil, err
		}
		return d.tools.Knowledge.Explain(concept)

	case ToolMarketHours:
		return d.tools.Knowledge.MarketHours(a.str("market"))

	default:
		return nil, apperr.Validation("unknown tool").WithDetails(map[string]string{"tool": name})
	}
}

func (d *Dispatcher) qualify(ctx context.Context, callID string, a args) (any, error) {
	phone, err := a.requiredStr("phone")
	if err != nil {
		return nil, err
	}
	capital, err := a.float("capital_available")
	if err != nil {
		return nil, err
	}
	experience, err := a.requiredStr("trading_experience")
	if err != nil {
		return nil, err
	}
	urgency, err := a.requiredStr("urgency")
	if err != nil {
		return nil, err
	}

	resp, err := d.tools.Qualifier.Qualify(ctx, transport.QualifyLeadRequest{
		Phone:         phone,
		Name:          a.optionalStr("name"),
		Email:         a.optionalStr("email"),
		CapitalUSD:    capital,
		Experience:    experience,
		Urgency:       urgency,
		PainPoints:    a.list("pain_points"),
		CurrentBroker: a.optionalStr("current_broker"),
		CallID:        callID,
	})
	// The decision stands even when it could not be saved.
	if apperr.Is(err, apperr.KindPersistence) {
		return resp, nil
	}
	return resp, err
}

func (d *Dispatcher) recommend(a args) (any, error) {
	capital, err := a.float("capital")
	if err != nil {
		return nil, err
	}
	if capital == nil {
		return nil, apperr.Validation("capital is required")
	}

	profile := accounts.Profile{CapitalUSD: *capital}
	if raw := a.str("trading_experience"); raw != "" {
		exp, ok := domain.ParseExperience(raw)
		if !ok {
			return nil, apperr.Validation("invalid trading experience")
		}
		profile.Experience = exp
	}
	priority, ok := accounts.ParsePriority(a.str("priority"))
	if !ok {
		return nil, apperr.Validation("invalid priority")
	}
	profile.Priority = priority

	return d.tools.Accounts.Recommend(profile)
}

func (d *Dispatcher) estimate(a args) (any, error) {
	accountType, err := a.requiredStr("account_type")
	if err != nil {
		return nil, err
	}
	trades, err := a.integer("trades_per_month")
	if err != nil {
		return nil, err
	}
	if trades == nil {
		return nil, apperr.Validation("trades_per_month is required")
	}
	lot, err := a.float("lot_size")
	if err != nil {
		return nil, err
	}
	capital, err := a.float("capital")
	if err != nil {
		return nil, err
	}

	req := accounts.CostRequest{AccountType: accountType, TradesPerMonth: *trades, CapitalUSD: capital}
	if lot != nil {
		req.LotSize = *lot
	}
	return d.tools.Accounts.Estimate(req)
}

func errorResponse(err error) map[string]any {
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Kind != apperr.KindInternal {
		resp := map[string]any{"error": appErr.Message, "kind": appErr.Kind.String()}
		if appErr.Details != nil {
			resp["details"] = appErr.Details
		}
		return resp
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return map[string]any{"error": "the operation timed out", "kind": "timeout"}
	}
	return map[string]any{"error": "the operation failed", "kind": apperr.KindInternal.String()}
}

// toResponseMap renders result the way it is rendered over HTTP.
func toResponseMap(result any) map[string]any {
	raw, err := json.Marshal(result)
	if err != nil {
		return map[string]any{"error": "the result could not be encoded", "kind": apperr.KindInternal.String()}
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return map[string]any{"error": "the result could not be encoded", "kind": apperr.KindInternal.String()}
	}
	if m, ok := decoded.(map[string]any); ok {
		return m
	}
	return map[string]any{"output": decoded}
}
