// Package callmetrics accumulates per-call usage, latency and tool counters
// and turns them into a priced summary when the call ends.
package callmetrics

import (
	"math"
	"sort"
	"sync"
	"time"

	"voice_sales_backend/internal/policy"
	"voice_sales_backend/platform/apperr"

	"github.com/shopspring/decimal"
)

// ErrSessionClosed is returned by every Record method once the session is finalized.
var ErrSessionClosed = apperr.SessionClosed("call metrics session is closed")

var (
	perMillion  = decimal.NewFromInt(1_000_000)
	perThousand = decimal.NewFromInt(1_000)
	sixty       = decimal.NewFromInt(60)
)

// Costs is the per-service cost breakdown in USD.
type Costs struct {
	STT decimal.Decimal `json:"stt"`
	LLM decimal.Decimal `json:"llm"`
	TTS decimal.Decimal `json:"tts"`
}

// Usage holds the raw counters a summary was priced from.
type Usage struct {
	STTSeconds      float64 `json:"sttSeconds"`
	LLMInputTokens  int64   `json:"llmInputTokens"`
	LLMOutputTokens int64   `json:"llmOutputTokens"`
	TTSCharacters   int64   `json:"ttsCharacters"`
}

// Performance summarises latency and tool timing.
type Performance struct {
	// FirstResponseLatency is nil when no turn latency was recorded.
	FirstResponseLatency *float64       `json:"firstResponseLatencySeconds"`
	AvgResponseLatency   float64        `json:"avgResponseLatencySeconds"`
	ResponseCount        int            `json:"responseCount"`
	ToolCallCount        int            `json:"toolCallCount"`
	ToolCounts           map[string]int `json:"toolCounts"`
	AvgToolCallSeconds   float64        `json:"avgToolCallSeconds"`
}

// Summary is the priced result of one call.
type Summary struct {
	CallID          string          `json:"callId"`
	Phone           string          `json:"phone,omitempty"`
	StartedAt       time.Time       `json:"startedAt"`
	EndedAt         time.Time       `json:"endedAt"`
	DurationSeconds float64         `json:"durationSeconds"`
	Breakdown       Costs           `json:"breakdown"`
	Total           decimal.Decimal `json:"total"`
	CostPerMinute   decimal.Decimal `json:"costPerMinute"`
	Usage           Usage           `json:"usage"`
	Performance     Performance     `json:"performance"`
	Final           bool            `json:"final"`
}

// Session accumulates the counters of one call. It is safe for concurrent use.
type Session struct {
	mu sync.Mutex

	callID    string
	phone     string
	prices    policy.PriceTable
	now       func() time.Time
	startedAt time.Time
	lastSeen  time.Time

	usage         Usage
	toolCounts    map[string]int
	toolDurations []time.Duration
	latencies     []float64

	closed  bool
	summary Summary
}

// SessionOption customises a Session.
type SessionOption func(*Session)

// WithClock replaces time.Now, mainly for tests and simulations.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.now = now
	}
}

// NewSession starts a session for callID priced with prices.
func NewSession(callID, phone string, prices policy.PriceTable, opts ...SessionOption) *Session {
	s := &Session{
		callID:     callID,
		phone:      phone,
		prices:     prices,
		now:        time.Now,
		toolCounts: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startedAt = s.now()
	s.lastSeen = s.startedAt
	return s
}

// CallID returns the call the session belongs to.
func (s *Session) CallID() string {
	return s.callID
}

// StartedAt returns when the session was opened.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// LastActivity returns when something was last recorded on the session,
// or its start when nothing has been.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Closed reports whether Finalize has run.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// RecordToolCall counts one invocation of tool and its duration.
func (s *Session) RecordToolCall(tool string, d time.Duration) error {
	if d < 0 {
		return apperr.Validation("tool duration must not be negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.toolCounts[tool]++
	s.toolDurations = append(s.toolDurations, d)
	s.lastSeen = s.now()
	return nil
}

// RecordModelUsage adds language model token counts.
func (s *Session) RecordModelUsage(inputTokens, outputTokens int64) error {
	if inputTokens < 0 || outputTokens < 0 {
		return apperr.Validation("token counts must not be negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.usage.LLMInputTokens += inputTokens
	s.usage.LLMOutputTokens += outputTokens
	s.lastSeen = s.now()
	return nil
}

// RecordSpeechUsage adds transcribed audio seconds and synthesized characters.
func (s *Session) RecordSpeechUsage(sttSeconds float64, ttsChars int64) error {
	if math.IsNaN(sttSeconds) || math.IsInf(sttSeconds, 0) || sttSeconds < 0 || ttsChars < 0 {
		return apperr.Validation("speech usage must not be negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.usage.STTSeconds += sttSeconds
	s.usage.TTSCharacters += ttsChars
	s.lastSeen = s.now()
	return nil
}

// RecordUserTurnLatency adds one response latency sample, in seconds.
func (s *Session) RecordUserTurnLatency(seconds float64) error {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return apperr.Validation("latency must not be negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.latencies = append(s.latencies, seconds)
	s.lastSeen = s.now()
	return nil
}

// Snapshot prices the counters so far without closing the session.
// After Finalize it returns the final summary.
func (s *Session) Snapshot() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.summary
	}
	return s.summarize(s.now())
}

// Finalize closes the session and returns its summary. Later calls return
// the same summary, so cleanup paths may call it unconditionally.
func (s *Session) Finalize() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.summary
	}
	s.summary = s.summarize(s.now())
	s.summary.Final = true
	s.closed = true
	return s.summary
}

func (s *Session) summarize(end time.Time) Summary {
	duration := end.Sub(s.startedAt)
	if duration < 0 {
		duration = 0
	}

	costs := s.price()
	total := costs.STT.Add(costs.LLM).Add(costs.TTS)

	costPerMinute := decimal.Zero
	if duration > 0 {
		minutes := decimal.NewFromFloat(duration.Seconds()).Div(sixty)
		costPerMinute = total.Div(minutes)
	}

	return Summary{
		CallID:          s.callID,
		Phone:           s.phone,
		StartedAt:       s.startedAt,
		EndedAt:         end,
		DurationSeconds: duration.Seconds(),
		Breakdown:       costs,
		Total:           total,
		CostPerMinute:   costPerMinute.Round(6),
		Usage:           s.usage,
		Performance:     s.performance(),
	}
}

func (s *Session) price() Costs {
	u := s.usage
	p := s.prices
	return Costs{
		STT: decimal.NewFromFloat(u.STTSeconds).Mul(decimal.NewFromFloat(p.STTPerSecondUSD)),
		LLM: decimal.NewFromInt(u.LLMInputTokens).Mul(decimal.NewFromFloat(p.LLMInputPerMillionUSD)).Div(perMillion).
			Add(decimal.NewFromInt(u.LLMOutputTokens).Mul(decimal.NewFromFloat(p.LLMOutputPerMillionUSD)).Div(perMillion)),
		TTS: decimal.NewFromInt(u.TTSCharacters).Mul(decimal.NewFromFloat(p.TTSPerThousandCharsUSD)).Div(perThousand),
	}
}

func (s *Session) performance() Performance {
	perf := Performance{
		ResponseCount: len(s.latencies),
		ToolCallCount: len(s.toolDurations),
		ToolCounts:    make(map[string]int, len(s.toolCounts)),
	}
	for tool, n := range s.toolCounts {
		perf.ToolCounts[tool] = n
	}

	if len(s.latencies) > 0 {
		first := s.latencies[0]
		perf.FirstResponseLatency = &first
		var sum float64
		for _, l := range s.latencies {
			sum += l
		}
		perf.AvgResponseLatency = sum / float64(len(s.latencies))
	}

	if len(s.toolDurations) > 0 {
		var sum time.Duration
		for _, d := range s.toolDurations {
			sum += d
		}
		perf.AvgToolCallSeconds = (sum / time.Duration(len(s.toolDurations))).Seconds()
	}
	return perf
}

// ToolNames returns the distinct tools used, sorted.
func (p Performance) ToolNames() []string {
	names := make([]string, 0, len(p.ToolCounts))
	for name := range p.ToolCounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
