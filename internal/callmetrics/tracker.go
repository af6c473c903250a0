package callmetrics

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"voice_sales_backend/internal/policy"
	"voice_sales_backend/platform/apperr"
	"voice_sales_backend/platform/logger"

	"github.com/shopspring/decimal"
)

// Sink receives every final summary exactly once.
type Sink interface {
	Name() string
	Emit(ctx context.Context, summary Summary) error
}

// Stats aggregates every call the tracker has ended.
type Stats struct {
	TotalCalls           int             `json:"totalCalls"`
	ActiveCalls          int             `json:"activeCalls"`
	TotalCost            decimal.Decimal `json:"totalCost"`
	TotalDurationMinutes decimal.Decimal `json:"totalDurationMinutes"`
	AvgCostPerMinute     decimal.Decimal `json:"avgCostPerMinute"`
	AvgCostPerCall       decimal.Decimal `json:"avgCostPerCall"`
}

// Tracker is the registry of live call sessions.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*Session

	completed     int
	totalCost     decimal.Decimal
	totalDuration decimal.Decimal

	prices policy.PriceTable
	sinks  []Sink
	now    func() time.Time
	log    *logger.Logger
}

// NewTracker creates a tracker that prices sessions with prices.
func NewTracker(prices policy.PriceTable, log *logger.Logger, sinks ...Sink) *Tracker {
	return &Tracker{
		sessions: make(map[string]*Session),
		prices:   prices,
		sinks:    sinks,
		now:      time.Now,
		log:      log,
	}
}

// SetClock replaces time.Now for every session started afterwards.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// Start opens a session for callID. A call id can only be active once.
func (t *Tracker) Start(callID, phone string) (*Session, error) {
	if callID == "" {
		return nil, apperr.Validation("call id is required")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[callID]; ok {
		return nil, apperr.Conflict(fmt.Sprintf("call %s is already active", callID))
	}
	s := NewSession(callID, phone, t.prices, WithClock(t.now))
	t.sessions[callID] = s
	return s, nil
}

// Get returns the active session for callID.
func (t *Tracker) Get(callID string) (*Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[callID]
	if !ok {
		return nil, apperr.NotFound("call not found")
	}
	return s, nil
}

// Active lists active call ids, sorted.
func (t *Tracker) Active() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// End finalizes the session, removes it from the registry and hands the
// summary to every sink. Sink failures are logged, never returned.
func (t *Tracker) End(ctx context.Context, callID string) (Summary, error) {
	t.mu.Lock()
	s, ok := t.sessions[callID]
	if !ok {
		t.mu.Unlock()
		return Summary{}, apperr.NotFound("call not found")
	}
	delete(t.sessions, callID)
	summary := s.Finalize()
	t.completed++
	t.totalCost = t.totalCost.Add(summary.Total)
	t.totalDuration = t.totalDuration.Add(decimal.NewFromFloat(summary.DurationSeconds).Div(sixty))
	t.mu.Unlock()

	for _, sink := range t.sinks {
		if err := sink.Emit(ctx, summary); err != nil {
			t.log.WithContext(ctx).Error("call summary sink failed",
				"sink", sink.Name(),
				"call_id", callID,
				"error", err,
			)
		}
	}
	return summary, nil
}

// Expire ends every session with no activity for longer than idle and
// returns their ids.
func (t *Tracker) Expire(ctx context.Context, idle time.Duration) []string {
	t.mu.Lock()
	cutoff := t.now().Add(-idle)
	var stale []string
	for id, s := range t.sessions {
		if s.LastActivity().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	t.mu.Unlock()

	sort.Strings(stale)
	ended := stale[:0]
	for _, id := range stale {
		// Another path may have ended it in between.
		if _, err := t.End(ctx, id); err == nil {
			ended = append(ended, id)
		}
	}
	return ended
}

// Stats aggregates completed calls.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := Stats{
		TotalCalls:           t.completed,
		ActiveCalls:          len(t.sessions),
		TotalCost:            t.totalCost.Round(6),
		TotalDurationMinutes: t.totalDuration.Round(2),
		AvgCostPerMinute:     decimal.Zero,
		AvgCostPerCall:       decimal.Zero,
	}
	if t.totalDuration.IsPositive() {
		stats.AvgCostPerMinute = t.totalCost.Div(t.totalDuration).Round(6)
	}
	if t.completed > 0 {
		stats.AvgCostPerCall = t.totalCost.Div(decimal.NewFromInt(int64(t.completed))).Round(6)
	}
	return stats
}
