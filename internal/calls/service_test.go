package calls

import (
	"context"
	"sync"
	"testing"
	"time"

	"voice_sales_backend/internal/events"
	"voice_sales_backend/platform/apperr"
	"voice_sales_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type recordingBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, e)
}

func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) snapshot() []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]events.Event(nil), b.published...)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRegistry(t *testing.T) (*Registry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRegistry(client, time.Hour, "api-1"), mr
}

type serviceFixture struct {
	*fixture
	svc   *Service
	bus   *recordingBus
	clock *testClock
}

func newServiceFixture(t *testing.T, registry *Registry) *serviceFixture {
	t.Helper()
	f := newFixture(t)
	clock := &testClock{now: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)}
	f.tracker.SetClock(clock.Now)
	bus := &recordingBus{}
	return &serviceFixture{
		fixture: f,
		svc:     NewService(f.tracker, f.dispatcher, registry, plusPhones{}, bus, logger.Nop()),
		bus:     bus,
		clock:   clock,
	}
}

func TestStartGeneratesCallID(t *testing.T) {
	f := newServiceFixture(t, nil)

	resp, err := f.svc.Start(t.Context(), StartRequest{Phone: "+54 911 0000 0001"})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.CallID)
	assert.Equal(t, "+5491100000001", resp.Phone)
	assert.Equal(t, f.clock.Now(), resp.StartedAt)
	assert.Len(t, resp.Tools, len(Declarations()))
}

func TestStartRejectsDuplicateAndBadPhone(t *testing.T) {
	f := newServiceFixture(t, nil)

	_, err := f.svc.Start(t.Context(), StartRequest{CallID: "call-1"})
	require.NoError(t, err)

	_, err = f.svc.Start(t.Context(), StartRequest{CallID: "call-1"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = f.svc.Start(t.Context(), StartRequest{CallID: "call-2", Phone: "555"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestEndPublishesCallEnded(t *testing.T) {
	f := newServiceFixture(t, nil)

	_, err := f.svc.Start(t.Context(), StartRequest{CallID: "call-1", Phone: "+5491100000001"})
	require.NoError(t, err)
	f.clock.Advance(90 * time.Second)

	summary, err := f.svc.End(t.Context(), "call-1")
	require.NoError(t, err)
	assert.Equal(t, 90.0, summary.DurationSeconds)

	published := f.bus.snapshot()
	require.Len(t, published, 1)
	ended, ok := published[0].(events.CallEnded)
	require.True(t, ok)
	assert.Equal(t, "call-1", ended.CallID)
	assert.Equal(t, "+5491100000001", ended.Phone)
	assert.Equal(t, summary.Total.String(), ended.TotalCost)

	_, err = f.svc.End(t.Context(), "call-1")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDispatchRequiresActiveCall(t *testing.T) {
	f := newServiceFixture(t, nil)

	_, err := f.svc.Dispatch(t.Context(), "missing", &genai.FunctionCall{Name: ToolMarketHours})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.svc.Start(t.Context(), StartRequest{CallID: "call-1"})
	require.NoError(t, err)

	_, err = f.svc.Dispatch(t.Context(), "call-1", &genai.FunctionCall{Name: " "})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	resp, err := f.svc.Dispatch(t.Context(), "call-1", &genai.FunctionCall{Name: ToolMarketHours})
	require.NoError(t, err)
	assert.Equal(t, "forex", resp.Response["market"])
}

func TestRecordUsageAndLatency(t *testing.T) {
	f := newServiceFixture(t, nil)
	_, err := f.svc.Start(t.Context(), StartRequest{CallID: "call-1"})
	require.NoError(t, err)

	summary, err := f.svc.RecordUsage(t.Context(), "call-1", UsageRequest{STTSeconds: 30, LLMInputTokens: 1000, LLMOutputTokens: 200, TTSCharacters: 500})
	require.NoError(t, err)
	assert.True(t, summary.Total.IsPositive())

	_, err = f.svc.RecordLatency(t.Context(), "call-1", LatencyRequest{Seconds: 0.8})
	require.NoError(t, err)

	metrics, err := f.svc.Metrics("call-1")
	require.NoError(t, err)
	assert.True(t, metrics.Total.Equal(summary.Total))

	_, err = f.svc.RecordUsage(t.Context(), "other", UsageRequest{})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSweepIdleEndsOldCalls(t *testing.T) {
	registry, _ := newTestRegistry(t)
	f := newServiceFixture(t, registry)

	_, err := f.svc.Start(t.Context(), StartRequest{CallID: "old"})
	require.NoError(t, err)
	f.clock.Advance(3 * time.Hour)
	_, err = f.svc.Start(t.Context(), StartRequest{CallID: "fresh"})
	require.NoError(t, err)

	assert.Equal(t, 1, f.svc.SweepIdle(t.Context(), 2*time.Hour))

	active, err := f.svc.Active(t.Context())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "fresh", active[0].CallID)
	assert.Equal(t, 1, f.svc.Stats().TotalCalls)
}

func TestSweepIdleKeepsLongCallsThatStayActive(t *testing.T) {
	registry, mr := newTestRegistry(t)
	f := newServiceFixture(t, registry)

	_, err := f.svc.Start(t.Context(), StartRequest{CallID: "long"})
	require.NoError(t, err)
	for range 5 {
		f.clock.Advance(40 * time.Minute)
		mr.FastForward(40 * time.Minute)
		_, err = f.svc.RecordLatency(t.Context(), "long", LatencyRequest{Seconds: 0.5})
		require.NoError(t, err)
	}

	assert.Zero(t, f.svc.SweepIdle(t.Context(), 2*time.Hour))

	active, err := f.svc.Active(t.Context())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "long", active[0].CallID)
}

func TestActiveFallsBackToTracker(t *testing.T) {
	f := newServiceFixture(t, nil)
	_, err := f.svc.Start(t.Context(), StartRequest{CallID: "b", Phone: "+5491100000002"})
	require.NoError(t, err)
	_, err = f.svc.Start(t.Context(), StartRequest{CallID: "a"})
	require.NoError(t, err)

	active, err := f.svc.Active(t.Context())
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "a", active[0].CallID)
	assert.Equal(t, "+5491100000002", active[1].Phone)
}

func TestRegistryRoundTrip(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := t.Context()
	started := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	require.NoError(t, registry.Register(ctx, ActiveCall{CallID: "late", StartedAt: started.Add(time.Minute)}))
	require.NoError(t, registry.Register(ctx, ActiveCall{CallID: "early", Phone: "+5491100000001", StartedAt: started}))

	calls, err := registry.List(ctx)
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, ActiveCall{CallID: "early", Phone: "+5491100000001", StartedAt: started, Instance: "api-1"}, calls[0])
	assert.Equal(t, "late", calls[1].CallID)

	require.NoError(t, registry.Remove(ctx, "early"))
	calls, err = registry.List(ctx)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "late", calls[0].CallID)
}

func TestRegistryTouchExtendsExpiry(t *testing.T) {
	registry, mr := newTestRegistry(t)
	ctx := t.Context()

	require.NoError(t, registry.Register(ctx, ActiveCall{CallID: "long", StartedAt: time.Now()}))
	mr.FastForward(50 * time.Minute)
	require.NoError(t, registry.Touch(ctx, "long"))
	mr.FastForward(50 * time.Minute)

	calls, err := registry.List(ctx)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "long", calls[0].CallID)
}

func TestRegistryPrunesExpiredCalls(t *testing.T) {
	registry, mr := newTestRegistry(t)
	ctx := t.Context()

	require.NoError(t, registry.Register(ctx, ActiveCall{CallID: "abandoned", StartedAt: time.Now()}))
	mr.FastForward(2 * time.Hour)

	calls, err := registry.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, calls)

	assert.False(t, mr.Exists(activeCallsKey))
}
