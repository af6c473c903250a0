package scheduling

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"voice_sales_backend/internal/events"
	"voice_sales_backend/internal/leads/domain"
	"voice_sales_backend/internal/leads/repository"
	"voice_sales_backend/internal/leads/transport"
	"voice_sales_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plusPhones struct{}

func (plusPhones) Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "+") {
		return "", errors.New("invalid")
	}
	return s, nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) scheduled() []events.CallbackScheduled {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.CallbackScheduled
	for _, e := range b.events {
		if cs, ok := e.(events.CallbackScheduled); ok {
			out = append(out, cs)
		}
	}
	return out
}

var fixedNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func newService(store Repository, bus events.Bus) *Service {
	svc := New(store, plusPhones{}, bus, "America/Argentina/Buenos_Aires")
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestResolvePreferredTime(t *testing.T) {
	loc, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	require.NoError(t, err)

	got := ResolvePreferredTime("2026-03-03 10:30", loc)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2026, 3, 3, 13, 30, 0, 0, time.UTC), *got)

	got = ResolvePreferredTime("2026-03-03T10:30:00Z", loc)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2026, 3, 3, 10, 30, 0, 0, time.UTC), *got)

	got = ResolvePreferredTime("2026-11-01T10:00:00.500Z", loc)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC), *got)

	assert.Nil(t, ResolvePreferredTime("mañana por la tarde", loc))
}

func TestScheduleCreatesLeadAndCallback(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	bus := &recordingBus{}
	svc := newService(store, bus)

	reason := "wants to talk about raw spreads"
	cb, err := svc.Schedule(ctx, "+5491133330000", transport.ScheduleCallbackRequest{PreferredTime: "2026-03-03 10:30", Reason: &reason})
	require.NoError(t, err)

	assert.Equal(t, domain.CallbackPending, cb.Status)
	assert.Equal(t, "America/Argentina/Buenos_Aires", cb.Timezone)
	require.NotNil(t, cb.ScheduledAt)

	lead, err := store.GetByPhone(ctx, "+5491133330000")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScheduled, lead.Status)

	scheduled := bus.scheduled()
	require.Len(t, scheduled, 1)
	assert.Equal(t, cb.ID, scheduled[0].CallbackID)
	assert.Equal(t, reason, scheduled[0].Reason)
}

func TestScheduleReplacesPendingCallback(t *testing.T) {
	ctx := context.Background()
	svc := newService(repository.NewMemoryStore(), &recordingBus{})

	first, err := svc.Schedule(ctx, "+5491133330001", transport.ScheduleCallbackRequest{PreferredTime: "tomorrow afternoon"})
	require.NoError(t, err)
	assert.Nil(t, first.ScheduledAt)

	second, err := svc.Schedule(ctx, "+5491133330001", transport.ScheduleCallbackRequest{PreferredTime: "friday 9am", Timezone: "UTC"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "UTC", second.Timezone)

	list, err := svc.List(ctx, "+5491133330001")
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)
}

func TestScheduleValidation(t *testing.T) {
	svc := newService(repository.NewMemoryStore(), &recordingBus{})

	cases := map[string]transport.ScheduleCallbackRequest{
		"blank time":   {PreferredTime: "  "},
		"bad timezone": {PreferredTime: "later", Timezone: "Mars/Olympus"},
		"in the past":  {PreferredTime: "2020-01-01 10:00"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Schedule(context.Background(), "+5491133330002", req)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
		})
	}
}

func TestCompleteAndCancelOnlyFromPending(t *testing.T) {
	ctx := context.Background()
	svc := newService(repository.NewMemoryStore(), &recordingBus{})

	cb, err := svc.Schedule(ctx, "+5491133330003", transport.ScheduleCallbackRequest{PreferredTime: "evening"})
	require.NoError(t, err)

	done, err := svc.Complete(ctx, cb.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CallbackCompleted, done.Status)

	_, err = svc.Cancel(ctx, cb.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = svc.UpdateStatus(ctx, cb.ID, transport.UpdateCallbackStatusRequest{Status: "pending"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestUnknownCallback(t *testing.T) {
	svc := newService(repository.NewMemoryStore(), &recordingBus{})

	_, err := svc.Get(context.Background(), uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.Complete(context.Background(), uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
