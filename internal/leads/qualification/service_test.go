package qualification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"voice_sales_backend/internal/events"
	"voice_sales_backend/internal/leads/domain"
	"voice_sales_backend/internal/leads/repository"
	"voice_sales_backend/internal/leads/transport"
	"voice_sales_backend/internal/policy"
	"voice_sales_backend/platform/apperr"
	"voice_sales_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plusPhones struct{}

func (plusPhones) Normalize(raw string) (string, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	if !strings.HasPrefix(s, "+") || len(s) < 8 {
		return "", errors.New("invalid")
	}
	return s, nil
}

type failingStore struct {
	*repository.MemoryStore
	err error
}

func (f failingStore) Upsert(context.Context, string, repository.Mutator) (domain.Lead, error) {
	return domain.Lead{}, f.err
}

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

func newService(store Store, bus events.Bus) *Service {
	return New(store, plusPhones{}, policy.Default().Scoring, bus, logger.Nop())
}

func ptr[T any](v T) *T { return &v }

func TestQualifyReferenceCalls(t *testing.T) {
	cases := []struct {
		name       string
		req        transport.QualifyLeadRequest
		wantTier   domain.Tier
		wantScore  int
		wantAction domain.Action
	}{
		{
			name:       "experienced trader with capital and urgency",
			req:        transport.QualifyLeadRequest{Phone: "+5491100000001", CapitalUSD: ptr(5000.0), Experience: "experienced", Urgency: "high"},
			wantTier:   domain.TierHot,
			wantScore:  100,
			wantAction: domain.ActionImmediateHandoff,
		},
		{
			name:       "beginner with some capital",
			req:        transport.QualifyLeadRequest{Phone: "+5491100000002", CapitalUSD: ptr(300.0), Experience: "principiante", Urgency: "media"},
			wantTier:   domain.TierWarm,
			wantScore:  55,
			wantAction: domain.ActionScheduleCallback,
		},
		{
			name:       "curious caller",
			req:        transport.QualifyLeadRequest{Phone: "+5491100000003", CapitalUSD: ptr(50.0), Experience: "none", Urgency: "low"},
			wantTier:   domain.TierCold,
			wantScore:  15,
			wantAction: domain.ActionAsyncFollowUp,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := repository.NewMemoryStore()
			bus := &recordingBus{}
			svc := newService(store, bus)

			resp, err := svc.Qualify(context.Background(), tc.req)
			require.NoError(t, err)
			assert.Equal(t, tc.wantTier, resp.Tier)
			assert.Equal(t, tc.wantScore, resp.Score)
			assert.Equal(t, tc.wantAction, resp.RecommendedAction)
			assert.True(t, resp.Persisted)

			lead, err := store.GetByPhone(context.Background(), tc.req.Phone)
			require.NoError(t, err)
			assert.Equal(t, tc.wantTier, lead.Tier)
			assert.Equal(t, tc.wantScore, lead.Score)
			assert.Equal(t, domain.StatusQualified, lead.Status)
			require.NotNil(t, lead.LastContactAt)

			published := bus.snapshot()
			require.Len(t, published, 1)
			qualified, ok := published[0].(events.LeadQualified)
			require.True(t, ok)
			assert.Equal(t, string(tc.wantTier), qualified.Tier)
			assert.Equal(t, lead.ID, qualified.LeadID)
		})
	}
}

func TestQualifyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	svc := newService(store, &recordingBus{})
	req := transport.QualifyLeadRequest{Phone: "+5491100000010", CapitalUSD: ptr(300.0), Experience: "beginner", Urgency: "medium"}

	first, err := svc.Qualify(ctx, req)
	require.NoError(t, err)
	second, err := svc.Qualify(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, *first.LeadID, *second.LeadID)
	assert.Equal(t, first.Tier, second.Tier)
	assert.Equal(t, first.Score, second.Score)

	lead, err := store.GetByPhone(ctx, req.Phone)
	require.NoError(t, err)
	assert.Equal(t, int64(2), lead.Version)
}

func TestQualifyKeepsStoredFieldsWhenOmitted(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	svc := newService(store, &recordingBus{})

	_, err := svc.Qualify(ctx, transport.QualifyLeadRequest{
		Phone: "+5491100000011", Name: ptr("Lucía"), CapitalUSD: ptr(1500.0), Experience: "intermediate", Urgency: "low",
	})
	require.NoError(t, err)

	_, err = svc.Qualify(ctx, transport.QualifyLeadRequest{Phone: "+5491100000011", Experience: "intermediate", Urgency: "high"})
	require.NoError(t, err)

	lead, err := store.GetByPhone(ctx, "+5491100000011")
	require.NoError(t, err)
	require.NotNil(t, lead.Name)
	assert.Equal(t, "Lucía", *lead.Name)
	require.NotNil(t, lead.CapitalUSD)
	assert.Equal(t, 1500.0, *lead.CapitalUSD)
	require.NotNil(t, lead.Urgency)
	assert.Equal(t, domain.UrgencyHigh, *lead.Urgency)
}

func TestQualifyReturnsDecisionWhenStoreFails(t *testing.T) {
	store := failingStore{MemoryStore: repository.NewMemoryStore(), err: errors.New("connection refused")}
	bus := &recordingBus{}
	svc := newService(store, bus)

	resp, err := svc.Qualify(context.Background(), transport.QualifyLeadRequest{
		Phone: "+5491100000012", CapitalUSD: ptr(5000.0), Experience: "experienced", Urgency: "high",
	})

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPersistence))
	assert.Equal(t, domain.TierHot, resp.Tier)
	assert.Equal(t, 100, resp.Score)
	assert.False(t, resp.Persisted)
	assert.Nil(t, resp.LeadID)
	assert.Empty(t, bus.snapshot(), "nothing is announced for an unsaved decision")
}

func TestQualifyDiscardsDecisionOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := repository.NewMemoryStore()
	svc := newService(store, &recordingBus{})

	resp, err := svc.Qualify(ctx, transport.QualifyLeadRequest{Phone: "+5491100000013", Experience: "beginner", Urgency: "low"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, resp.Tier)

	_, err = store.GetByPhone(context.Background(), "+5491100000013")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestQualifyRejectsInvalidInput(t *testing.T) {
	svc := newService(repository.NewMemoryStore(), &recordingBus{})

	cases := map[string]transport.QualifyLeadRequest{
		"bad phone":        {Phone: "not-a-phone", Experience: "beginner", Urgency: "low"},
		"bad experience":   {Phone: "+5491100000014", Experience: "guru", Urgency: "low"},
		"bad urgency":      {Phone: "+5491100000014", Experience: "beginner", Urgency: "yesterday"},
		"negative capital": {Phone: "+5491100000014", CapitalUSD: ptr(-1.0), Experience: "beginner", Urgency: "low"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Qualify(context.Background(), req)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
		})
	}
}

func TestQualifyDoesNotReopenConvertedLead(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	_, err := store.Upsert(ctx, "+5491100000015", func(l *domain.Lead, _ bool) error {
		l.Status = domain.StatusConverted
		return nil
	})
	require.NoError(t, err)

	svc := newService(store, &recordingBus{})
	resp, err := svc.Qualify(ctx, transport.QualifyLeadRequest{Phone: "+5491100000015", Experience: "none", Urgency: "low"})
	require.NoError(t, err)

	lead, err := store.GetByPhone(ctx, "+5491100000015")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConverted, lead.Status)
	assert.Equal(t, resp.Tier, lead.Tier)
}

func TestQualifySavesCurrentBrokerNote(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	svc := newService(store, &recordingBus{})

	resp, err := svc.Qualify(ctx, transport.QualifyLeadRequest{
		Phone: "+5491100000016", Experience: "intermediate", Urgency: "medium", CurrentBroker: ptr("OtherFX"), CallID: "call-1",
	})
	require.NoError(t, err)

	notes, err := store.ListNotes(ctx, *resp.LeadID, 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NoteOther, notes[0].Type)
	assert.Contains(t, notes[0].Content, "OtherFX")
	require.NotNil(t, notes[0].CallID)
	assert.Equal(t, "call-1", *notes[0].CallID)
}

func TestQualifyParallelDistinctCallers(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	svc := newService(store, &recordingBus{})
	const n = 32

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			capital := float64(i * 100)
			_, err := svc.Qualify(ctx, transport.QualifyLeadRequest{
				Phone: fmt.Sprintf("+54911000%05d", i), CapitalUSD: &capital, Experience: "beginner", Urgency: "medium",
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		lead, err := store.GetByPhone(ctx, fmt.Sprintf("+54911000%05d", i))
		require.NoError(t, err)
		require.NotNil(t, lead.CapitalUSD)
		assert.Equal(t, float64(i*100), *lead.CapitalUSD)
	}
}
