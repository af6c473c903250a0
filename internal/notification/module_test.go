package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voice_sales_backend/internal/events"
	"voice_sales_backend/internal/leads/domain"
	"voice_sales_backend/internal/leads/repository"
	"voice_sales_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const leadPhone = "+5491123456789"

type sent struct {
	recipient string
	payload   Payload
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sent
	fail map[string]bool
}

func (s *recordingSender) Send(_ context.Context, recipient string, payload Payload) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[recipient] {
		return "", errors.New("gateway down")
	}
	s.sent = append(s.sent, sent{recipient: recipient, payload: payload})
	return "delivery-" + recipient, nil
}

type scheduled struct {
	phone      string
	callbackID uuid.UUID
	runAt      time.Time
}

type recordingScheduler struct {
	followUps []scheduled
	reminders []scheduled
}

func (s *recordingScheduler) ScheduleFollowUp(_ context.Context, phone string, runAt time.Time) error {
	s.followUps = append(s.followUps, scheduled{phone: phone, runAt: runAt})
	return nil
}

func (s *recordingScheduler) ScheduleCallbackReminder(_ context.Context, callbackID uuid.UUID, _, runAt time.Time) error {
	s.reminders = append(s.reminders, scheduled{callbackID: callbackID, runAt: runAt})
	return nil
}

type followUpConfig struct {
	recipients []string
}

func (c followUpConfig) GetSalesDeskRecipients() []string       { return c.recipients }
func (c followUpConfig) GetCallbackReminderLead() time.Duration { return 15 * time.Minute }
func (c followUpConfig) GetFollowUpDelay() time.Duration        { return 10 * time.Minute }
func (c followUpConfig) GetFollowUpMessage() string             { return "Reply here to continue." }

var fixedNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func newTestModule(t *testing.T, recipients ...string) (*Module, *recordingSender, *recordingScheduler, *repository.MemoryStore) {
	t.Helper()
	sender := &recordingSender{fail: map[string]bool{}}
	sched := &recordingScheduler{}
	store := repository.NewMemoryStore()
	m := New(sender, sched, store, followUpConfig{recipients: recipients}, logger.Nop())
	m.SetClock(func() time.Time { return fixedNow })
	return m, sender, sched, store
}

func seedLead(t *testing.T, store *repository.MemoryStore, name string, status domain.Status) domain.Lead {
	t.Helper()
	lead, err := store.Upsert(t.Context(), leadPhone, func(l *domain.Lead, _ bool) error {
		if name != "" {
			l.Name = &name
		}
		l.Status = status
		return nil
	})
	require.NoError(t, err)
	return lead
}

func TestHotLeadAlertsEveryDeskRecipient(t *testing.T) {
	m, sender, sched, _ := newTestModule(t, "desk@example.com", "+5491199998888")

	err := m.Handle(t.Context(), events.LeadQualified{
		Phone:  leadPhone,
		Name:   "Ana",
		Tier:   "HOT",
		Score:  85,
		Action: string(domain.ActionImmediateHandoff),
	})
	require.NoError(t, err)

	require.Len(t, sender.sent, 2)
	assert.Equal(t, "desk@example.com", sender.sent[0].recipient)
	assert.Contains(t, sender.sent[0].payload.Subject, "Ana")
	assert.Contains(t, sender.sent[0].payload.HTML, "85")
	assert.Contains(t, sender.sent[1].payload.Text, leadPhone)
	assert.Empty(t, sched.followUps)
}

func TestHotLeadAlertContinuesPastFailedRecipient(t *testing.T) {
	m, sender, _, _ := newTestModule(t, "broken@example.com", "desk@example.com")
	sender.fail["broken@example.com"] = true

	err := m.Handle(t.Context(), events.LeadQualified{Phone: leadPhone, Tier: "HOT", Score: 90})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken@example.com")
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "desk@example.com", sender.sent[0].recipient)
}

func TestColdLeadSchedulesFollowUp(t *testing.T) {
	m, sender, sched, _ := newTestModule(t, "desk@example.com")

	require.NoError(t, m.Handle(t.Context(), events.LeadQualified{Phone: leadPhone, Tier: "COLD", Score: 20}))

	require.Len(t, sched.followUps, 1)
	assert.Equal(t, leadPhone, sched.followUps[0].phone)
	assert.Equal(t, fixedNow.Add(10*time.Minute), sched.followUps[0].runAt)
	assert.Empty(t, sender.sent)
}

func TestWarmLeadDoesNothing(t *testing.T) {
	m, sender, sched, _ := newTestModule(t, "desk@example.com")

	require.NoError(t, m.Handle(t.Context(), events.LeadQualified{Phone: leadPhone, Tier: "WARM", Score: 55}))
	assert.Empty(t, sender.sent)
	assert.Empty(t, sched.followUps)
}

func TestCallbackReminderRunsBeforeScheduledTime(t *testing.T) {
	m, _, sched, _ := newTestModule(t)
	at := fixedNow.Add(2 * time.Hour)
	id := uuid.New()

	require.NoError(t, m.Handle(t.Context(), events.CallbackScheduled{CallbackID: id, ScheduledAt: &at}))

	require.Len(t, sched.reminders, 1)
	assert.Equal(t, id, sched.reminders[0].callbackID)
	assert.Equal(t, at.Add(-15*time.Minute), sched.reminders[0].runAt)
}

func TestCallbackReminderClampsToNow(t *testing.T) {
	m, _, sched, _ := newTestModule(t)
	at := fixedNow.Add(5 * time.Minute)

	require.NoError(t, m.Handle(t.Context(), events.CallbackScheduled{CallbackID: uuid.New(), ScheduledAt: &at}))

	require.Len(t, sched.reminders, 1)
	assert.Equal(t, fixedNow, sched.reminders[0].runAt)
}

func TestUnresolvedCallbackIsNotScheduled(t *testing.T) {
	m, _, sched, _ := newTestModule(t)

	require.NoError(t, m.Handle(t.Context(), events.CallbackScheduled{CallbackID: uuid.New(), PreferredTime: "after lunch"}))
	assert.Empty(t, sched.reminders)
}

func TestCallbackDueAlertsOnlyWhilePending(t *testing.T) {
	m, sender, _, store := newTestModule(t, "desk@example.com")
	lead := seedLead(t, store, "Ana", domain.StatusScheduled)
	at := fixedNow.Add(time.Hour)
	reason := "wants to compare accounts"

	callback, _, err := store.UpsertCallback(t.Context(), repository.UpsertCallbackParams{
		LeadID:        lead.ID,
		PreferredTime: "tomorrow 10am",
		ScheduledAt:   &at,
		Timezone:      "UTC",
		Reason:        &reason,
	})
	require.NoError(t, err)

	require.NoError(t, m.Handle(t.Context(), events.CallbackDue{CallbackID: callback.ID}))
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].payload.HTML, "wants to compare accounts")
	assert.Contains(t, sender.sent[0].payload.Text, "tomorrow 10am")

	_, err = store.UpdateCallbackStatus(t.Context(), callback.ID, domain.CallbackPending, domain.CallbackCompleted)
	require.NoError(t, err)

	require.NoError(t, m.Handle(t.Context(), events.CallbackDue{CallbackID: callback.ID}))
	assert.Len(t, sender.sent, 1)
}

func TestCallbackDueSkipsStaleReminder(t *testing.T) {
	m, sender, _, store := newTestModule(t, "desk@example.com")
	lead := seedLead(t, store, "Ana", domain.StatusScheduled)
	oldAt := fixedNow.Add(time.Hour)
	newAt := fixedNow.Add(3 * time.Hour)

	callback, _, err := store.UpsertCallback(t.Context(), repository.UpsertCallbackParams{
		LeadID:        lead.ID,
		PreferredTime: "later",
		ScheduledAt:   &newAt,
		Timezone:      "UTC",
	})
	require.NoError(t, err)

	require.NoError(t, m.Handle(t.Context(), events.CallbackDue{CallbackID: callback.ID, ScheduledAt: &oldAt}))
	assert.Empty(t, sender.sent)

	require.NoError(t, m.Handle(t.Context(), events.CallbackDue{CallbackID: callback.ID, ScheduledAt: &newAt}))
	assert.Len(t, sender.sent, 1)
}

func TestCallbackDueMatchesStoredTimeToTheSecond(t *testing.T) {
	m, sender, _, store := newTestModule(t, "desk@example.com")
	lead := seedLead(t, store, "Ana", domain.StatusScheduled)
	stored := time.Date(2026, 11, 1, 10, 0, 0, 500_000_000, time.UTC)

	callback, _, err := store.UpsertCallback(t.Context(), repository.UpsertCallbackParams{
		LeadID:        lead.ID,
		PreferredTime: "2026-11-01T10:00:00.500Z",
		ScheduledAt:   &stored,
		Timezone:      "UTC",
	})
	require.NoError(t, err)

	due := time.Unix(stored.Unix(), 0)
	require.NoError(t, m.Handle(t.Context(), events.CallbackDue{CallbackID: callback.ID, ScheduledAt: &due}))
	assert.Len(t, sender.sent, 1)
}

func TestCallbackDueUnknownCallback(t *testing.T) {
	m, _, _, _ := newTestModule(t, "desk@example.com")

	err := m.Handle(t.Context(), events.CallbackDue{CallbackID: uuid.New()})
	assert.ErrorIs(t, err, repository.ErrCallbackNotFound)
}

func TestFollowUpDueMessagesTheLead(t *testing.T) {
	m, sender, _, store := newTestModule(t)
	seedLead(t, store, "Ana", domain.StatusQualified)

	require.NoError(t, m.Handle(t.Context(), events.FollowUpDue{Phone: leadPhone}))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, leadPhone, sender.sent[0].recipient)
	assert.Equal(t, "Hi Ana! Reply here to continue.", sender.sent[0].payload.Text)
}

func TestFollowUpSkippedForClosedLead(t *testing.T) {
	m, sender, _, store := newTestModule(t)
	seedLead(t, store, "", domain.StatusLost)

	require.NoError(t, m.Handle(t.Context(), events.FollowUpDue{Phone: leadPhone}))
	assert.Empty(t, sender.sent)
}

func TestRouterPicksChannelByRecipient(t *testing.T) {
	wa := &recordingSender{}
	mail := &recordingSender{}
	router := NewRouter(wa, mail)

	_, err := router.Send(t.Context(), "desk@example.com", Payload{Text: "a"})
	require.NoError(t, err)
	_, err = router.Send(t.Context(), leadPhone, Payload{Text: "b"})
	require.NoError(t, err)

	require.Len(t, mail.sent, 1)
	require.Len(t, wa.sent, 1)
	assert.Equal(t, leadPhone, wa.sent[0].recipient)
}

func TestRouterWithoutChannel(t *testing.T) {
	router := NewRouter(nil, &recordingSender{})

	_, err := router.Send(t.Context(), leadPhone, Payload{Text: "b"})
	assert.ErrorIs(t, err, ErrChannelUnavailable)

	_, err = router.Send(t.Context(), "  ", Payload{Text: "b"})
	assert.ErrorIs(t, err, ErrChannelUnavailable)
}

func TestRegisterHandlersWiresBus(t *testing.T) {
	m, _, sched, _ := newTestModule(t)
	bus := events.NewInMemoryBus(logger.Nop())
	m.RegisterHandlers(bus)

	require.NoError(t, bus.PublishSync(t.Context(), events.LeadQualified{Phone: leadPhone, Tier: "COLD"}))
	assert.Len(t, sched.followUps, 1)
}
