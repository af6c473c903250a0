package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"voice_sales_backend/internal/email"
	"voice_sales_backend/internal/events"
	"voice_sales_backend/internal/leads/domain"
	"voice_sales_backend/platform/config"
	"voice_sales_backend/platform/logger"

	"github.com/google/uuid"
)

// Scheduler enqueues delayed work. Implemented by the asynq client.
type Scheduler interface {
	ScheduleFollowUp(ctx context.Context, phone string, runAt time.Time) error
	ScheduleCallbackReminder(ctx context.Context, callbackID uuid.UUID, scheduledAt, runAt time.Time) error
}

// LeadReader loads leads for message rendering.
type LeadReader interface {
	GetByPhone(ctx context.Context, phone string) (domain.Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error)
}

// CallbackReader loads callbacks when a reminder fires.
type CallbackReader interface {
	GetCallback(ctx context.Context, id uuid.UUID) (domain.Callback, error)
}

// Store is what the module reads from the lead store.
type Store interface {
	LeadReader
	CallbackReader
}

// Module reacts to lead and callback events.
type Module struct {
	sender    Sender
	scheduler Scheduler
	store     Store
	cfg       config.FollowUpConfig
	log       *logger.Logger
	now       func() time.Time
}

// New creates the notification module. scheduler may be nil, in which case
// follow-ups and reminders are logged and dropped.
func New(sender Sender, scheduler Scheduler, store Store, cfg config.FollowUpConfig, log *logger.Logger) *Module {
	return &Module{
		sender:    sender,
		scheduler: scheduler,
		store:     store,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// SetClock replaces the time source.
func (m *Module) SetClock(now func() time.Time) {
	m.now = now
}

// RegisterHandlers subscribes the module to the events it reacts to.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadQualified{}.EventName(), m)
	bus.Subscribe(events.CallbackScheduled{}.EventName(), m)
	bus.Subscribe(events.CallbackDue{}.EventName(), m)
	bus.Subscribe(events.FollowUpDue{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle implements events.Handler.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadQualified:
		return m.handleLeadQualified(ctx, e)
	case events.CallbackScheduled:
		return m.handleCallbackScheduled(ctx, e)
	case events.CallbackDue:
		return m.handleCallbackDue(ctx, e)
	case events.FollowUpDue:
		return m.handleFollowUpDue(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleLeadQualified(ctx context.Context, e events.LeadQualified) error {
	switch domain.Tier(e.Tier) {
	case domain.TierHot:
		subject, body, err := email.RenderLeadHandoff(email.LeadHandoff{
			Name:   e.Name,
			Phone:  e.Phone,
			Score:  e.Score,
			Action: e.Action,
			CallID: e.CallID,
		})
		if err != nil {
			return err
		}
		text := fmt.Sprintf("HOT lead %s scored %d. Call now: %s", labelFor(e.Name, e.Phone), e.Score, e.Phone)
		return m.alertDesk(ctx, "lead_handoff", Payload{Subject: subject, Text: text, HTML: body})

	case domain.TierCold:
		if m.scheduler == nil {
			m.log.Warn("follow-up not scheduled, scheduler disabled", "phone", e.Phone)
			return nil
		}
		runAt := m.now().Add(m.cfg.GetFollowUpDelay())
		if err := m.scheduler.ScheduleFollowUp(ctx, e.Phone, runAt); err != nil {
			return fmt.Errorf("schedule follow-up: %w", err)
		}
		m.log.Info("follow-up scheduled", "phone", e.Phone, "run_at", runAt)
		return nil

	default:
		return nil
	}
}

func (m *Module) handleCallbackScheduled(ctx context.Context, e events.CallbackScheduled) error {
	if e.ScheduledAt == nil {
		m.log.Info("callback has no resolved time, reminder skipped", "callback_id", e.CallbackID, "preferred_time", e.PreferredTime)
		return nil
	}
	if m.scheduler == nil {
		m.log.Warn("callback reminder not scheduled, scheduler disabled", "callback_id", e.CallbackID)
		return nil
	}

	runAt := e.ScheduledAt.Add(-m.cfg.GetCallbackReminderLead())
	if now := m.now(); runAt.Before(now) {
		runAt = now
	}
	if err := m.scheduler.ScheduleCallbackReminder(ctx, e.CallbackID, *e.ScheduledAt, runAt); err != nil {
		return fmt.Errorf("schedule callback reminder: %w", err)
	}
	m.log.Info("callback reminder scheduled", "callback_id", e.CallbackID, "run_at", runAt)
	return nil
}

func (m *Module) handleCallbackDue(ctx context.Context, e events.CallbackDue) error {
	callback, err := m.store.GetCallback(ctx, e.CallbackID)
	if err != nil {
		return fmt.Errorf("load callback %s: %w", e.CallbackID, err)
	}
	if callback.Status != domain.CallbackPending {
		m.log.Info("callback no longer pending, reminder skipped", "callback_id", callback.ID, "status", callback.Status)
		return nil
	}
	// Reminder payloads carry unix seconds.
	if e.ScheduledAt != nil && (callback.ScheduledAt == nil || callback.ScheduledAt.Unix() != e.ScheduledAt.Unix()) {
		m.log.Info("callback was rescheduled, stale reminder skipped", "callback_id", callback.ID)
		return nil
	}

	lead, err := m.store.GetByID(ctx, callback.LeadID)
	if err != nil {
		return fmt.Errorf("load lead %s: %w", callback.LeadID, err)
	}

	reminder := email.CallbackReminder{
		Name:          deref(lead.Name),
		Phone:         lead.Phone,
		PreferredTime: callback.PreferredTime,
		Timezone:      callback.Timezone,
		Reason:        deref(callback.Reason),
	}
	if callback.ScheduledAt != nil {
		reminder.ScheduledAt = formatInZone(*callback.ScheduledAt, callback.Timezone)
	}

	subject, body, err := email.RenderCallbackReminder(reminder)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("Callback due for %s (%s). Phone: %s", labelFor(reminder.Name, lead.Phone), callback.PreferredTime, lead.Phone)
	return m.alertDesk(ctx, "callback_reminder", Payload{Subject: subject, Text: text, HTML: body})
}

func (m *Module) handleFollowUpDue(ctx context.Context, e events.FollowUpDue) error {
	lead, err := m.store.GetByPhone(ctx, e.Phone)
	if err != nil {
		return fmt.Errorf("load lead %s: %w", e.Phone, err)
	}
	if lead.Status.IsTerminal() {
		m.log.Info("lead closed, follow-up skipped", "lead_id", lead.ID, "status", lead.Status)
		return nil
	}

	message := m.cfg.GetFollowUpMessage()
	if name := deref(lead.Name); name != "" {
		message = fmt.Sprintf("Hi %s! %s", name, message)
	}

	id, err := m.sender.Send(ctx, lead.Phone, Payload{Subject: "Follow-up", Text: message})
	if err != nil {
		m.log.Error("follow-up delivery failed", "lead_id", lead.ID, "error", err)
		return err
	}
	m.log.Info("follow-up sent", "lead_id", lead.ID, "delivery_id", id)
	return nil
}

// alertDesk sends payload to every sales desk recipient. One failed
// recipient does not stop the others.
func (m *Module) alertDesk(ctx context.Context, kind string, payload Payload) error {
	recipients := m.cfg.GetSalesDeskRecipients()
	if len(recipients) == 0 {
		m.log.Warn("no sales desk recipients configured", "kind", kind)
		return nil
	}

	var errs []error
	for _, recipient := range recipients {
		id, err := m.sender.Send(ctx, recipient, payload)
		if err != nil {
			m.log.Error("sales desk alert failed", "kind", kind, "recipient", recipient, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", recipient, err))
			continue
		}
		m.log.Info("sales desk alert sent", "kind", kind, "recipient", recipient, "delivery_id", id)
	}
	return errors.Join(errs...)
}

func labelFor(name, phone string) string {
	if name == "" {
		return phone
	}
	return name
}

func formatInZone(t time.Time, timezone string) string {
	if loc, err := time.LoadLocation(timezone); err == nil {
		t = t.In(loc)
	}
	return t.Format("Mon 2 Jan 15:04")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
