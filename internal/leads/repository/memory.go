package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"voice_sales_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// MemoryStore is an in-process LeadStore used by the call simulator and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	leads     map[string]domain.Lead
	byID      map[uuid.UUID]string
	notes     map[uuid.UUID][]domain.ConversationNote
	callbacks map[uuid.UUID]domain.Callback

	phoneLocks sync.Map // phone -> *sync.Mutex
	now        func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		leads:     make(map[string]domain.Lead),
		byID:      make(map[uuid.UUID]string),
		notes:     make(map[uuid.UUID][]domain.ConversationNote),
		callbacks: make(map[uuid.UUID]domain.Callback),
		now:       time.Now,
	}
}

var _ LeadStore = (*MemoryStore)(nil)

func (m *MemoryStore) lockPhone(phone string) func() {
	value, _ := m.phoneLocks.LoadOrStore(phone, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (m *MemoryStore) GetByPhone(ctx context.Context, phone string) (domain.Lead, error) {
	if err := ctx.Err(); err != nil {
		return domain.Lead{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	lead, ok := m.leads[phone]
	if !ok {
		return domain.Lead{}, ErrNotFound
	}
	return cloneLead(lead), nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	if err := ctx.Err(); err != nil {
		return domain.Lead{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	phone, ok := m.byID[id]
	if !ok {
		return domain.Lead{}, ErrNotFound
	}
	return cloneLead(m.leads[phone]), nil
}

func (m *MemoryStore) Upsert(ctx context.Context, phone string, mutate Mutator) (domain.Lead, error) {
	unlock := m.lockPhone(phone)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return domain.Lead{}, err
	}

	now := m.now()
	m.mu.RLock()
	existing, found := m.leads[phone]
	m.mu.RUnlock()

	lead := domain.NewLead(phone, now)
	if found {
		lead = cloneLead(existing)
	}

	if err := mutate(&lead, !found); err != nil {
		return domain.Lead{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Lead{}, err
	}

	if found {
		lead.ID = existing.ID
		lead.CreatedAt = existing.CreatedAt
		lead.Version = existing.Version + 1
	}
	lead.Phone = phone
	lead.UpdatedAt = now

	m.mu.Lock()
	m.leads[phone] = lead
	m.byID[lead.ID] = phone
	m.mu.Unlock()

	return cloneLead(lead), nil
}

func (m *MemoryStore) AppendNote(ctx context.Context, params AppendNoteParams) (domain.ConversationNote, error) {
	if err := ctx.Err(); err != nil {
		return domain.ConversationNote{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[params.LeadID]; !ok {
		return domain.ConversationNote{}, ErrNotFound
	}

	note := domain.ConversationNote{
		ID:        uuid.New(),
		LeadID:    params.LeadID,
		Type:      params.Type,
		Content:   params.Content,
		CallID:    params.CallID,
		CreatedAt: m.now(),
	}
	m.notes[params.LeadID] = append(m.notes[params.LeadID], note)
	return note, nil
}

func (m *MemoryStore) ListNotes(ctx context.Context, leadID uuid.UUID, limit int) ([]domain.ConversationNote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	m.mu.RLock()
	stored := m.notes[leadID]
	notes := make([]domain.ConversationNote, 0, len(stored))
	for i := len(stored) - 1; i >= 0 && len(notes) < limit; i-- {
		notes = append(notes, stored[i])
	}
	m.mu.RUnlock()
	return notes, nil
}

func (m *MemoryStore) UpsertCallback(ctx context.Context, params UpsertCallbackParams) (domain.Callback, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Callback{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[params.LeadID]; !ok {
		return domain.Callback{}, false, ErrNotFound
	}

	now := m.now()
	for id, cb := range m.callbacks {
		if cb.LeadID != params.LeadID || cb.Status != domain.CallbackPending {
			continue
		}
		cb.PreferredTime = params.PreferredTime
		cb.ScheduledAt = params.ScheduledAt
		cb.Timezone = params.Timezone
		if params.Reason != nil {
			cb.Reason = params.Reason
		}
		cb.UpdatedAt = now
		m.callbacks[id] = cb
		return cb, false, nil
	}

	cb := domain.Callback{
		ID:            uuid.New(),
		LeadID:        params.LeadID,
		PreferredTime: params.PreferredTime,
		ScheduledAt:   params.ScheduledAt,
		Timezone:      params.Timezone,
		Reason:        params.Reason,
		Status:        domain.CallbackPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.callbacks[cb.ID] = cb
	return cb, true, nil
}

func (m *MemoryStore) GetCallback(ctx context.Context, id uuid.UUID) (domain.Callback, error) {
	if err := ctx.Err(); err != nil {
		return domain.Callback{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	cb, ok := m.callbacks[id]
	if !ok {
		return domain.Callback{}, ErrCallbackNotFound
	}
	return cb, nil
}

func (m *MemoryStore) ListCallbacks(ctx context.Context, leadID uuid.UUID) ([]domain.Callback, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	callbacks := make([]domain.Callback, 0)
	for _, cb := range m.callbacks {
		if cb.LeadID == leadID {
			callbacks = append(callbacks, cb)
		}
	}
	m.mu.RUnlock()

	sort.Slice(callbacks, func(i, j int) bool {
		return callbacks[i].CreatedAt.After(callbacks[j].CreatedAt)
	})
	return callbacks, nil
}

func (m *MemoryStore) UpdateCallbackStatus(ctx context.Context, id uuid.UUID, from, to domain.CallbackStatus) (domain.Callback, error) {
	if err := ctx.Err(); err != nil {
		return domain.Callback{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cb, ok := m.callbacks[id]
	if !ok {
		return domain.Callback{}, ErrCallbackNotFound
	}
	if cb.Status != from {
		return domain.Callback{}, ErrCallbackStateChanged
	}
	cb.Status = to
	cb.UpdatedAt = m.now()
	m.callbacks[id] = cb
	return cb, nil
}

// cloneLead copies pointer fields so callers cannot mutate stored state.
func cloneLead(l domain.Lead) domain.Lead {
	out := l
	out.Name = clonePtr(l.Name)
	out.Email = clonePtr(l.Email)
	out.Experience = clonePtr(l.Experience)
	out.CapitalUSD = clonePtr(l.CapitalUSD)
	out.Urgency = clonePtr(l.Urgency)
	out.ScoreVersion = clonePtr(l.ScoreVersion)
	out.LastContactAt = clonePtr(l.LastContactAt)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
