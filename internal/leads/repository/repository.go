package repository

import (
	"context"
	"errors"
	"fmt"

	"voice_sales_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the Postgres lead store.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a Postgres-backed lead store.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ LeadStore = (*Repository)(nil)

const leadColumns = `id, phone, name, email, experience, capital_usd, urgency, tier, score, score_version,
	status, source, version, last_contact_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (domain.Lead, error) {
	var (
		lead       domain.Lead
		experience *string
		urgency    *string
		tier       string
		status     string
		score      int16
	)
	err := row.Scan(
		&lead.ID,
		&lead.Phone,
		&lead.Name,
		&lead.Email,
		&experience,
		&lead.CapitalUSD,
		&urgency,
		&tier,
		&score,
		&lead.ScoreVersion,
		&status,
		&lead.Source,
		&lead.Version,
		&lead.LastContactAt,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	if err != nil {
		return domain.Lead{}, err
	}
	if experience != nil {
		e := domain.Experience(*experience)
		lead.Experience = &e
	}
	if urgency != nil {
		u := domain.Urgency(*urgency)
		lead.Urgency = &u
	}
	lead.Tier = domain.Tier(tier)
	lead.Status = domain.Status(status)
	lead.Score = int(score)
	return lead, nil
}

func (r *Repository) GetByPhone(ctx context.Context, phone string) (domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE phone = $1`, phone))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

// Upsert runs mutate under a row lock. The insert-if-absent step relies on the
// unique phone constraint, so concurrent first writers for one phone converge
// on a single row.
func (r *Repository) Upsert(ctx context.Context, phone string, mutate Mutator) (domain.Lead, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Lead{}, fmt.Errorf("begin lead upsert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	created := true
	var insertedID uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO leads (phone, version) VALUES ($1, 0)
		ON CONFLICT (phone) DO NOTHING
		RETURNING id
	`, phone).Scan(&insertedID)
	if errors.Is(err, pgx.ErrNoRows) {
		created = false
	} else if err != nil {
		return domain.Lead{}, fmt.Errorf("insert lead: %w", err)
	}

	lead, err := scanLead(tx.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE phone = $1 FOR UPDATE`, phone))
	if err != nil {
		return domain.Lead{}, fmt.Errorf("lock lead: %w", err)
	}

	if err := mutate(&lead, created); err != nil {
		return domain.Lead{}, err
	}

	var experience, urgency *string
	if lead.Experience != nil {
		s := string(*lead.Experience)
		experience = &s
	}
	if lead.Urgency != nil {
		s := string(*lead.Urgency)
		urgency = &s
	}

	updated, err := scanLead(tx.QueryRow(ctx, `
		UPDATE leads SET
			name = $2,
			email = $3,
			experience = $4,
			capital_usd = $5,
			urgency = $6,
			tier = $7,
			score = $8,
			score_version = $9,
			status = $10,
			last_contact_at = $11,
			version = version + 1,
			updated_at = now()
		WHERE id = $1
		RETURNING `+leadColumns,
		lead.ID,
		lead.Name,
		lead.Email,
		experience,
		lead.CapitalUSD,
		urgency,
		string(lead.Tier),
		int16(lead.Score),
		lead.ScoreVersion,
		string(lead.Status),
		lead.LastContactAt,
	))
	if err != nil {
		return domain.Lead{}, fmt.Errorf("update lead: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Lead{}, fmt.Errorf("commit lead upsert: %w", err)
	}
	return updated, nil
}

func (r *Repository) AppendNote(ctx context.Context, params AppendNoteParams) (domain.ConversationNote, error) {
	var (
		note     domain.ConversationNote
		noteType string
	)
	err := r.pool.QueryRow(ctx, `
		INSERT INTO conversation_notes (lead_id, note_type, content, call_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, lead_id, note_type, content, call_id, created_at
	`, params.LeadID, string(params.Type), params.Content, params.CallID).Scan(
		&note.ID,
		&note.LeadID,
		&noteType,
		&note.Content,
		&note.CallID,
		&note.CreatedAt,
	)
	if err != nil {
		return domain.ConversationNote{}, err
	}
	note.Type = domain.NoteType(noteType)
	return note, nil
}

func (r *Repository) ListNotes(ctx context.Context, leadID uuid.UUID, limit int) ([]domain.ConversationNote, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, note_type, content, call_id, created_at
		FROM conversation_notes
		WHERE lead_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`, leadID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := make([]domain.ConversationNote, 0)
	for rows.Next() {
		var (
			note     domain.ConversationNote
			noteType string
		)
		if err := rows.Scan(&note.ID, &note.LeadID, &noteType, &note.Content, &note.CallID, &note.CreatedAt); err != nil {
			return nil, err
		}
		note.Type = domain.NoteType(noteType)
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

const callbackColumns = `id, lead_id, preferred_time, scheduled_at, timezone, reason, status, created_at, updated_at`

func scanCallback(row rowScanner) (domain.Callback, error) {
	var (
		cb     domain.Callback
		status string
	)
	err := row.Scan(&cb.ID, &cb.LeadID, &cb.PreferredTime, &cb.ScheduledAt, &cb.Timezone, &cb.Reason, &status, &cb.CreatedAt, &cb.UpdatedAt)
	if err != nil {
		return domain.Callback{}, err
	}
	cb.Status = domain.CallbackStatus(status)
	return cb, nil
}

func (r *Repository) UpsertCallback(ctx context.Context, params UpsertCallbackParams) (domain.Callback, bool, error) {
	var created bool
	row := r.pool.QueryRow(ctx, `
		INSERT INTO callbacks (lead_id, preferred_time, scheduled_at, timezone, reason)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (lead_id) WHERE status = 'pending' DO UPDATE SET
			preferred_time = EXCLUDED.preferred_time,
			scheduled_at = EXCLUDED.scheduled_at,
			timezone = EXCLUDED.timezone,
			reason = COALESCE(EXCLUDED.reason, callbacks.reason),
			updated_at = now()
		RETURNING `+callbackColumns+`, (xmax = 0)
	`, params.LeadID, params.PreferredTime, params.ScheduledAt, params.Timezone, params.Reason)

	var (
		cb     domain.Callback
		status string
	)
	err := row.Scan(&cb.ID, &cb.LeadID, &cb.PreferredTime, &cb.ScheduledAt, &cb.Timezone, &cb.Reason, &status, &cb.CreatedAt, &cb.UpdatedAt, &created)
	if err != nil {
		return domain.Callback{}, false, err
	}
	cb.Status = domain.CallbackStatus(status)
	return cb, created, nil
}

func (r *Repository) GetCallback(ctx context.Context, id uuid.UUID) (domain.Callback, error) {
	cb, err := scanCallback(r.pool.QueryRow(ctx, `SELECT `+callbackColumns+` FROM callbacks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Callback{}, ErrCallbackNotFound
	}
	return cb, err
}

func (r *Repository) ListCallbacks(ctx context.Context, leadID uuid.UUID) ([]domain.Callback, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+callbackColumns+`
		FROM callbacks
		WHERE lead_id = $1
		ORDER BY created_at DESC, id
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	callbacks := make([]domain.Callback, 0)
	for rows.Next() {
		cb, err := scanCallback(rows)
		if err != nil {
			return nil, err
		}
		callbacks = append(callbacks, cb)
	}
	return callbacks, rows.Err()
}

func (r *Repository) UpdateCallbackStatus(ctx context.Context, id uuid.UUID, from, to domain.CallbackStatus) (domain.Callback, error) {
	cb, err := scanCallback(r.pool.QueryRow(ctx, `
		UPDATE callbacks SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+callbackColumns,
		id, string(from), string(to)))
	if err == nil {
		return cb, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Callback{}, err
	}

	if _, getErr := r.GetCallback(ctx, id); getErr != nil {
		return domain.Callback{}, getErr
	}
	return domain.Callback{}, ErrCallbackStateChanged
}
