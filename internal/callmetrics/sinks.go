package callmetrics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"voice_sales_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LogSink writes each summary as one structured log line.
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Emit(ctx context.Context, summary Summary) error {
	s.log.WithContext(ctx).CallSummary(
		summary.CallID,
		summary.DurationSeconds,
		summary.Total.String(),
		summary.CostPerMinute.String(),
		summary.Performance.ToolCallCount,
		summary.Performance.ResponseCount,
	)
	return nil
}

// PostgresSink stores summaries in call_summaries.
type PostgresSink struct {
	pool *pgxpool.Pool
}

func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

func (s *PostgresSink) Name() string { return "postgres" }

func (s *PostgresSink) Emit(ctx context.Context, summary Summary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode call summary: %w", err)
	}

	var phone *string
	if summary.Phone != "" {
		phone = &summary.Phone
	}
	var avgLatency *float64
	if summary.Performance.ResponseCount > 0 {
		avg := summary.Performance.AvgResponseLatency
		avgLatency = &avg
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO call_summaries (
			call_id, phone, started_at, ended_at, duration_seconds,
			stt_cost, llm_cost, tts_cost, total_cost, cost_per_minute,
			first_latency_seconds, avg_latency_seconds, response_count, tool_call_count, summary
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (call_id) DO NOTHING`,
		summary.CallID,
		phone,
		summary.StartedAt,
		summary.EndedAt,
		summary.DurationSeconds,
		summary.Breakdown.STT.Round(6).String(),
		summary.Breakdown.LLM.Round(6).String(),
		summary.Breakdown.TTS.Round(6).String(),
		summary.Total.Round(6).String(),
		summary.CostPerMinute.Round(6).String(),
		summary.Performance.FirstResponseLatency,
		avgLatency,
		summary.Performance.ResponseCount,
		summary.Performance.ToolCallCount,
		payload,
	)
	if err != nil {
		return fmt.Errorf("insert call summary: %w", err)
	}
	return nil
}

// ObjectPutter stores one object in a bucket.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucket, key, contentType string, body io.Reader, size int64) error
}

// ArchiveSink writes each summary as a JSON document to object storage,
// keyed by day and call id.
type ArchiveSink struct {
	store  ObjectPutter
	bucket string
}

func NewArchiveSink(store ObjectPutter, bucket string) *ArchiveSink {
	return &ArchiveSink{store: store, bucket: bucket}
}

func (s *ArchiveSink) Name() string { return "archive" }

func (s *ArchiveSink) Emit(ctx context.Context, summary Summary) error {
	body, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode call summary: %w", err)
	}
	key := ArchiveKey(summary)
	if err := s.store.PutObject(ctx, s.bucket, key, "application/json", bytes.NewReader(body), int64(len(body))); err != nil {
		return fmt.Errorf("archive call summary %s: %w", key, err)
	}
	return nil
}

// ArchiveKey is the object key a summary is archived under.
func ArchiveKey(summary Summary) string {
	return path.Join(summary.StartedAt.UTC().Format("2006/01/02"), summary.CallID+".json")
}
