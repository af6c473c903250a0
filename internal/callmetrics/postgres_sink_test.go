package callmetrics

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"voice_sales_backend/migrations"
	"voice_sales_backend/platform/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type dsn string

func (d dsn) GetDatabaseURL() string { return string(d) }

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conn, err := sql.Open("pgx", connString)
	require.NoError(t, err)
	require.NoError(t, db.MigrateUp(ctx, conn, migrations.FS))
	require.NoError(t, conn.Close())

	pool, err := db.NewPool(ctx, dsn(connString))
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestPostgresSinkStoresSummaryOnce(t *testing.T) {
	pool := setupTestDB(t)
	sink := NewPostgresSink(pool)
	ctx := context.Background()

	clock := newFakeClock()
	s := NewSession("call-pg", "+5491155550100", prices(), WithClock(clock.Now))
	require.NoError(t, s.RecordSpeechUsage(60, 1000))
	require.NoError(t, s.RecordModelUsage(1000, 500))
	require.NoError(t, s.RecordUserTurnLatency(0.8))
	clock.Advance(5 * time.Minute)
	summary := s.Finalize()

	require.NoError(t, sink.Emit(ctx, summary))
	require.NoError(t, sink.Emit(ctx, summary))

	var (
		rows  int
		total string
		phone string
	)
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT count(*), max(total_cost)::text, max(phone) FROM call_summaries WHERE call_id = $1`, "call-pg",
	).Scan(&rows, &total, &phone))
	assert.Equal(t, 1, rows)
	assert.Equal(t, "0.021450", total)
	assert.Equal(t, "+5491155550100", phone)
}
