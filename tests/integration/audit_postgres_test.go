package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klasshub/faq-engine/internal/config"
	"github.com/klasshub/faq-engine/internal/monitoring"
	"github.com/klasshub/faq-engine/internal/observability"
	"github.com/klasshub/faq-engine/internal/retrieval"
)

// TestAuditStoreOverPostgres verifies the audit schema and stage reporting
// against a real PostgreSQL instance.
func TestAuditStoreOverPostgres(t *testing.T) {
	skipWithoutDocker(t)

	ctx := context.Background()
	setup := SetupTestContainers(t)
	defer setup.Cleanup()

	cfg := config.AuditConfig{
		Enabled: true,
		Driver:  "postgres",
		Postgres: config.PostgresConfig{
			DSN:             setup.PostgresConnStr,
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Minute,
		},
	}

	audit, err := monitoring.OpenAuditStore(cfg, observability.Nop())
	require.NoError(t, err)
	defer audit.Close()

	now := time.Now()
	events := []monitoring.QueryEvent{
		{Query: "ลืมรหัสผ่าน", Stage: retrieval.StageLexical, Found: true, Score: 0.92, Latency: 12 * time.Millisecond, OccurredAt: now},
		{Query: "ใบรับรองหาย", Stage: retrieval.StageAIGrade, Found: true, Score: 0.81, Latency: 340 * time.Millisecond, OccurredAt: now},
		{Query: "อื่นๆ", Stage: retrieval.StageNone, Found: false, Latency: 8 * time.Millisecond, OccurredAt: now},
	}
	for i := range events {
		events[i].ID = uuid.New()
		require.NoError(t, audit.Record(ctx, events[i]))
	}

	counts, err := audit.StageCounts(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[retrieval.StageLexical])
	assert.Equal(t, int64(1), counts[retrieval.StageAIGrade])
	assert.Equal(t, int64(1), counts[retrieval.StageNone])

	// Events outside the window are excluded.
	counts, err = audit.StageCounts(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, counts)

	// RecordResult is best-effort and must not panic on a live store.
	audit.RecordResult(ctx, "test", retrieval.MatchResult{Found: true, Stage: retrieval.StageLexical, Score: 0.9}, 5*time.Millisecond)
}
