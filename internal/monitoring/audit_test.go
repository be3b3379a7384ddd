package monitoring

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klasshub/faq-engine/internal/embedding"
	"github.com/klasshub/faq-engine/internal/observability"
	"github.com/klasshub/faq-engine/internal/retrieval"
	"github.com/klasshub/faq-engine/internal/store"
)

func newTestAuditStore(t *testing.T) *AuditStore {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := NewAuditStore(db, observability.Nop())
	require.NoError(t, err)
	return s
}

func TestRecordAndStageCounts(t *testing.T) {
	s := newTestAuditStore(t)
	ctx := context.Background()

	events := []QueryEvent{
		{Query: "q1", Stage: retrieval.StageLexical, Found: true, Score: 0.92},
		{Query: "q2", Stage: retrieval.StageLexical, Found: true, Score: 0.88},
		{Query: "q3", Stage: retrieval.StageSynthesis, Found: true, Score: 0.95, Synthesized: true},
		{Query: "q4", Stage: retrieval.StageNone, Found: false},
	}
	for _, event := range events {
		require.NoError(t, s.Record(ctx, event))
	}

	counts, err := s.StageCounts(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[retrieval.StageLexical])
	assert.Equal(t, int64(1), counts[retrieval.StageSynthesis])
	assert.Equal(t, int64(1), counts[retrieval.StageNone])
}

func TestStageCountsWindow(t *testing.T) {
	s := newTestAuditStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, QueryEvent{
		Query:      "old",
		Stage:      retrieval.StageLexical,
		Found:      true,
		OccurredAt: time.Now().Add(-2 * time.Hour),
	}))
	require.NoError(t, s.Record(ctx, QueryEvent{
		Query: "recent",
		Stage: retrieval.StageLexical,
		Found: true,
	}))

	counts, err := s.StageCounts(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[retrieval.StageLexical])
}

func TestRecordResultSwallowsErrors(t *testing.T) {
	s := newTestAuditStore(t)
	require.NoError(t, s.Close())

	// Must not panic or propagate after the database is gone.
	s.RecordResult(context.Background(), "q", retrieval.MatchResult{}, time.Millisecond)
}

func TestCompactorRunOnce(t *testing.T) {
	backend := store.NewMemoryBackend()
	chatStore := store.NewChatStore(backend, store.NewMemoryVectorIndex(), embedding.NewMockClient(768), observability.Nop())
	ctx := context.Background()

	first, err := chatStore.Save(ctx, "u1", "คอร์ส ออนไลน์ ราคาเท่าไหร่", "เริ่มต้น 990 บาท")
	require.NoError(t, err)
	// Simulate eviction: the record hash disappears, the keyword entry stays.
	require.NoError(t, backend.Del(ctx, "chat:record:"+first.ID))

	c := NewCompactor(chatStore, time.Hour, observability.Nop())
	removed := c.RunOnce(ctx)
	assert.Greater(t, removed, 0)

	// A second pass finds nothing left to prune.
	assert.Zero(t, c.RunOnce(ctx))
}
