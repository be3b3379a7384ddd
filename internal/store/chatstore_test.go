package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klasshub/faq-engine/internal/classify"
	"github.com/klasshub/faq-engine/internal/embedding"
	"github.com/klasshub/faq-engine/internal/observability"
)

func newTestStore(t *testing.T) (*ChatStore, *MemoryBackend, *MemoryVectorIndex) {
	t.Helper()
	backend := NewMemoryBackend()
	vectors := NewMemoryVectorIndex()
	s := NewChatStore(backend, vectors, embedding.NewMockClient(768), observability.Nop())
	return s, backend, vectors
}

func TestSaveAndGet(t *testing.T) {
	s, _, vectors := newTestStore(t)
	ctx := context.Background()

	record, err := s.Save(ctx, "u1", "ลืมรหัสผ่าน เข้าสู่ระบบไม่ได้", "กดลิงก์ลืมรหัสผ่านที่หน้าเข้าสู่ระบบ")
	require.NoError(t, err)
	require.NotEmpty(t, record.ID)
	assert.Equal(t, classify.CategoryAccount, record.Category)

	got, err := s.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, record.Question, got.Question)
	assert.Equal(t, record.Answer, got.Answer)
	assert.Equal(t, "question: "+record.Question+"\nanswer: "+record.Answer, got.RawMessage)
	assert.Equal(t, record.CreatedAt.UnixMilli(), got.CreatedAt.UnixMilli())

	// Vector was attached on save.
	n, err := vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSaveValidation(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "u1", "", "answer")
	assert.Error(t, err)
	_, err = s.Save(ctx, "u1", "question", "")
	assert.Error(t, err)
}

func TestGetMissing(t *testing.T) {
	s, _, _ := newTestStore(t)

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchByCategoryNewestFirst(t *testing.T) {
	s, backend, _ := newTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		record, err := s.Save(ctx, "u1", fmt.Sprintf("login ไม่ได้ ครั้งที่ %d", i), "ลองใหม่")
		require.NoError(t, err)
		ids = append(ids, record.ID)
		// Force distinct zset scores regardless of clock resolution.
		require.NoError(t, backend.ZAdd(ctx, categoryKey(classify.CategoryAccount), float64(i), record.ID))
	}

	records, err := s.SearchByCategory(ctx, classify.CategoryAccount, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, ids[2], records[0].ID)
	assert.Equal(t, ids[1], records[1].ID)
}

func TestSaveEvictsOldestPastCap(t *testing.T) {
	s, backend, _ := newTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 6; i++ {
		record, err := s.Save(ctx, "u1", fmt.Sprintf("ชำระเงินไม่ผ่าน ครั้งที่ %d", i), "ตรวจสอบบัตร")
		require.NoError(t, err)
		// Force distinct zset scores regardless of clock resolution.
		require.NoError(t, backend.ZAdd(ctx, categoryKey(classify.CategoryPayment), float64(i), record.ID))
		ids = append(ids, record.ID)
	}
	s.maxPerCategory = 5
	require.NoError(t, s.trimCategory(ctx, categoryKey(classify.CategoryPayment)))

	count, err := s.CategoryCount(ctx, classify.CategoryPayment)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	_, err = s.Get(ctx, ids[0])
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, ids[5])
	assert.NoError(t, err)
}

func TestKeywordIndexSurvivesEviction(t *testing.T) {
	s, backend, _ := newTestStore(t)
	ctx := context.Background()

	first, err := s.Save(ctx, "u1", "คอร์ส ออนไลน์ เปิดรับสมัครไหม", "เปิดรับสมัครแล้ว")
	require.NoError(t, err)
	second, err := s.Save(ctx, "u1", "คอร์ส ออนไลน์ มีใบรับรองไหม", "มีใบรับรอง")
	require.NoError(t, err)
	require.NoError(t, backend.ZAdd(ctx, categoryKey(classify.CategoryCourse), 1, first.ID))
	require.NoError(t, backend.ZAdd(ctx, categoryKey(classify.CategoryCourse), 2, second.ID))
	s.maxPerCategory = 1
	require.NoError(t, s.trimCategory(ctx, categoryKey(classify.CategoryCourse)))

	// The first record is gone but its keyword entries remain.
	_, err = s.Get(ctx, first.ID)
	require.ErrorIs(t, err, ErrNotFound)
	members, err := backend.SMembers(ctx, keywordKey("คอร์ส"))
	require.NoError(t, err)
	assert.Contains(t, members, first.ID)

	// Keyword search skips the dangling ID and still finds the live record.
	records, err := s.SearchByKeywords(ctx, []string{"คอร์ส"}, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, second.ID, records[0].ID)
}

func TestCompactKeywords(t *testing.T) {
	s, backend, _ := newTestStore(t)
	ctx := context.Background()

	first, err := s.Save(ctx, "u1", "วิดีโอไม่เล่น บนมือถือ", "อัปเดตแอป")
	require.NoError(t, err)
	second, err := s.Save(ctx, "u1", "วิดีโอไม่เล่น บนคอมพิวเตอร์", "ลองเบราว์เซอร์อื่น")
	require.NoError(t, err)
	require.NoError(t, backend.ZAdd(ctx, categoryKey(classify.CategoryTechnical), 1, first.ID))
	require.NoError(t, backend.ZAdd(ctx, categoryKey(classify.CategoryTechnical), 2, second.ID))
	s.maxPerCategory = 1
	require.NoError(t, s.trimCategory(ctx, categoryKey(classify.CategoryTechnical)))

	removed, err := s.CompactKeywords(ctx)
	require.NoError(t, err)
	assert.Greater(t, removed, 0)

	members, err := backend.SMembers(ctx, keywordKey("วดโอไมเลน"))
	require.NoError(t, err)
	assert.NotContains(t, members, first.ID)
	assert.Contains(t, members, second.ID)
}

func TestBackfillVectors(t *testing.T) {
	backend := NewMemoryBackend()
	vectors := NewMemoryVectorIndex()
	// Save without an embedder so no vectors are written.
	s := NewChatStore(backend, vectors, nil, observability.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Save(ctx, "u1", fmt.Sprintf("คำถามที่ %d เกี่ยวกับการเรียน", i), "คำตอบ")
		require.NoError(t, err)
	}
	n, err := vectors.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	s.embedder = embedding.NewMockClient(768)
	var calls int
	indexed, err := s.BackfillVectors(ctx, func(done, total int) {
		calls++
		assert.Equal(t, 3, total)
	})
	require.NoError(t, err)
	assert.Equal(t, 3, indexed)
	assert.Equal(t, 3, calls)

	n, err = vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestMemoryVectorIndexSearch(t *testing.T) {
	idx := NewMemoryVectorIndex()
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, "a", []float32{1, 0, 0}))
	require.NoError(t, idx.Add(ctx, "b", []float32{0.9, 0.1, 0}))
	require.NoError(t, idx.Add(ctx, "c", []float32{0, 0, 1}))

	hits, err := idx.Search(ctx, []float32{1, 0, 0}, 10, 0.7)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.Equal(t, "b", hits[1].ID)

	hits, err = idx.Search(ctx, []float32{1, 0, 0}, 1, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)
}

func TestParseSearchReplies(t *testing.T) {
	// RESP2 shape.
	resp2 := []interface{}{
		int64(2),
		recordKeyPrefix + "id-1", []interface{}{"distance", "0.1"},
		recordKeyPrefix + "id-2", []interface{}{"distance", "0.4"},
	}
	hits := parseSearchHits(resp2)
	require.Len(t, hits, 2)
	assert.Equal(t, "id-1", hits[0].ID)
	assert.InDelta(t, 0.9, hits[0].Score, 1e-9)
	assert.InDelta(t, 0.6, hits[1].Score, 1e-9)
	assert.Equal(t, int64(2), parseSearchTotal(resp2))

	// RESP3 shape.
	resp3 := map[interface{}]interface{}{
		"total_results": int64(1),
		"results": []interface{}{
			map[interface{}]interface{}{
				"id": recordKeyPrefix + "id-3",
				"extra_attributes": map[interface{}]interface{}{
					"distance": "0.25",
				},
			},
		},
	}
	hits = parseSearchHits(resp3)
	require.Len(t, hits, 1)
	assert.Equal(t, "id-3", hits[0].ID)
	assert.InDelta(t, 0.75, hits[0].Score, 1e-9)
	assert.Equal(t, int64(1), parseSearchTotal(resp3))

	// Garbage shapes yield nothing instead of panicking.
	assert.Empty(t, parseSearchHits("nonsense"))
	assert.Empty(t, parseSearchHits([]interface{}{int64(1), 42, true}))
	assert.Zero(t, parseSearchTotal(nil))
}
