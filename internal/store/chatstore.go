package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/klasshub/faq-engine/internal/classify"
	"github.com/klasshub/faq-engine/internal/embedding"
	"github.com/klasshub/faq-engine/internal/lexical"
	"github.com/klasshub/faq-engine/internal/observability"
)

const (
	recordKeyPrefix   = "chat:record:"
	categoryKeyPrefix = "chat:category:"
	keywordKeyPrefix  = "chat:keyword:"

	// MaxChatPerCategory caps each category's recency ranking. Older records
	// past the cap are evicted on insert.
	MaxChatPerCategory = 1000
)

func recordKey(id string) string             { return recordKeyPrefix + id }
func categoryKey(c classify.Category) string { return categoryKeyPrefix + string(c) }
func keywordKey(kw string) string            { return keywordKeyPrefix + kw }

// ChatRecord is one saved support exchange. RawMessage keeps the original
// exchange text verbatim for audit; it is never re-parsed.
type ChatRecord struct {
	ID         string
	UserID     string
	Question   string
	Answer     string
	RawMessage string
	Category   classify.Category
	CreatedAt  time.Time
}

// ChatStore persists chat records and maintains the category rankings,
// keyword index, and vector index that retrieval reads.
type ChatStore struct {
	backend        Backend
	vectors        VectorIndex
	embedder       embedding.Embedder
	maxPerCategory int
	logger         *observability.Logger
}

// NewChatStore creates a chat store. embedder may be nil, in which case new
// records are saved without vectors and left for a later backfill.
func NewChatStore(backend Backend, vectors VectorIndex, embedder embedding.Embedder, logger *observability.Logger) *ChatStore {
	if vectors == nil {
		vectors = NopVectorIndex{}
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &ChatStore{
		backend:        backend,
		vectors:        vectors,
		embedder:       embedder,
		maxPerCategory: MaxChatPerCategory,
		logger:         logger.WithComponent("chat-store"),
	}
}

// Vectors exposes the store's vector index to the retrieval pipeline.
func (s *ChatStore) Vectors() VectorIndex {
	return s.vectors
}

// Save classifies and persists a new exchange, updates the category ranking
// and keyword index, and embeds the question on a best-effort basis. Indexing
// and eviction are not atomic with the record write; a crash between steps
// leaves a record that compaction or eviction later reconciles.
func (s *ChatStore) Save(ctx context.Context, userID, question, answer string) (*ChatRecord, error) {
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}
	if answer == "" {
		return nil, fmt.Errorf("answer is required")
	}

	record := &ChatRecord{
		ID:         uuid.NewString(),
		UserID:     userID,
		Question:   question,
		Answer:     answer,
		RawMessage: "question: " + question + "\nanswer: " + answer,
		Category:   classify.Classify(question),
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.backend.HSet(ctx, recordKey(record.ID), map[string]interface{}{
		"id":          record.ID,
		"user_id":     record.UserID,
		"question":    record.Question,
		"answer":      record.Answer,
		"raw_message": record.RawMessage,
		"category":    string(record.Category),
		"created_at":  strconv.FormatInt(record.CreatedAt.UnixMilli(), 10),
	}); err != nil {
		return nil, fmt.Errorf("save record: %w", err)
	}

	catKey := categoryKey(record.Category)
	if err := s.backend.ZAdd(ctx, catKey, float64(record.CreatedAt.UnixMilli()), record.ID); err != nil {
		return nil, fmt.Errorf("rank record: %w", err)
	}
	if err := s.trimCategory(ctx, catKey); err != nil {
		s.logger.Warn().Err(err).Str("category", string(record.Category)).Msg("category trim failed")
	}

	for _, kw := range lexical.ExtractKeywords(question) {
		if err := s.backend.SAdd(ctx, keywordKey(kw), record.ID); err != nil {
			s.logger.Warn().Err(err).Str("keyword", kw).Msg("keyword index update failed")
		}
	}

	s.embedRecord(ctx, record)

	return record, nil
}

// embedRecord attaches a question embedding to the record. Failures are
// logged and swallowed: a record without a vector is still searchable
// through the category and keyword tiers.
func (s *ChatStore) embedRecord(ctx context.Context, record *ChatRecord) {
	if s.embedder == nil || !s.vectors.Available() {
		return
	}
	vector, err := s.embedder.EmbedSingle(ctx, record.Question)
	if err != nil {
		s.logger.Warn().Err(err).Str("id", record.ID).Msg("question embedding failed")
		return
	}
	if err := s.vectors.Add(ctx, record.ID, vector); err != nil {
		s.logger.Warn().Err(err).Str("id", record.ID).Msg("vector index update failed")
	}
}

// trimCategory evicts the oldest records past the per-category cap. Evicted
// record hashes are deleted; keyword set entries are left behind and cleaned
// up by compaction.
func (s *ChatStore) trimCategory(ctx context.Context, catKey string) error {
	count, err := s.backend.ZCard(ctx, catKey)
	if err != nil {
		return err
	}
	excess := count - int64(s.maxPerCategory)
	if excess <= 0 {
		return nil
	}

	evicted, err := s.backend.ZRange(ctx, catKey, 0, excess-1)
	if err != nil {
		return err
	}
	for _, id := range evicted {
		if err := s.backend.Del(ctx, recordKey(id)); err != nil {
			return err
		}
	}
	return s.backend.ZRem(ctx, catKey, evicted...)
}

// Get fetches one record by ID.
func (s *ChatStore) Get(ctx context.Context, id string) (*ChatRecord, error) {
	fields, err := s.backend.HGetAll(ctx, recordKey(id))
	if err != nil {
		return nil, fmt.Errorf("fetch record: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return recordFromFields(fields), nil
}

// SearchByCategory returns up to limit records from a category, newest
// first. Ranked IDs whose record hash has disappeared are skipped.
func (s *ChatStore) SearchByCategory(ctx context.Context, category classify.Category, limit int) ([]*ChatRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	ids, err := s.backend.ZRevRange(ctx, categoryKey(category), 0, int64(limit-1))
	if err != nil {
		return nil, fmt.Errorf("category lookup: %w", err)
	}
	return s.fetchRecords(ctx, ids, limit)
}

// SearchByKeywords intersects the index sets of the given keywords and
// returns the records every keyword points at. IDs pointing at evicted
// records are skipped; their index entries persist until compaction.
func (s *ChatStore) SearchByKeywords(ctx context.Context, keywords []string, limit int) ([]*ChatRecord, error) {
	if limit <= 0 || len(keywords) == 0 {
		return nil, nil
	}

	counts := make(map[string]int)
	var ids []string
	for _, kw := range keywords {
		members, err := s.backend.SMembers(ctx, keywordKey(kw))
		if err != nil {
			return nil, fmt.Errorf("keyword lookup: %w", err)
		}
		for _, id := range members {
			counts[id]++
			if counts[id] == len(keywords) {
				ids = append(ids, id)
			}
		}
	}
	return s.fetchRecords(ctx, ids, limit)
}

// CategoryCount returns the size of a category's ranking.
func (s *ChatStore) CategoryCount(ctx context.Context, category classify.Category) (int64, error) {
	return s.backend.ZCard(ctx, categoryKey(category))
}

// CompactKeywords removes keyword index entries whose records have been
// evicted, and reports how many entries were dropped.
func (s *ChatStore) CompactKeywords(ctx context.Context) (int, error) {
	keys, err := s.backend.ScanKeys(ctx, keywordKeyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("scan keyword sets: %w", err)
	}

	removed := 0
	for _, key := range keys {
		members, err := s.backend.SMembers(ctx, key)
		if err != nil {
			return removed, fmt.Errorf("read keyword set: %w", err)
		}
		var stale []string
		for _, id := range members {
			exists, err := s.backend.Exists(ctx, recordKey(id))
			if err != nil {
				return removed, fmt.Errorf("check record: %w", err)
			}
			if !exists {
				stale = append(stale, id)
			}
		}
		if len(stale) == 0 {
			continue
		}
		if err := s.backend.SRem(ctx, key, stale...); err != nil {
			return removed, fmt.Errorf("compact keyword set: %w", err)
		}
		removed += len(stale)
	}
	return removed, nil
}

// BackfillVectors embeds every record that does not yet have a vector.
// progress, when non-nil, is called after each batch with done and total
// counts. Individual embedding failures are skipped.
func (s *ChatStore) BackfillVectors(ctx context.Context, progress func(done, total int)) (int, error) {
	if s.embedder == nil || !s.vectors.Available() {
		return 0, nil
	}

	keys, err := s.backend.ScanKeys(ctx, recordKeyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("scan records: %w", err)
	}

	var pending []*ChatRecord
	for _, key := range keys {
		fields, err := s.backend.HGetAll(ctx, key)
		if err != nil {
			return 0, fmt.Errorf("fetch record: %w", err)
		}
		if len(fields) == 0 || fields[embeddingField] != "" {
			continue
		}
		pending = append(pending, recordFromFields(fields))
	}
	if len(pending) == 0 {
		return 0, nil
	}

	questions := make([]string, len(pending))
	for i, record := range pending {
		questions[i] = record.Question
	}

	indexed := 0
	results := embedding.EmbedAll(ctx, s.embedder, questions, embedding.DefaultBatchSize)
	for i, result := range results {
		if result.Err != nil {
			s.logger.Warn().Err(result.Err).Str("id", pending[i].ID).Msg("backfill embedding failed")
		} else if err := s.vectors.Add(ctx, pending[i].ID, result.Vector); err != nil {
			s.logger.Warn().Err(err).Str("id", pending[i].ID).Msg("backfill index update failed")
		} else {
			indexed++
		}
		if progress != nil {
			progress(i+1, len(pending))
		}
	}
	return indexed, nil
}

func (s *ChatStore) fetchRecords(ctx context.Context, ids []string, limit int) ([]*ChatRecord, error) {
	var records []*ChatRecord
	for _, id := range ids {
		if len(records) >= limit {
			break
		}
		fields, err := s.backend.HGetAll(ctx, recordKey(id))
		if err != nil {
			return nil, fmt.Errorf("fetch record: %w", err)
		}
		if len(fields) == 0 {
			continue
		}
		records = append(records, recordFromFields(fields))
	}
	return records, nil
}

func recordFromFields(fields map[string]string) *ChatRecord {
	millis, _ := strconv.ParseInt(fields["created_at"], 10, 64)
	return &ChatRecord{
		ID:         fields["id"],
		UserID:     fields["user_id"],
		Question:   fields["question"],
		Answer:     fields["answer"],
		RawMessage: fields["raw_message"],
		Category:   classify.Category(fields["category"]),
		CreatedAt:  time.UnixMilli(millis).UTC(),
	}
}
