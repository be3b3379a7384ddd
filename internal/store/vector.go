package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/klasshub/faq-engine/internal/observability"
)

// VectorHit is one nearest-neighbor result.
type VectorHit struct {
	ID    string
	Score float64 // cosine similarity, 1 is identical
}

// VectorIndex performs approximate nearest-neighbor search over question
// embeddings. Implementations report Available so the pipeline can skip the
// semantic tier when no index backs the store.
type VectorIndex interface {
	Available() bool
	Count(ctx context.Context) (int64, error)
	Add(ctx context.Context, id string, vector []float32) error
	Search(ctx context.Context, vector []float32, k int, minScore float64) ([]VectorHit, error)
}

const (
	searchIndexName = "idx:chat:questions"
	embeddingField  = "embedding"
)

// SearchIndex implements VectorIndex on the RediSearch module. The module is
// optional: availability is probed once at construction and never rechecked,
// and every method degrades to a no-op when the probe failed.
type SearchIndex struct {
	client    *redis.Client
	dimension int
	available bool
	logger    *observability.Logger
}

// NewSearchIndex probes for the RediSearch module and, when present, ensures
// the HNSW index over chat record hashes exists. A missing module is not an
// error; the returned index simply reports unavailable.
func NewSearchIndex(ctx context.Context, client *redis.Client, dimension int, logger *observability.Logger) *SearchIndex {
	if logger == nil {
		logger = observability.Nop()
	}
	idx := &SearchIndex{
		client:    client,
		dimension: dimension,
		logger:    logger.WithComponent("vector-index"),
	}

	if _, err := client.Do(ctx, "FT._LIST").Result(); err != nil {
		idx.logger.Warn().Err(err).Msg("search module not available, vector tier disabled")
		return idx
	}

	if err := idx.ensureIndex(ctx); err != nil {
		idx.logger.Warn().Err(err).Msg("could not create vector index, vector tier disabled")
		return idx
	}

	idx.available = true
	idx.logger.Info().Int("dimension", dimension).Msg("vector index ready")
	return idx
}

func (idx *SearchIndex) ensureIndex(ctx context.Context) error {
	if _, err := idx.client.Do(ctx, "FT.INFO", searchIndexName).Result(); err == nil {
		return nil
	}

	_, err := idx.client.Do(ctx,
		"FT.CREATE", searchIndexName,
		"ON", "HASH",
		"PREFIX", "1", recordKeyPrefix,
		"SCHEMA",
		"question", "TEXT",
		embeddingField, "VECTOR", "HNSW", "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(idx.dimension),
		"DISTANCE_METRIC", "COSINE",
	).Result()
	if err != nil {
		return fmt.Errorf("create search index: %w", err)
	}
	return nil
}

// Available reports whether the search module backed index is usable.
func (idx *SearchIndex) Available() bool {
	return idx.available
}

// Count returns the number of indexed records.
func (idx *SearchIndex) Count(ctx context.Context) (int64, error) {
	if !idx.available {
		return 0, nil
	}
	reply, err := idx.client.Do(ctx, "FT.SEARCH", searchIndexName, "*", "LIMIT", "0", "0").Result()
	if err != nil {
		return 0, fmt.Errorf("count indexed records: %w", err)
	}
	return parseSearchTotal(reply), nil
}

// Add stores the embedding on the record hash so the index picks it up.
func (idx *SearchIndex) Add(ctx context.Context, id string, vector []float32) error {
	if !idx.available {
		return nil
	}
	if err := idx.client.HSet(ctx, recordKey(id), embeddingField, encodeVector(vector)).Err(); err != nil {
		return fmt.Errorf("store embedding: %w", err)
	}
	return nil
}

// Search runs a KNN query and returns hits at or above minScore, ordered by
// similarity descending.
func (idx *SearchIndex) Search(ctx context.Context, vector []float32, k int, minScore float64) ([]VectorHit, error) {
	if !idx.available {
		return nil, nil
	}

	query := fmt.Sprintf("*=>[KNN %d @%s $vec AS distance]", k, embeddingField)
	reply, err := idx.client.Do(ctx,
		"FT.SEARCH", searchIndexName, query,
		"PARAMS", "2", "vec", encodeVector(vector),
		"SORTBY", "distance",
		"RETURN", "1", "distance",
		"LIMIT", "0", strconv.Itoa(k),
		"DIALECT", "2",
	).Result()
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}

	hits := parseSearchHits(reply)
	out := hits[:0]
	for _, h := range hits {
		if h.Score >= minScore {
			out = append(out, h)
		}
	}
	return out, nil
}

// SearchText runs a full-text query over stored questions and returns the
// matching record IDs. Unavailable or failing backends yield no results.
func (idx *SearchIndex) SearchText(ctx context.Context, query string, limit int) ([]string, error) {
	if !idx.available || query == "" {
		return nil, nil
	}
	reply, err := idx.client.Do(ctx,
		"FT.SEARCH", searchIndexName, "@question:("+query+")",
		"NOCONTENT",
		"LIMIT", "0", strconv.Itoa(limit),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}

	var ids []string
	appendKey := func(v interface{}) {
		key, ok := v.(string)
		if !ok || len(key) <= len(recordKeyPrefix) {
			return
		}
		ids = append(ids, key[len(recordKeyPrefix):])
	}
	switch r := reply.(type) {
	case []interface{}:
		// NOCONTENT RESP2: [total, key1, key2, ...]
		for i := 1; i < len(r); i++ {
			appendKey(r[i])
		}
	case map[interface{}]interface{}:
		for _, doc := range toSlice(r["results"]) {
			key, _ := parseResultDoc(doc)
			appendKey(key)
		}
	case map[string]interface{}:
		for _, doc := range toSlice(r["results"]) {
			key, _ := parseResultDoc(doc)
			appendKey(key)
		}
	}
	return ids, nil
}

// TextSearcher is the optional full-text lookup a vector index may support.
type TextSearcher interface {
	SearchText(ctx context.Context, query string, limit int) ([]string, error)
}

var _ TextSearcher = (*SearchIndex)(nil)

// parseSearchTotal extracts the total result count from an FT.SEARCH reply.
// The reply shape differs between RESP2 (flat array headed by the count) and
// RESP3 (map with total_results), so both are handled and anything else
// yields zero.
func parseSearchTotal(reply interface{}) int64 {
	switch r := reply.(type) {
	case []interface{}:
		if len(r) == 0 {
			return 0
		}
		return toInt64(r[0])
	case map[interface{}]interface{}:
		return toInt64(r["total_results"])
	case map[string]interface{}:
		return toInt64(r["total_results"])
	}
	return 0
}

// parseSearchHits walks an FT.SEARCH reply without trusting its shape.
// Malformed entries are skipped rather than failing the whole search.
func parseSearchHits(reply interface{}) []VectorHit {
	var hits []VectorHit

	appendHit := func(key string, fields map[string]string) {
		if len(key) <= len(recordKeyPrefix) {
			return
		}
		dist, err := strconv.ParseFloat(fields["distance"], 64)
		if err != nil {
			return
		}
		hits = append(hits, VectorHit{
			ID:    key[len(recordKeyPrefix):],
			Score: 1 - dist,
		})
	}

	switch r := reply.(type) {
	case []interface{}:
		// RESP2: [total, key1, [field, value, ...], key2, ...]
		for i := 1; i+1 < len(r); i += 2 {
			key, ok := r[i].(string)
			if !ok {
				continue
			}
			appendHit(key, toFieldMap(r[i+1]))
		}
	case map[interface{}]interface{}:
		for _, doc := range toSlice(r["results"]) {
			key, fields := parseResultDoc(doc)
			appendHit(key, fields)
		}
	case map[string]interface{}:
		for _, doc := range toSlice(r["results"]) {
			key, fields := parseResultDoc(doc)
			appendHit(key, fields)
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits
}

// parseResultDoc extracts the key and attribute map from one RESP3 result
// document.
func parseResultDoc(doc interface{}) (string, map[string]string) {
	fields := make(map[string]string)
	var key string

	get := func(m func(string) interface{}) {
		if id, ok := m("id").(string); ok {
			key = id
		}
		attrs := m("extra_attributes")
		switch a := attrs.(type) {
		case map[interface{}]interface{}:
			for k, v := range a {
				if ks, ok := k.(string); ok {
					fields[ks] = fmt.Sprintf("%v", v)
				}
			}
		case map[string]interface{}:
			for k, v := range a {
				fields[k] = fmt.Sprintf("%v", v)
			}
		}
	}

	switch d := doc.(type) {
	case map[interface{}]interface{}:
		get(func(k string) interface{} { return d[k] })
	case map[string]interface{}:
		get(func(k string) interface{} { return d[k] })
	}
	return key, fields
}

func toFieldMap(v interface{}) map[string]string {
	fields := make(map[string]string)
	pairs := toSlice(v)
	for i := 0; i+1 < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		if !ok {
			continue
		}
		fields[name] = fmt.Sprintf("%v", pairs[i+1])
	}
	return fields
}

func toSlice(v interface{}) []interface{} {
	s, _ := v.([]interface{})
	return s
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		parsed, _ := strconv.ParseInt(n, 10, 64)
		return parsed
	}
	return 0
}

// encodeVector serializes floats as little-endian float32 bytes, the layout
// RediSearch expects for FLOAT32 vector fields.
func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// MemoryVectorIndex is a brute-force cosine index for tests and local
// development.
type MemoryVectorIndex struct {
	mu      sync.RWMutex
	vectors map[string][]float32
}

// NewMemoryVectorIndex creates an empty in-memory index.
func NewMemoryVectorIndex() *MemoryVectorIndex {
	return &MemoryVectorIndex{vectors: make(map[string][]float32)}
}

func (idx *MemoryVectorIndex) Available() bool {
	return true
}

func (idx *MemoryVectorIndex) Count(ctx context.Context) (int64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return int64(len(idx.vectors)), nil
}

func (idx *MemoryVectorIndex) Add(ctx context.Context, id string, vector []float32) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	stored := make([]float32, len(vector))
	copy(stored, vector)
	idx.vectors[id] = stored
	return nil
}

// Remove drops an entry from the index.
func (idx *MemoryVectorIndex) Remove(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.vectors, id)
}

func (idx *MemoryVectorIndex) Search(ctx context.Context, vector []float32, k int, minScore float64) ([]VectorHit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var hits []VectorHit
	for id, stored := range idx.vectors {
		score := cosineSimilarity(vector, stored)
		if score >= minScore {
			hits = append(hits, VectorHit{ID: id, Score: score})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// NopVectorIndex is a permanently unavailable index.
type NopVectorIndex struct{}

func (NopVectorIndex) Available() bool { return false }

func (NopVectorIndex) Count(ctx context.Context) (int64, error) { return 0, nil }

func (NopVectorIndex) Add(ctx context.Context, id string, vector []float32) error {
	return nil
}
func (NopVectorIndex) Search(ctx context.Context, vector []float32, k int, minScore float64) ([]VectorHit, error) {
	return nil, nil
}

var (
	_ VectorIndex = (*SearchIndex)(nil)
	_ VectorIndex = (*MemoryVectorIndex)(nil)
	_ VectorIndex = NopVectorIndex{}
)
