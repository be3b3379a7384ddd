// Package retrieval implements the escalation pipeline that answers a new
// question from previously saved exchanges: category recency, vector KNN,
// keyword supplement, lexical scoring, then AI grading and AI synthesis.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/klasshub/faq-engine/internal/classify"
	"github.com/klasshub/faq-engine/internal/embedding"
	"github.com/klasshub/faq-engine/internal/judge"
	"github.com/klasshub/faq-engine/internal/lexical"
	"github.com/klasshub/faq-engine/internal/observability"
	"github.com/klasshub/faq-engine/internal/store"
)

const (
	// categoryPoolSize is how many recent records seed the candidate pool.
	categoryPoolSize = 30
	// knnK and knnMinScore bound the vector tier.
	knnK        = 10
	knnMinScore = 0.7
	// supplementThreshold triggers the keyword tier when the pool is thin.
	supplementThreshold = 5
	// acceptThreshold admits a candidate from the lexical or AI-graded tier.
	acceptThreshold = 0.7
	// returnThreshold is the minimum score a graded match needs to be
	// returned to the caller.
	returnThreshold = 0.8
	// judgeCandidates and synthesisCandidates cap how many pool entries the
	// AI tiers see.
	judgeCandidates     = 3
	synthesisCandidates = 5
	// synthesisConfidence is the fixed score attached to synthesized answers.
	synthesisConfidence = 0.95
)

// Stage names the pipeline tier that produced a match.
type Stage string

const (
	StageNone      Stage = ""
	StageLexical   Stage = "lexical"
	StageAIGrade   Stage = "ai-grade"
	StageSynthesis Stage = "synthesis"
)

// Answer is the payload of a match.
type Answer struct {
	Score   float64 `json:"score"`
	Message string  `json:"message"`
}

// MatchResult is the outcome of FindBestAnswer. A zero value means no match.
type MatchResult struct {
	Found           bool    `json:"found"`
	Score           float64 `json:"score,omitempty"`
	MatchedQuestion string  `json:"matchedQuestion,omitempty"`
	Answer          *Answer `json:"answer,omitempty"`
	Synthesized     bool    `json:"synthesized,omitempty"`
	Stage           Stage   `json:"stage,omitempty"`
}

// Config tunes the pipeline's external-call timeouts.
type Config struct {
	EmbedTimeout time.Duration // default 10s
	JudgeTimeout time.Duration // default 30s
}

// Pipeline answers questions from the chat store, escalating through
// progressively more expensive tiers. The embedder and judge are optional;
// a nil capability silently disables its tier.
type Pipeline struct {
	store    *store.ChatStore
	embedder embedding.Embedder
	judge    judge.Judge
	cfg      Config
	logger   *observability.Logger
}

// NewPipeline creates a pipeline over the given store and capabilities.
func NewPipeline(chatStore *store.ChatStore, embedder embedding.Embedder, j judge.Judge, cfg Config, logger *observability.Logger) *Pipeline {
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = 10 * time.Second
	}
	if cfg.JudgeTimeout <= 0 {
		cfg.JudgeTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Pipeline{
		store:    chatStore,
		embedder: embedder,
		judge:    j,
		cfg:      cfg,
		logger:   logger.WithComponent("retrieval"),
	}
}

type scoredCandidate struct {
	record *store.ChatRecord
	score  float64
}

// FindBestAnswer runs the escalation pipeline for query. Infrastructure
// failures at any tier are logged and treated as that tier yielding nothing,
// so the caller only ever sees a match or a clean miss.
func (p *Pipeline) FindBestAnswer(ctx context.Context, query string) (MatchResult, error) {
	if query == "" {
		return MatchResult{}, fmt.Errorf("query is required")
	}

	pool := p.gatherCandidates(ctx, query)
	if len(pool) == 0 {
		return MatchResult{}, nil
	}

	accepted := p.scoreLexically(query, pool)
	stage := StageLexical

	if len(accepted) == 0 {
		accepted = p.gradeWithJudge(ctx, query, pool)
		stage = StageAIGrade
	}

	if len(accepted) > 0 {
		best := accepted[0]
		if best.score > returnThreshold {
			p.logger.Debug().
				Str("stage", string(stage)).
				Float64("score", best.score).
				Msg("match found")
			return MatchResult{
				Found:           true,
				Score:           best.score,
				MatchedQuestion: best.record.Question,
				Answer:          &Answer{Score: best.score, Message: best.record.Answer},
				Stage:           stage,
			}, nil
		}
		// A graded best below the return threshold is a miss; synthesis only
		// runs when grading produced nothing at all.
		return MatchResult{}, nil
	}

	return p.synthesize(ctx, query, pool), nil
}

// gatherCandidates assembles the candidate pool: category recency first,
// vector neighbors second, keyword matches when the pool is still thin.
// The pool preserves insertion order and is de-duplicated by record ID.
func (p *Pipeline) gatherCandidates(ctx context.Context, query string) []*store.ChatRecord {
	category := classify.Classify(query)

	pool, err := p.store.SearchByCategory(ctx, category, categoryPoolSize)
	if err != nil {
		p.logger.Warn().Err(err).Str("category", string(category)).Msg("category lookup failed")
		pool = nil
	}

	seen := make(map[string]struct{}, len(pool))
	for _, record := range pool {
		seen[record.ID] = struct{}{}
	}

	for _, record := range p.vectorNeighbors(ctx, query) {
		if _, ok := seen[record.ID]; ok {
			continue
		}
		seen[record.ID] = struct{}{}
		pool = append(pool, record)
	}

	if len(pool) < supplementThreshold {
		keywords := lexical.ExtractKeywords(query)
		if len(keywords) > 0 {
			records, err := p.store.SearchByKeywords(ctx, keywords, categoryPoolSize)
			if err != nil {
				p.logger.Warn().Err(err).Msg("keyword lookup failed")
			}
			for _, record := range records {
				if _, ok := seen[record.ID]; ok {
					continue
				}
				seen[record.ID] = struct{}{}
				pool = append(pool, record)
			}
		}
	}

	return pool
}

// vectorNeighbors embeds the query and fetches its nearest stored questions.
// The index count is consulted first so an empty store never pays for an
// embedding call.
func (p *Pipeline) vectorNeighbors(ctx context.Context, query string) []*store.ChatRecord {
	index := p.store.Vectors()
	if p.embedder == nil || !index.Available() {
		return nil
	}

	count, err := index.Count(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Msg("vector count failed")
		return nil
	}
	if count == 0 {
		return nil
	}

	embedCtx, cancel := context.WithTimeout(ctx, p.cfg.EmbedTimeout)
	defer cancel()
	vector, err := p.embedder.EmbedSingle(embedCtx, query)
	if err != nil {
		p.logger.Warn().Err(err).Msg("query embedding failed")
		return nil
	}

	hits, err := index.Search(ctx, vector, knnK, knnMinScore)
	if err != nil {
		p.logger.Warn().Err(err).Msg("vector search failed")
		return nil
	}

	var records []*store.ChatRecord
	for _, hit := range hits {
		record, err := p.store.Get(ctx, hit.ID)
		if err != nil {
			continue
		}
		records = append(records, record)
	}
	return records
}

// scoreLexically grades every pool candidate and keeps those at or above the
// accept threshold, best first.
func (p *Pipeline) scoreLexically(query string, pool []*store.ChatRecord) []scoredCandidate {
	var accepted []scoredCandidate
	for _, record := range pool {
		score := lexical.Score(query, record.Question)
		if score >= acceptThreshold {
			accepted = append(accepted, scoredCandidate{record: record, score: score})
		}
	}
	sort.SliceStable(accepted, func(i, j int) bool { return accepted[i].score > accepted[j].score })
	return accepted
}

// gradeWithJudge asks the AI judge to score the first few pool candidates in
// insertion order. Judge failures count as zero signal for that candidate.
func (p *Pipeline) gradeWithJudge(ctx context.Context, query string, pool []*store.ChatRecord) []scoredCandidate {
	if p.judge == nil {
		return nil
	}

	limit := judgeCandidates
	if len(pool) < limit {
		limit = len(pool)
	}

	var accepted []scoredCandidate
	for _, record := range pool[:limit] {
		judgeCtx, cancel := context.WithTimeout(ctx, p.cfg.JudgeTimeout)
		score, err := p.judge.GradeSimilarity(judgeCtx, query, record.Question)
		cancel()
		if err != nil {
			p.logger.Warn().Err(err).Str("id", record.ID).Msg("similarity grading failed")
			continue
		}
		if score >= acceptThreshold {
			accepted = append(accepted, scoredCandidate{record: record, score: score})
		}
	}
	sort.SliceStable(accepted, func(i, j int) bool { return accepted[i].score > accepted[j].score })
	return accepted
}

// synthesize asks the judge to author an answer from the pool. The result
// carries a fixed confidence rather than a measured similarity.
func (p *Pipeline) synthesize(ctx context.Context, query string, pool []*store.ChatRecord) MatchResult {
	if p.judge == nil {
		return MatchResult{}
	}

	limit := synthesisCandidates
	if len(pool) < limit {
		limit = len(pool)
	}
	candidates := make([]judge.QA, 0, limit)
	for _, record := range pool[:limit] {
		candidates = append(candidates, judge.QA{Question: record.Question, Answer: record.Answer})
	}

	judgeCtx, cancel := context.WithTimeout(ctx, p.cfg.JudgeTimeout)
	defer cancel()
	message, err := p.judge.Synthesize(judgeCtx, query, candidates)
	if err != nil {
		p.logger.Warn().Err(err).Msg("answer synthesis failed")
		return MatchResult{}
	}

	return MatchResult{
		Found:       true,
		Score:       synthesisConfidence,
		Answer:      &Answer{Score: synthesisConfidence, Message: message},
		Synthesized: true,
		Stage:       StageSynthesis,
	}
}

// SearchChat returns candidate records for a query: the category's most
// recent records merged with full-text matches when the search backend is
// present, de-duplicated by record ID.
func (p *Pipeline) SearchChat(ctx context.Context, query string) ([]*store.ChatRecord, error) {
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	category := classify.Classify(query)
	records, err := p.store.SearchByCategory(ctx, category, categoryPoolSize)
	if err != nil {
		p.logger.Warn().Err(err).Str("category", string(category)).Msg("category lookup failed")
		records = nil
	}

	seen := make(map[string]struct{}, len(records))
	for _, record := range records {
		seen[record.ID] = struct{}{}
	}

	if searcher, ok := p.store.Vectors().(store.TextSearcher); ok {
		keywords := lexical.ExtractKeywords(query)
		if len(keywords) > 0 {
			textQuery := ""
			for i, kw := range keywords {
				if i > 0 {
					textQuery += "|"
				}
				textQuery += kw
			}
			ids, err := searcher.SearchText(ctx, textQuery, categoryPoolSize)
			if err != nil {
				p.logger.Warn().Err(err).Msg("text search failed")
			}
			for _, id := range ids {
				if _, ok := seen[id]; ok {
					continue
				}
				record, err := p.store.Get(ctx, id)
				if err != nil {
					continue
				}
				seen[id] = struct{}{}
				records = append(records, record)
			}
		}
	}

	return records, nil
}
