// Package monitoring provides query auditing and background maintenance for
// the FAQ engine.
package monitoring

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/klasshub/faq-engine/internal/config"
	"github.com/klasshub/faq-engine/internal/observability"
	"github.com/klasshub/faq-engine/internal/retrieval"
)

// QueryEvent is one audited lookup outcome.
type QueryEvent struct {
	ID          uuid.UUID
	Query       string
	Stage       retrieval.Stage
	Found       bool
	Score       float64
	Synthesized bool
	Latency     time.Duration
	OccurredAt  time.Time
}

// AuditStore persists query events to a relational database, sqlite for
// development and postgres in deployment. Audit writes are best-effort from
// the caller's point of view; a failed write never fails the lookup.
type AuditStore struct {
	db     *sql.DB
	logger *observability.Logger
}

const auditSchema = `
CREATE TABLE IF NOT EXISTS query_events (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	stage TEXT NOT NULL,
	found BOOLEAN NOT NULL,
	score REAL NOT NULL,
	synthesized BOOLEAN NOT NULL,
	latency_ms INTEGER NOT NULL,
	occurred_at TIMESTAMP NOT NULL
)`

// OpenAuditStore opens the audit database for the configured driver and
// ensures the schema exists.
func OpenAuditStore(cfg config.AuditConfig, logger *observability.Logger) (*AuditStore, error) {
	var driver string
	switch cfg.Driver {
	case "sqlite":
		driver = "sqlite3"
	case "postgres":
		driver = "postgres"
	default:
		return nil, fmt.Errorf("unsupported audit driver: %s", cfg.Driver)
	}

	dsn := cfg.SQLite.Path
	if cfg.Driver == "postgres" {
		dsn = cfg.Postgres.DSN
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	if cfg.Driver == "sqlite" {
		db.SetMaxOpenConns(cfg.SQLite.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
	}

	if _, err := db.Exec(auditSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit schema: %w", err)
	}

	if logger == nil {
		logger = observability.Nop()
	}
	return &AuditStore{db: db, logger: logger.WithComponent("audit")}, nil
}

// NewAuditStore wraps an existing database handle, used by tests.
func NewAuditStore(db *sql.DB, logger *observability.Logger) (*AuditStore, error) {
	if _, err := db.Exec(auditSchema); err != nil {
		return nil, fmt.Errorf("create audit schema: %w", err)
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &AuditStore{db: db, logger: logger.WithComponent("audit")}, nil
}

// Record persists one query event.
func (s *AuditStore) Record(ctx context.Context, event QueryEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	event.OccurredAt = event.OccurredAt.UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO query_events (id, query, stage, found, score, synthesized, latency_ms, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID.String(), event.Query, string(event.Stage), event.Found,
		event.Score, event.Synthesized, event.Latency.Milliseconds(), event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("record query event: %w", err)
	}
	return nil
}

// RecordResult builds and persists an event from a pipeline outcome. Errors
// are logged, not returned.
func (s *AuditStore) RecordResult(ctx context.Context, query string, result retrieval.MatchResult, latency time.Duration) {
	err := s.Record(ctx, QueryEvent{
		Query:       query,
		Stage:       result.Stage,
		Found:       result.Found,
		Score:       result.Score,
		Synthesized: result.Synthesized,
		Latency:     latency,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("audit write failed")
	}
}

// StageCounts returns how many lookups each pipeline stage resolved since
// the given time. Misses are grouped under the empty stage.
func (s *AuditStore) StageCounts(ctx context.Context, since time.Time) (map[retrieval.Stage]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, COUNT(*) FROM query_events WHERE occurred_at >= $1 GROUP BY stage`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query stage counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[retrieval.Stage]int64)
	for rows.Next() {
		var stage string
		var count int64
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, fmt.Errorf("scan stage count: %w", err)
		}
		counts[retrieval.Stage(stage)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stage counts: %w", err)
	}
	return counts, nil
}

// Close closes the audit database.
func (s *AuditStore) Close() error {
	return s.db.Close()
}
