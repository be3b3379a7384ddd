package monitoring

import (
	"context"
	"time"

	"github.com/klasshub/faq-engine/internal/observability"
	"github.com/klasshub/faq-engine/internal/store"
)

// Compactor periodically prunes keyword index entries that outlived their
// records. Eviction deliberately leaves these entries behind; compaction
// bounds how long they accumulate.
type Compactor struct {
	store    *store.ChatStore
	interval time.Duration
	logger   *observability.Logger
}

// NewCompactor creates a compactor running at the given interval.
func NewCompactor(chatStore *store.ChatStore, interval time.Duration, logger *observability.Logger) *Compactor {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Compactor{
		store:    chatStore,
		interval: interval,
		logger:   logger.WithComponent("compactor"),
	}
}

// Run compacts on the configured interval until ctx is cancelled.
func (c *Compactor) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single compaction pass and reports how many stale
// entries were removed.
func (c *Compactor) RunOnce(ctx context.Context) int {
	start := time.Now()
	removed, err := c.store.CompactKeywords(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("keyword compaction failed")
		return removed
	}
	c.logger.Info().
		Int("removed", removed).
		Dur("took", time.Since(start)).
		Msg("keyword compaction complete")
	return removed
}
