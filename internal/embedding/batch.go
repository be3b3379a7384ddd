package embedding

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize bounds concurrent embedding requests against the provider.
const DefaultBatchSize = 20

// BatchResult holds the embedding for one input text. Vector is nil when the
// request for that text failed; batch embedding is best-effort and a single
// failure never aborts the whole run.
type BatchResult struct {
	Index  int
	Vector []float32
	Err    error
}

// EmbedAll embeds texts in fixed-size batches. Within a batch every request
// is issued concurrently; batches run sequentially, so at most batchSize
// requests are in flight at any time.
func EmbedAll(ctx context.Context, embedder Embedder, texts []string, batchSize int) []BatchResult {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	results := make([]BatchResult, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				vec, err := embedder.EmbedSingle(gctx, texts[i])
				results[i] = BatchResult{Index: i, Vector: vec, Err: err}
				// Individual failures are recorded, not propagated.
				return nil
			})
		}
		// Only a cancelled context can surface here.
		if err := g.Wait(); err != nil {
			for i := start; i < end; i++ {
				if results[i].Vector == nil && results[i].Err == nil {
					results[i] = BatchResult{Index: i, Err: err}
				}
			}
			return results
		}
	}
	return results
}
