package maintenance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/conc/pool"

	"github.com/nabu-app/nabu/pkg/learner"
)

const (
	// backfillLimit caps how many missing items one run picks up. The next
	// run continues where this one left off.
	backfillLimit = 256

	// embedBatchSize is how many texts go to the provider per request.
	embedBatchSize = 32

	// backfillWorkers bounds concurrent embedding requests.
	backfillWorkers = 4
)

// runBackfill finds vocabulary items without an embedding and fills them in.
// Each batch that succeeds is persisted immediately, so a mid-run provider
// failure loses no progress.
func (s *Scheduler) runBackfill(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	items, err := s.semantic.MissingEmbeddings(ctx, backfillLimit)
	if err != nil {
		slog.Error("maintenance: listing items without embeddings failed", "error", err)
		return
	}
	if len(items) == 0 {
		return
	}

	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(backfillWorkers)
	for start := 0; start < len(items); start += embedBatchSize {
		batch := items[start:min(start+embedBatchSize, len(items))]
		p.Go(func(ctx context.Context) error {
			return s.embedBatch(ctx, batch)
		})
	}
	if err := p.Wait(); err != nil {
		slog.Error("maintenance: embedding backfill incomplete",
			"items", len(items),
			"error", err,
		)
		return
	}
	slog.Info("maintenance: embedding backfill complete",
		"items", len(items),
		"model", s.embedder.ModelID(),
	)
}

// embedBatch embeds one batch of items and stores each vector.
func (s *Scheduler) embedBatch(ctx context.Context, items []learner.VocabularyItem) error {
	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = embeddingText(item)
	}

	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch of %d: %w", len(items), err)
	}
	if len(vecs) != len(items) {
		return fmt.Errorf("embed batch returned %d vectors for %d texts", len(vecs), len(items))
	}

	for i, item := range items {
		if err := s.semantic.UpdateEmbedding(ctx, item.LearnerID, item.Language, item.Word, vecs[i]); err != nil {
			return fmt.Errorf("store embedding for %q: %w", item.Word, err)
		}
	}
	return nil
}

// embeddingText is the string embedded for a vocabulary item. Including the
// translation gives the vector bilingual context, so related-word search
// works from either language.
func embeddingText(item learner.VocabularyItem) string {
	if item.Translation == "" {
		return item.Word
	}
	return item.Word + " (" + item.Translation + ")"
}
