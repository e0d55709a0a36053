package curriculum

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nabu-app/nabu/pkg/learner"
)

// Importer introduces curriculum entries into a learner's vocabulary store.
type Importer struct {
	store learner.VocabularyStore
}

// NewImporter creates an [Importer] backed by the given store.
func NewImporter(store learner.VocabularyStore) *Importer {
	return &Importer{store: store}
}

// Seed inserts a list's words for one learner at mastery 0. Words the
// learner already has are left untouched; the store skips them. Words are
// lowercased so seeded items share their identity with items created from
// analysed speech. Returns the number of items actually created.
func (imp *Importer) Seed(ctx context.Context, learnerID string, list WordList) (int, error) {
	if learnerID == "" {
		return 0, fmt.Errorf("curriculum: learner id must not be empty")
	}
	if err := Validate(list); err != nil {
		return 0, fmt.Errorf("curriculum: invalid word list %q: %w", list.Name, err)
	}

	items := make([]learner.VocabularyItem, 0, len(list.Words))
	for _, entry := range list.Words {
		items = append(items, learner.VocabularyItem{
			LearnerID:   learnerID,
			Language:    list.Language,
			Word:        strings.ToLower(strings.TrimSpace(entry.Word)),
			Translation: entry.Translation,
		})
	}

	created, err := imp.store.SeedVocabulary(ctx, items)
	if err != nil {
		return created, fmt.Errorf("curriculum: seed list %q for learner %s: %w", list.Name, learnerID, err)
	}

	slog.Info("curriculum: list seeded",
		"list", list.Name,
		"language", list.Language,
		"learner_id", learnerID,
		"words", len(items),
		"created", created,
	)
	return created, nil
}
