package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/nabu-app/nabu/pkg/learner"
)

// vocabColumns is the scan order shared by every vocabulary query. The
// embedding column is deliberately absent: embeddings are retrieval
// metadata, not part of the item.
const vocabColumns = `learner_id, language, word, translation, mastery_level,
       times_seen, times_used, last_seen_at, last_used_at, created_at`

// upsertVocabularySQL replaces the full item state on conflict, except
// embedding, which survives re-upserts so the backfill's work is not thrown
// away every turn.
const upsertVocabularySQL = `
	INSERT INTO vocabulary
	    (learner_id, language, word, translation, mastery_level,
	     times_seen, times_used, last_seen_at, last_used_at, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (learner_id, language, word) DO UPDATE SET
	    translation   = EXCLUDED.translation,
	    mastery_level = EXCLUDED.mastery_level,
	    times_seen    = EXCLUDED.times_seen,
	    times_used    = EXCLUDED.times_used,
	    last_seen_at  = EXCLUDED.last_seen_at,
	    last_used_at  = EXCLUDED.last_used_at`

// itemArgs produces the argument list matching upsertVocabularySQL.
func itemArgs(item learner.VocabularyItem) []any {
	return []any{
		item.LearnerID,
		item.Language,
		item.Word,
		item.Translation,
		item.MasteryLevel,
		item.TimesSeen,
		item.TimesUsed,
		item.LastSeenAt,
		item.LastUsedAt,
		item.CreatedAt,
	}
}

// GetVocabulary implements [learner.VocabularyStore.GetVocabulary].
func (s *Store) GetVocabulary(ctx context.Context, learnerID, lang string, opts ...learner.ListOpt) ([]learner.VocabularyItem, error) {
	params := learner.ApplyListOpts(opts)

	args := []any{learnerID, lang}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{"learner_id = $1", "language = $2"}
	if params.HasMinMastery {
		conditions = append(conditions, "mastery_level >= "+next(params.MinMastery))
	}
	if params.HasMaxMastery {
		conditions = append(conditions, "mastery_level <= "+next(params.MaxMastery))
	}

	q := "SELECT " + vocabColumns + "\n" +
		"FROM   vocabulary\n" +
		"WHERE  " + strings.Join(conditions, "\n  AND  ") + "\n" +
		"ORDER  BY word"

	if params.Limit > 0 {
		args = append(args, params.Limit)
		q += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, storageErr("get vocabulary", err)
	}
	items, err := collectItems(rows)
	if err != nil {
		return nil, storageErr("get vocabulary", err)
	}
	return items, nil
}

// GetWord implements [learner.VocabularyStore.GetWord]. Returns (nil, nil)
// when the item does not exist.
func (s *Store) GetWord(ctx context.Context, learnerID, lang, word string) (*learner.VocabularyItem, error) {
	const q = `
		SELECT ` + vocabColumns + `
		FROM   vocabulary
		WHERE  learner_id = $1 AND language = $2 AND word = $3`

	var it learner.VocabularyItem
	err := s.pool.QueryRow(ctx, q, learnerID, lang, word).Scan(
		&it.LearnerID,
		&it.Language,
		&it.Word,
		&it.Translation,
		&it.MasteryLevel,
		&it.TimesSeen,
		&it.TimesUsed,
		&it.LastSeenAt,
		&it.LastUsedAt,
		&it.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get word", err)
	}
	return &it, nil
}

// UpsertVocabulary implements [learner.VocabularyStore.UpsertVocabulary].
func (s *Store) UpsertVocabulary(ctx context.Context, item learner.VocabularyItem) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("%w: %w", learner.ErrInvalidRecord, err)
	}

	if _, err := s.pool.Exec(ctx, upsertVocabularySQL, itemArgs(item)...); err != nil {
		return storageErr("upsert vocabulary", err)
	}
	return nil
}

// SeedVocabulary implements [learner.VocabularyStore.SeedVocabulary]. The
// inserts are queued as a single pgx batch, so the whole seed is one round
// trip and one implicit transaction; the created count comes from the
// per-statement affected-row counts (ON CONFLICT DO NOTHING affects zero
// rows for existing identities).
func (s *Store) SeedVocabulary(ctx context.Context, items []learner.VocabularyItem) (int, error) {
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return 0, fmt.Errorf("%w: item %d (word %q): %w", learner.ErrInvalidRecord, i, item.Word, err)
		}
	}
	if len(items) == 0 {
		return 0, nil
	}

	const q = `
		INSERT INTO vocabulary
		    (learner_id, language, word, translation, mastery_level,
		     times_seen, times_used, last_seen_at, last_used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (learner_id, language, word) DO NOTHING`

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(q, itemArgs(item)...)
	}

	br := s.pool.SendBatch(ctx, batch)
	created := 0
	for range items {
		ct, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return 0, storageErr("seed vocabulary", err)
		}
		created += int(ct.RowsAffected())
	}
	if err := br.Close(); err != nil {
		return 0, storageErr("seed vocabulary", err)
	}
	return created, nil
}

// collectItems scans pgx rows into a slice of vocabulary items, normalising
// nil to an empty slice.
func collectItems(rows pgx.Rows) ([]learner.VocabularyItem, error) {
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (learner.VocabularyItem, error) {
		var it learner.VocabularyItem
		err := row.Scan(
			&it.LearnerID,
			&it.Language,
			&it.Word,
			&it.Translation,
			&it.MasteryLevel,
			&it.TimesSeen,
			&it.TimesUsed,
			&it.LastSeenAt,
			&it.LastUsedAt,
			&it.CreatedAt,
		)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan rows: %w", err)
	}
	if items == nil {
		items = []learner.VocabularyItem{}
	}
	return items, nil
}
