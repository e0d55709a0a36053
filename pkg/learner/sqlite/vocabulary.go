package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/nabu-app/nabu/pkg/learner"
)

const vocabColumns = `learner_id, language, word, translation, mastery_level,
times_seen, times_used, last_seen_at, last_used_at, created_at`

// created_at keeps its first value across re-upserts.
const upsertVocabularySQL = `
INSERT INTO vocabulary (` + vocabColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (learner_id, language, word) DO UPDATE SET
    translation   = excluded.translation,
    mastery_level = excluded.mastery_level,
    times_seen    = excluded.times_seen,
    times_used    = excluded.times_used,
    last_seen_at  = excluded.last_seen_at,
    last_used_at  = excluded.last_used_at`

const seedVocabularySQL = `
INSERT INTO vocabulary (` + vocabColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (learner_id, language, word) DO NOTHING`

func itemArgs(item learner.VocabularyItem) []any {
	return []any{
		item.LearnerID,
		item.Language,
		item.Word,
		item.Translation,
		item.MasteryLevel,
		item.TimesSeen,
		item.TimesUsed,
		encodeTimePtr(item.LastSeenAt),
		encodeTimePtr(item.LastUsedAt),
		encodeTime(item.CreatedAt),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (learner.VocabularyItem, error) {
	var (
		item               learner.VocabularyItem
		lastSeen, lastUsed sql.NullString
		created            string
	)
	err := row.Scan(
		&item.LearnerID,
		&item.Language,
		&item.Word,
		&item.Translation,
		&item.MasteryLevel,
		&item.TimesSeen,
		&item.TimesUsed,
		&lastSeen,
		&lastUsed,
		&created,
	)
	if err != nil {
		return learner.VocabularyItem{}, err
	}
	if item.LastSeenAt, err = decodeTimePtr(lastSeen); err != nil {
		return learner.VocabularyItem{}, err
	}
	if item.LastUsedAt, err = decodeTimePtr(lastUsed); err != nil {
		return learner.VocabularyItem{}, err
	}
	if item.CreatedAt, err = decodeTime(created); err != nil {
		return learner.VocabularyItem{}, err
	}
	return item, nil
}

func collectItems(rows *sql.Rows) ([]learner.VocabularyItem, error) {
	items := []learner.VocabularyItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, storageErr("scan vocabulary", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("read vocabulary", err)
	}
	return items, nil
}

// GetVocabulary returns the learner's vocabulary in word order, narrowed by
// the given filters.
func (s *Store) GetVocabulary(ctx context.Context, learnerID, language string, opts ...learner.ListOpt) ([]learner.VocabularyItem, error) {
	params := learner.ApplyListOpts(opts)

	conditions := []string{"learner_id = ?", "language = ?"}
	args := []any{learnerID, language}
	if params.HasMinMastery {
		conditions = append(conditions, "mastery_level >= ?")
		args = append(args, params.MinMastery)
	}
	if params.HasMaxMastery {
		conditions = append(conditions, "mastery_level <= ?")
		args = append(args, params.MaxMastery)
	}

	query := "SELECT " + vocabColumns + " FROM vocabulary WHERE " +
		strings.Join(conditions, " AND ") + " ORDER BY word"
	if params.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, params.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("get vocabulary", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// GetWord returns a single vocabulary item, or (nil, nil) when the learner
// has no such word.
func (s *Store) GetWord(ctx context.Context, learnerID, language, word string) (*learner.VocabularyItem, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+vocabColumns+" FROM vocabulary WHERE learner_id = ? AND language = ? AND word = ?",
		learnerID, language, word)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get word", err)
	}
	return &item, nil
}

// UpsertVocabulary inserts or fully replaces a vocabulary item.
func (s *Store) UpsertVocabulary(ctx context.Context, item learner.VocabularyItem) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("%w: %w", learner.ErrInvalidRecord, err)
	}
	if _, err := s.db.ExecContext(ctx, upsertVocabularySQL, itemArgs(item)...); err != nil {
		return storageErr("upsert vocabulary", err)
	}
	return nil
}

// SeedVocabulary inserts the items that do not already exist and reports how
// many were created. Existing items are never modified.
func (s *Store) SeedVocabulary(ctx context.Context, items []learner.VocabularyItem) (int, error) {
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return 0, fmt.Errorf("%w: item %d (word %q): %w", learner.ErrInvalidRecord, i, item.Word, err)
		}
	}
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("seed vocabulary", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, seedVocabularySQL)
	if err != nil {
		return 0, storageErr("seed vocabulary", err)
	}
	defer stmt.Close()

	created := 0
	for _, item := range items {
		res, err := stmt.ExecContext(ctx, itemArgs(item)...)
		if err != nil {
			return 0, storageErr(fmt.Sprintf("seed %q", item.Word), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, storageErr("seed vocabulary", err)
		}
		created += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, storageErr("seed vocabulary", err)
	}
	return created, nil
}
