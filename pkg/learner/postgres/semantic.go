package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/nabu-app/nabu/pkg/learner"
)

// SearchRelated implements [learner.SemanticIndex.SearchRelated]. It finds
// the topK items for the learner and language whose embeddings are closest
// (cosine distance) to the query embedding; items without an embedding never
// match.
//
// Results are ordered by ascending distance (most similar first).
func (s *Store) SearchRelated(ctx context.Context, learnerID, lang string, embedding []float32, topK int) ([]learner.RelatedWord, error) {
	if topK <= 0 {
		return []learner.RelatedWord{}, nil
	}

	const q = `
		SELECT ` + vocabColumns + `,
		       embedding <=> $1 AS distance
		FROM   vocabulary
		WHERE  learner_id = $2 AND language = $3 AND embedding IS NOT NULL
		ORDER  BY distance
		LIMIT  $4`

	queryVec := pgvector.NewVector(embedding)
	rows, err := s.pool.Query(ctx, q, queryVec, learnerID, lang, topK)
	if err != nil {
		return nil, storageErr("search related", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (learner.RelatedWord, error) {
		var rw learner.RelatedWord
		err := row.Scan(
			&rw.Item.LearnerID,
			&rw.Item.Language,
			&rw.Item.Word,
			&rw.Item.Translation,
			&rw.Item.MasteryLevel,
			&rw.Item.TimesSeen,
			&rw.Item.TimesUsed,
			&rw.Item.LastSeenAt,
			&rw.Item.LastUsedAt,
			&rw.Item.CreatedAt,
			&rw.Distance,
		)
		return rw, err
	})
	if err != nil {
		return nil, storageErr("search related", err)
	}
	if results == nil {
		results = []learner.RelatedWord{}
	}
	return results, nil
}

// UpdateEmbedding implements [learner.SemanticIndex.UpdateEmbedding].
func (s *Store) UpdateEmbedding(ctx context.Context, learnerID, lang, word string, embedding []float32) error {
	const q = `
		UPDATE vocabulary
		SET    embedding = $4
		WHERE  learner_id = $1 AND language = $2 AND word = $3`

	ct, err := s.pool.Exec(ctx, q, learnerID, lang, word, pgvector.NewVector(embedding))
	if err != nil {
		return storageErr("update embedding", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("postgres store: update embedding for %q: %w", word, learner.ErrNotFound)
	}
	return nil
}

// MissingEmbeddings implements [learner.SemanticIndex.MissingEmbeddings],
// returning up to limit items across all learners that have no embedding
// yet, oldest first. The backfill calls this on a schedule until it drains.
func (s *Store) MissingEmbeddings(ctx context.Context, limit int) ([]learner.VocabularyItem, error) {
	if limit <= 0 {
		return []learner.VocabularyItem{}, nil
	}

	const q = `
		SELECT ` + vocabColumns + `
		FROM   vocabulary
		WHERE  embedding IS NULL
		ORDER  BY created_at
		LIMIT  $1`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, storageErr("missing embeddings", err)
	}
	items, err := collectItems(rows)
	if err != nil {
		return nil, storageErr("missing embeddings", err)
	}
	return items, nil
}
