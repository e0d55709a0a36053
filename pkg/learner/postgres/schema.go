// Package postgres provides a PostgreSQL-backed implementation of the
// learner storage interfaces ([learner.Store] and [learner.SemanticIndex]).
//
// Vocabulary rows carry an optional pgvector embedding column, so related-word
// search and the embedding backfill operate on the same table the learning
// state lives in. The pgvector extension must be available in the target
// database; [Migrate] installs it automatically via CREATE EXTENSION IF NOT
// EXISTS.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, 1536)
//	if err != nil { … }
//	defer store.Close()
//
//	items, _ := store.GetVocabulary(ctx, "learner-1", "es", learner.WithMaxMastery(0.5))
//	_ = store.ApplyTurn(ctx, commit)
//	related, _ := store.SearchRelated(ctx, "learner-1", "es", queryVec, 5)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ─────────────────────────────────────────────────────────────────────────────
// DDL — vocabulary (learning state + embedding)
// ─────────────────────────────────────────────────────────────────────────────

// ddlVocabulary returns the vocabulary DDL with the embedding dimension
// substituted. The vector dimension is baked into the column type at schema
// creation time.
func ddlVocabulary(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS vocabulary (
    learner_id    TEXT              NOT NULL,
    language      TEXT              NOT NULL,
    word          TEXT              NOT NULL,
    translation   TEXT              NOT NULL DEFAULT '',
    mastery_level DOUBLE PRECISION  NOT NULL DEFAULT 0,
    times_seen    INTEGER           NOT NULL DEFAULT 0,
    times_used    INTEGER           NOT NULL DEFAULT 0,
    last_seen_at  TIMESTAMPTZ,
    last_used_at  TIMESTAMPTZ,
    created_at    TIMESTAMPTZ       NOT NULL DEFAULT now(),
    embedding     vector(%d),
    PRIMARY KEY (learner_id, language, word)
);

CREATE INDEX IF NOT EXISTS idx_vocabulary_mastery
    ON vocabulary (learner_id, language, mastery_level);

CREATE INDEX IF NOT EXISTS idx_vocabulary_embedding
    ON vocabulary USING hnsw (embedding vector_cosine_ops);

CREATE INDEX IF NOT EXISTS idx_vocabulary_missing_embedding
    ON vocabulary (created_at) WHERE embedding IS NULL;
`, embeddingDimensions)
}

// ─────────────────────────────────────────────────────────────────────────────
// DDL — profiles
// ─────────────────────────────────────────────────────────────────────────────

const ddlProfiles = `
CREATE TABLE IF NOT EXISTS profiles (
    learner_id           TEXT              NOT NULL,
    language             TEXT              NOT NULL,
    proficiency_estimate DOUBLE PRECISION  NOT NULL DEFAULT 0,
    engagement_score     DOUBLE PRECISION  NOT NULL DEFAULT 0,
    learning_style       TEXT              NOT NULL DEFAULT '',
    difficulties         TEXT[]            NOT NULL DEFAULT '{}',
    created_at           TIMESTAMPTZ       NOT NULL DEFAULT now(),
    updated_at           TIMESTAMPTZ       NOT NULL DEFAULT now(),
    PRIMARY KEY (learner_id, language)
);
`

// Migrate creates or ensures all required database tables and extensions
// exist. It is idempotent (CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT
// EXISTS) and safe to call on every application start.
//
// embeddingDimensions must match the embedding model configured for the
// deployment (e.g., 1536 for OpenAI text-embedding-3-small, 768 for
// nomic-embed-text). Changing this value after the first migration requires a
// manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlVocabulary(embeddingDimensions),
		ddlProfiles,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
