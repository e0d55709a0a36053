// Package sqlite provides a file-backed [learner.Store] over modernc.org/sqlite,
// a pure-Go driver that needs no CGo and no external server. It is the
// single-user deployment mode: one process, one database file.
//
// The schema matches the PostgreSQL store minus the embedding column, so the
// two backends are interchangeable behind [learner.Store]. Times are stored as
// RFC 3339 text and string slices as JSON text.
//
// Usage:
//
//	store, err := sqlite.NewStore(ctx, "/var/lib/nabu/learner.db")
//	if err != nil { ... }
//	defer store.Close()
//
//	items, err := store.GetVocabulary(ctx, learnerID, "es", learner.WithMaxMastery(0.6))
//	err = store.ApplyTurn(ctx, commit)
//	err = store.Backup(ctx, "/var/lib/nabu/learner.db.bak-20260101-000000")
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// connPragmas are applied to every pooled connection through the modernc
// `_pragma` connection-string mechanism. WAL and the busy timeout keep a
// reader from failing while a turn commit is in flight.
var connPragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(30000)",
	"foreign_keys(ON)",
	"synchronous(NORMAL)",
}

func dsn(path string) string {
	params := make([]string, len(connPragmas))
	for i, p := range connPragmas {
		params[i] = "_pragma=" + p
	}
	return "file:" + path + "?" + strings.Join(params, "&")
}

const ddlVocabulary = `
CREATE TABLE IF NOT EXISTS vocabulary (
    learner_id    TEXT NOT NULL,
    language      TEXT NOT NULL,
    word          TEXT NOT NULL,
    translation   TEXT NOT NULL DEFAULT '',
    mastery_level REAL NOT NULL DEFAULT 0,
    times_seen    INTEGER NOT NULL DEFAULT 0,
    times_used    INTEGER NOT NULL DEFAULT 0,
    last_seen_at  TEXT,
    last_used_at  TEXT,
    created_at    TEXT NOT NULL,
    PRIMARY KEY (learner_id, language, word)
);

CREATE INDEX IF NOT EXISTS idx_vocabulary_mastery
    ON vocabulary (learner_id, language, mastery_level);
`

const ddlProfiles = `
CREATE TABLE IF NOT EXISTS profiles (
    learner_id           TEXT NOT NULL,
    language             TEXT NOT NULL,
    proficiency_estimate REAL NOT NULL DEFAULT 0,
    engagement_score     REAL NOT NULL DEFAULT 0,
    learning_style       TEXT NOT NULL DEFAULT '',
    difficulties         TEXT NOT NULL DEFAULT '[]',
    created_at           TEXT NOT NULL,
    updated_at           TEXT NOT NULL,
    PRIMARY KEY (learner_id, language)
);
`

// Migrate creates the schema. Every statement is idempotent, so it is safe
// to run on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, ddl := range []string{ddlVocabulary, ddlProfiles} {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("sqlite migrate: %w", err)
		}
	}
	return nil
}
