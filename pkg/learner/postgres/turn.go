package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nabu-app/nabu/pkg/learner"
)

// ApplyTurn implements [learner.TurnCommitter.ApplyTurn]. Every touched item
// and the profile are written inside a single transaction; a failure rolls
// back the whole commit so counters and proficiency never diverge.
func (s *Store) ApplyTurn(ctx context.Context, commit learner.TurnCommit) error {
	if err := commit.Validate(); err != nil {
		return fmt.Errorf("%w: %w", learner.ErrInvalidRecord, err)
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, item := range commit.Items {
			if _, err := tx.Exec(ctx, upsertVocabularySQL, itemArgs(item)...); err != nil {
				return fmt.Errorf("upsert item %q: %w", item.Word, err)
			}
		}
		if commit.Profile != nil {
			if _, err := tx.Exec(ctx, upsertProfileSQL, profileArgs(*commit.Profile)...); err != nil {
				return fmt.Errorf("upsert profile: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return storageErr("apply turn", err)
	}
	return nil
}
