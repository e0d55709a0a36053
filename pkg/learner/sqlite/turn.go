package sqlite

import (
	"context"
	"fmt"

	"github.com/nabu-app/nabu/pkg/learner"
)

// ApplyTurn writes a turn's vocabulary updates and profile in one
// transaction; a failure rolls back the whole commit so counters and
// proficiency never diverge.
func (s *Store) ApplyTurn(ctx context.Context, commit learner.TurnCommit) error {
	if err := commit.Validate(); err != nil {
		return fmt.Errorf("%w: %w", learner.ErrInvalidRecord, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("apply turn", err)
	}
	defer tx.Rollback()

	for _, item := range commit.Items {
		if _, err := tx.ExecContext(ctx, upsertVocabularySQL, itemArgs(item)...); err != nil {
			return storageErr(fmt.Sprintf("apply turn: upsert item %q", item.Word), err)
		}
	}
	if commit.Profile != nil {
		args, err := profileArgs(*commit.Profile)
		if err != nil {
			return fmt.Errorf("%w: %w", learner.ErrInvalidRecord, err)
		}
		if _, err := tx.ExecContext(ctx, upsertProfileSQL, args...); err != nil {
			return storageErr("apply turn: upsert profile", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("apply turn", err)
	}
	return nil
}
