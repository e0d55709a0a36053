package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nabu-app/nabu/pkg/learner"
)

// upsertProfileSQL replaces the full profile state on conflict; created_at
// keeps its original value.
const upsertProfileSQL = `
	INSERT INTO profiles
	    (learner_id, language, proficiency_estimate, engagement_score,
	     learning_style, difficulties, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (learner_id, language) DO UPDATE SET
	    proficiency_estimate = EXCLUDED.proficiency_estimate,
	    engagement_score     = EXCLUDED.engagement_score,
	    learning_style       = EXCLUDED.learning_style,
	    difficulties         = EXCLUDED.difficulties,
	    updated_at           = EXCLUDED.updated_at`

// profileArgs produces the argument list matching upsertProfileSQL.
func profileArgs(p learner.Profile) []any {
	difficulties := p.Difficulties
	if difficulties == nil {
		difficulties = []string{}
	}
	return []any{
		p.LearnerID,
		p.Language,
		p.ProficiencyEstimate,
		p.EngagementScore,
		string(p.LearningStyle),
		difficulties,
		p.CreatedAt,
		p.UpdatedAt,
	}
}

// GetProfile implements [learner.ProfileStore.GetProfile]. Returns (nil, nil)
// when no profile exists yet.
func (s *Store) GetProfile(ctx context.Context, learnerID, lang string) (*learner.Profile, error) {
	const q = `
		SELECT learner_id, language, proficiency_estimate, engagement_score,
		       learning_style, difficulties, created_at, updated_at
		FROM   profiles
		WHERE  learner_id = $1 AND language = $2`

	var (
		p     learner.Profile
		style string
	)
	err := s.pool.QueryRow(ctx, q, learnerID, lang).Scan(
		&p.LearnerID,
		&p.Language,
		&p.ProficiencyEstimate,
		&p.EngagementScore,
		&style,
		&p.Difficulties,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get profile", err)
	}
	p.LearningStyle = learner.LearningStyle(style)
	return &p, nil
}

// UpsertProfile implements [learner.ProfileStore.UpsertProfile].
func (s *Store) UpsertProfile(ctx context.Context, profile learner.Profile) error {
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("%w: %w", learner.ErrInvalidRecord, err)
	}

	if _, err := s.pool.Exec(ctx, upsertProfileSQL, profileArgs(profile)...); err != nil {
		return storageErr("upsert profile", err)
	}
	return nil
}
