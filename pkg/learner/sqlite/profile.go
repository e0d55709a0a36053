package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nabu-app/nabu/pkg/learner"
)

const profileColumns = `learner_id, language, proficiency_estimate, engagement_score,
learning_style, difficulties, created_at, updated_at`

// created_at keeps its first value; everything else tracks the latest turn.
const upsertProfileSQL = `
INSERT INTO profiles (` + profileColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (learner_id, language) DO UPDATE SET
    proficiency_estimate = excluded.proficiency_estimate,
    engagement_score     = excluded.engagement_score,
    learning_style       = excluded.learning_style,
    difficulties         = excluded.difficulties,
    updated_at           = excluded.updated_at`

func profileArgs(p learner.Profile) ([]any, error) {
	difficulties := p.Difficulties
	if difficulties == nil {
		difficulties = []string{}
	}
	diffJSON, err := json.Marshal(difficulties)
	if err != nil {
		return nil, fmt.Errorf("encode difficulties: %w", err)
	}
	return []any{
		p.LearnerID,
		p.Language,
		p.ProficiencyEstimate,
		p.EngagementScore,
		string(p.LearningStyle),
		string(diffJSON),
		encodeTime(p.CreatedAt),
		encodeTime(p.UpdatedAt),
	}, nil
}

// GetProfile returns the learner's profile for a language, or (nil, nil)
// when none exists yet.
func (s *Store) GetProfile(ctx context.Context, learnerID, language string) (*learner.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE learner_id = ? AND language = ?",
		learnerID, language)

	var (
		p        learner.Profile
		style    string
		diffJSON string
		created  string
		updated  string
	)
	err := row.Scan(
		&p.LearnerID,
		&p.Language,
		&p.ProficiencyEstimate,
		&p.EngagementScore,
		&style,
		&diffJSON,
		&created,
		&updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get profile", err)
	}

	p.LearningStyle = learner.LearningStyle(style)
	if err := json.Unmarshal([]byte(diffJSON), &p.Difficulties); err != nil {
		return nil, storageErr("decode difficulties", err)
	}
	if p.Difficulties == nil {
		p.Difficulties = []string{}
	}
	if p.CreatedAt, err = decodeTime(created); err != nil {
		return nil, storageErr("get profile", err)
	}
	if p.UpdatedAt, err = decodeTime(updated); err != nil {
		return nil, storageErr("get profile", err)
	}
	return &p, nil
}

// UpsertProfile inserts or replaces the learner's profile.
func (s *Store) UpsertProfile(ctx context.Context, profile learner.Profile) error {
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("%w: %w", learner.ErrInvalidRecord, err)
	}
	args, err := profileArgs(profile)
	if err != nil {
		return fmt.Errorf("%w: %w", learner.ErrInvalidRecord, err)
	}
	if _, err := s.db.ExecContext(ctx, upsertProfileSQL, args...); err != nil {
		return storageErr("upsert profile", err)
	}
	return nil
}
