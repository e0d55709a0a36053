package feedback

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/nabu-app/nabu/pkg/learner"
)

// Record is a single applied-turn entry in the audit log.
type Record struct {
	Timestamp          time.Time     `json:"timestamp"`
	LearnerID          string        `json:"learner_id"`
	Language           string        `json:"language"`
	WordsShown         []string      `json:"words_shown,omitempty"`
	WordsUsed          []UsageRecord `json:"words_used,omitempty"`
	EngagementScore    float64       `json:"engagement_score"`
	DifficultyObserved float64       `json:"difficulty_observed"`
	Proficiency        float64       `json:"proficiency_estimate"`
	Topics             []string      `json:"topics,omitempty"`
}

// UsageRecord mirrors one words_used judgement in the audit line.
type UsageRecord struct {
	Word    string `json:"word"`
	Correct bool   `json:"used_correctly"`
}

// AuditLog persists applied turns as append-only JSON lines in a local
// file, one line per committed turn. The log is advisory — it exists so
// mastery movements can be inspected offline — and append failures never
// roll back a turn.
//
// Thread-safe for concurrent use.
type AuditLog struct {
	mu   sync.Mutex
	path string
}

// NewAuditLog creates an AuditLog that appends to the given path.
// The file is created on first append if it does not exist.
func NewAuditLog(path string) *AuditLog {
	return &AuditLog{path: path}
}

// Append writes one record to the log.
func (l *AuditLog) Append(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("feedback: marshal audit record: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("feedback: open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("feedback: write audit record: %w", err)
	}
	return nil
}

// newRecord flattens an applied turn into its audit line. The profile is
// the post-update state, so the line captures where the estimate landed.
func newRecord(req ApplyRequest, profile learner.Profile, now time.Time) Record {
	rec := Record{
		Timestamp:          now,
		LearnerID:          req.LearnerID,
		Language:           req.Language,
		EngagementScore:    req.Analysis.EngagementScore,
		DifficultyObserved: req.Analysis.DifficultyObserved,
		Proficiency:        profile.ProficiencyEstimate,
		Topics:             req.Analysis.Topics,
	}
	for _, s := range req.Shown {
		rec.WordsShown = append(rec.WordsShown, s.Word)
	}
	for _, wu := range req.Analysis.WordsUsed {
		rec.WordsUsed = append(rec.WordsUsed, UsageRecord{
			Word:    wu.Word,
			Correct: wu.UsedCorrectly,
		})
	}
	return rec
}
