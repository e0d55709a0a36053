// Package notes turns completed tutoring sessions into study notes and keeps
// them searchable.
//
// Notes are advisory learner-facing material, distinct from the vocabulary
// and profile state the feedback integrator owns: losing a note costs a
// study aid, not learning history. The [IndexGuard] leans on that — index
// failures are logged and swallowed so a flaky index never fails a session.
//
// # Architecture
//
//  1. [Generate] derives notes from a [session.Summary] when a session ends.
//  2. [Index] stores them in a Bleve full-text index (in-memory or on disk).
//  3. [IndexGuard] wraps the index with degraded-mode semantics.
//  4. The tool host and the HTTP API search the index through [Store].
package notes

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nabu-app/nabu/internal/session"
)

// Note categories. The set mirrors what turn analysis can observe: words
// first stored, grammar corrections, and per-session progress.
const (
	CategoryVocabulary = "vocabulary"
	CategoryGrammar    = "grammar"
	CategoryProgress   = "progress"
)

// Note priorities.
const (
	PriorityLow    = 1
	PriorityMedium = 2
	PriorityHigh   = 3
)

// Note is one study note generated for a learner.
type Note struct {
	// ID uniquely identifies the note in the index.
	ID string

	// Title is a short human-readable headline.
	Title string

	// Content is the note body, plain text.
	Content string

	// Category is one of the Category* constants.
	Category string

	// Priority ranks the note 1 (low) to 3 (high).
	Priority int

	// Tags are free-form labels for filtering.
	Tags []string

	// Language is the target language the note concerns.
	Language string

	// LearnerID scopes the note to its learner.
	LearnerID string

	// SessionID names the session the note was generated from.
	SessionID string

	// CreatedAt is when the note was generated.
	CreatedAt time.Time
}

// Generate derives study notes from a completed session. A session with new
// vocabulary yields a vocabulary note, one with corrections yields a grammar
// note, and every session yields a progress summary.
func Generate(sum *session.Summary) []Note {
	if sum == nil {
		return nil
	}

	now := time.Now().UTC()
	var out []Note

	if len(sum.NewVocabulary) > 0 {
		out = append(out, vocabularyNote(sum, now))
	}
	if len(sum.Corrections) > 0 {
		out = append(out, grammarNote(sum, now))
	}
	out = append(out, progressNote(sum, now))
	return out
}

func vocabularyNote(sum *session.Summary, now time.Time) Note {
	preview := sum.NewVocabulary
	if len(preview) > 5 {
		preview = preview[:5]
	}
	content := fmt.Sprintf(`In this conversation you encountered %d new vocabulary words.

New words to practice:
%s

Try to use these words in your next conversation to reinforce your learning!`,
		len(sum.NewVocabulary), strings.Join(preview, ", "))

	return Note{
		ID:        uuid.New().String(),
		Title:     fmt.Sprintf("New %s Vocabulary - Session %s", strings.ToUpper(sum.Language), shortID(sum.SessionID)),
		Content:   content,
		Category:  CategoryVocabulary,
		Priority:  PriorityMedium,
		Tags:      []string{sum.Language, "vocabulary", "new-words"},
		Language:  sum.Language,
		LearnerID: sum.LearnerID,
		SessionID: sum.SessionID,
		CreatedAt: now,
	}
}

func grammarNote(sum *session.Summary, now time.Time) Note {
	var b strings.Builder
	b.WriteString("Grammar corrections from this session:\n")
	for _, c := range sum.Corrections {
		fmt.Fprintf(&b, "\n- %q → %q", c.Original, c.Corrected)
		if c.Note != "" {
			fmt.Fprintf(&b, " (%s)", c.Note)
		}
	}
	b.WriteString("\n\nRemember to review these patterns in your future conversations.")

	return Note{
		ID:        uuid.New().String(),
		Title:     fmt.Sprintf("%s Grammar Focus - Session %s", strings.ToUpper(sum.Language), shortID(sum.SessionID)),
		Content:   b.String(),
		Category:  CategoryGrammar,
		Priority:  PriorityMedium,
		Tags:      []string{sum.Language, "grammar", "corrections"},
		Language:  sum.Language,
		LearnerID: sum.LearnerID,
		SessionID: sum.SessionID,
		CreatedAt: now,
	}
}

func progressNote(sum *session.Summary, now time.Time) Note {
	topics := "Various topics"
	if len(sum.Topics) > 0 {
		topics = strings.Join(sum.Topics, ", ")
	}
	content := fmt.Sprintf(`Session Summary:
- Duration: %.1f minutes
- Turns: %d
- Vocabulary practiced: %d words
- New vocabulary: %d words
- Topics discussed: %s
- Engagement level: %s

Keep up the great work! Your consistent practice is building your language skills.`,
		sum.Duration.Minutes(), sum.Turns, len(sum.VocabularyPracticed),
		len(sum.NewVocabulary), topics, engagementLabel(sum.AverageEngagement))

	return Note{
		ID:        uuid.New().String(),
		Title:     fmt.Sprintf("%s Learning Progress - Session %s", strings.ToUpper(sum.Language), shortID(sum.SessionID)),
		Content:   content,
		Category:  CategoryProgress,
		Priority:  PriorityLow,
		Tags:      []string{sum.Language, "progress", "summary"},
		Language:  sum.Language,
		LearnerID: sum.LearnerID,
		SessionID: sum.SessionID,
		CreatedAt: now,
	}
}

// engagementLabel buckets an average engagement score for display.
func engagementLabel(score float64) string {
	switch {
	case score > 0.7:
		return "High"
	case score > 0.4:
		return "Medium"
	default:
		return "Low"
	}
}

// shortID abbreviates a session UUID for note titles.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
