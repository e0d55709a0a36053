// Package session manages tutoring session lifecycle and state.
//
// It includes the concurrent session registry ([Manager]), bounded
// conversation history with summarisation ([History], [Summariser]), and
// end-of-session summaries ([Summary]). A session binds one learner and one
// target language for the duration of a conversation; its history feeds the
// turn prompt and its accumulated statistics feed study notes.
//
// All exported types are safe for concurrent use.
package session

import (
	"sync"
	"time"

	"github.com/nabu-app/nabu/pkg/learner"
)

// Default session parameters.
const (
	defaultTimeout      = 30 * time.Minute
	defaultMaxExchanges = 10
)

// Session is one live tutoring conversation. Identity fields are immutable
// after [Manager.Start]; mutable state is updated via [Session.RecordTurn]
// and read via [Session.Snapshot].
type Session struct {
	// ID is the unique session identifier.
	ID string

	// LearnerID and Language bind the session to one learner and one
	// target language.
	LearnerID string
	Language  string

	// NativeLanguage is the learner's own language, used for translations
	// in the tutor prompt.
	NativeLanguage string

	// Mode describes the session style, e.g. "conversation".
	Mode string

	// Persona names the tutor persona active for this session.
	Persona string

	// StartedAt is when the session began.
	StartedAt time.Time

	history *History

	mu           sync.Mutex
	lastActivity time.Time
	turns        int
	engagement   float64
	difficulty   float64
	practiced    []string
	practicedSet map[string]struct{}
	newWords     []string
	newWordSet   map[string]struct{}
	corrections  []learner.GrammarCorrection
	topics       []string
	topicSet     map[string]struct{}
}

// History returns the session's conversation history.
func (s *Session) History() *History {
	return s.history
}

// TurnRecord carries the per-turn outcomes folded into session state by
// [Session.RecordTurn].
type TurnRecord struct {
	// EngagementScore is the analysed engagement for the turn, in [0, 1].
	EngagementScore float64

	// DifficultyObserved is the analysed difficulty level for the turn.
	DifficultyObserved float64

	// WordsPracticed lists vocabulary words the learner was shown or used.
	WordsPracticed []string

	// NewWords lists words first encountered this turn.
	NewWords []string

	// Corrections are grammar corrections surfaced by analysis.
	Corrections []learner.GrammarCorrection

	// Topics are conversation topics touched this turn.
	Topics []string
}

// RecordTurn folds one completed turn into the session's running state and
// bumps the activity timestamp.
func (s *Session) RecordTurn(rec TurnRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns++
	s.engagement += rec.EngagementScore
	s.difficulty += rec.DifficultyObserved
	s.lastActivity = time.Now().UTC()

	for _, w := range rec.WordsPracticed {
		if _, ok := s.practicedSet[w]; ok {
			continue
		}
		s.practicedSet[w] = struct{}{}
		s.practiced = append(s.practiced, w)
	}
	for _, w := range rec.NewWords {
		if _, ok := s.newWordSet[w]; ok {
			continue
		}
		s.newWordSet[w] = struct{}{}
		s.newWords = append(s.newWords, w)
	}
	for _, topic := range rec.Topics {
		if _, ok := s.topicSet[topic]; ok {
			continue
		}
		s.topicSet[topic] = struct{}{}
		s.topics = append(s.topics, topic)
	}
	s.corrections = append(s.corrections, rec.Corrections...)
}

// Touch bumps the activity timestamp without recording a turn.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now().UTC()
}

// LastActivity returns the time of the most recent turn or touch.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// RecentTopics returns the topics touched so far, oldest first.
func (s *Session) RecentTopics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.topics))
	copy(out, s.topics)
	return out
}

// State is a point-in-time snapshot of a session's mutable counters.
type State struct {
	ID                 string
	LearnerID          string
	Language           string
	Mode               string
	Persona            string
	StartedAt          time.Time
	LastActivity       time.Time
	Turns              int
	AverageEngagement  float64
	AverageDifficulty  float64
	VocabularyCount    int
	NewVocabularyCount int
	CorrectionCount    int
}

// Snapshot returns a copy of the session's current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		ID:                 s.ID,
		LearnerID:          s.LearnerID,
		Language:           s.Language,
		Mode:               s.Mode,
		Persona:            s.Persona,
		StartedAt:          s.StartedAt,
		LastActivity:       s.lastActivity,
		Turns:              s.turns,
		AverageEngagement:  average(s.engagement, s.turns),
		AverageDifficulty:  average(s.difficulty, s.turns),
		VocabularyCount:    len(s.practiced),
		NewVocabularyCount: len(s.newWords),
		CorrectionCount:    len(s.corrections),
	}
}

// summary builds the end-of-session summary. Must be called with s.mu held
// or after the session has been removed from the manager.
func (s *Session) summary(endedAt time.Time) *Summary {
	return &Summary{
		SessionID:           s.ID,
		LearnerID:           s.LearnerID,
		Language:            s.Language,
		Mode:                s.Mode,
		StartedAt:           s.StartedAt,
		EndedAt:             endedAt,
		Duration:            endedAt.Sub(s.StartedAt),
		Turns:               s.turns,
		AverageEngagement:   average(s.engagement, s.turns),
		AverageDifficulty:   average(s.difficulty, s.turns),
		VocabularyPracticed: append([]string(nil), s.practiced...),
		NewVocabulary:       append([]string(nil), s.newWords...),
		Corrections:         append([]learner.GrammarCorrection(nil), s.corrections...),
		Topics:              append([]string(nil), s.topics...),
	}
}

// Summary is the final record of an ended session, the input to study-note
// generation.
type Summary struct {
	SessionID string
	LearnerID string
	Language  string
	Mode      string
	StartedAt time.Time
	EndedAt   time.Time
	Duration  time.Duration

	// Turns is the number of completed exchanges.
	Turns int

	// AverageEngagement and AverageDifficulty are per-turn means over the
	// whole session. Zero when no turns completed.
	AverageEngagement float64
	AverageDifficulty float64

	// VocabularyPracticed lists distinct words shown or used, in first-seen
	// order. NewVocabulary is the subset first encountered this session.
	VocabularyPracticed []string
	NewVocabulary       []string

	// Corrections accumulates every grammar correction from the session.
	Corrections []learner.GrammarCorrection

	// Topics lists distinct conversation topics, in first-seen order.
	Topics []string
}

func average(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
