package learner

import (
	"errors"
	"fmt"
	"time"
)

// LearningStyle is an advisory categorisation of how a learner prefers to
// engage with material. It influences prompt phrasing only; no numeric
// behaviour depends on it.
type LearningStyle string

// Well-known learning styles. Custom values are allowed.
const (
	StyleVisual         LearningStyle = "visual"
	StyleConversational LearningStyle = "conversational"
	StyleAnalytical     LearningStyle = "analytical"
)

// VocabularyItem is one tracked word for one learner in one target language.
// The triple (LearnerID, Language, Word) is the unique identity.
//
// Items are created the first time a word is introduced by the tutor or
// detected in learner speech, and are never deleted. Counters and
// MasteryLevel are only ever advanced by the feedback integrator; exposure
// history is an append-only record of the learner's journey.
type VocabularyItem struct {
	// LearnerID identifies the learner this item belongs to.
	LearnerID string

	// Language is the target language being learned, as a lowercase
	// ISO 639-1 code (e.g. "es", "fr").
	Language string

	// Word is the vocabulary word or short phrase in the target language.
	Word string

	// Translation is the meaning in the learner's native language.
	// May be empty for items created from detected speech.
	Translation string

	// MasteryLevel estimates how well the learner knows this word, in [0, 1].
	// 0 is unknown, 1 is fully mastered.
	MasteryLevel float64

	// TimesSeen counts how often the word was surfaced to the learner.
	// Monotonically non-decreasing.
	TimesSeen int

	// TimesUsed counts how often the learner actively produced the word.
	// Monotonically non-decreasing. May exceed TimesSeen: spontaneous use
	// of a word the tutor never surfaced still counts.
	TimesUsed int

	// LastSeenAt is when the word was last surfaced, nil if never.
	LastSeenAt *time.Time

	// LastUsedAt is when the learner last produced the word, nil if never.
	LastUsedAt *time.Time

	// CreatedAt is when this item entered the store.
	CreatedAt time.Time
}

// Validate reports every constraint violation on the item as a joined error.
func (v VocabularyItem) Validate() error {
	var errs []error
	if v.LearnerID == "" {
		errs = append(errs, errors.New("learner id must not be empty"))
	}
	if v.Language == "" {
		errs = append(errs, errors.New("language must not be empty"))
	}
	if v.Word == "" {
		errs = append(errs, errors.New("word must not be empty"))
	}
	if v.MasteryLevel < 0 || v.MasteryLevel > 1 {
		errs = append(errs, fmt.Errorf("mastery level %v outside [0, 1]", v.MasteryLevel))
	}
	if v.TimesSeen < 0 {
		errs = append(errs, fmt.Errorf("times seen %d must not be negative", v.TimesSeen))
	}
	if v.TimesUsed < 0 {
		errs = append(errs, fmt.Errorf("times used %d must not be negative", v.TimesUsed))
	}
	return errors.Join(errs...)
}

// Profile is the per learner+language state driving difficulty adaptation.
// It is created on the learner's first session in a language, updated after
// every completed turn, and never deleted.
type Profile struct {
	// LearnerID identifies the learner.
	LearnerID string

	// Language is the target language this profile applies to
	// (lowercase ISO 639-1 code).
	Language string

	// ProficiencyEstimate is the current skill estimate on a bounded scale
	// (1.0–5.0 with default configuration). Moved by an exponentially
	// weighted average of observed turn difficulty.
	ProficiencyEstimate float64

	// EngagementScore is a recency-weighted engagement estimate in [0, 1].
	EngagementScore float64

	// LearningStyle is an advisory preference tag. Empty means unknown.
	LearningStyle LearningStyle

	// Difficulties lists weak areas observed for this learner
	// (e.g. "past-tense", "gendered-articles"). Treated as a set:
	// no duplicates, order is not significant.
	Difficulties []string

	// CreatedAt is when the profile was first created.
	CreatedAt time.Time

	// UpdatedAt is when the profile was last modified.
	UpdatedAt time.Time
}

// Validate reports every constraint violation on the profile as a joined
// error. The proficiency scale bounds are configuration, so only the
// universal constraints are checked here.
func (p Profile) Validate() error {
	var errs []error
	if p.LearnerID == "" {
		errs = append(errs, errors.New("learner id must not be empty"))
	}
	if p.Language == "" {
		errs = append(errs, errors.New("language must not be empty"))
	}
	if p.EngagementScore < 0 || p.EngagementScore > 1 {
		errs = append(errs, fmt.Errorf("engagement score %v outside [0, 1]", p.EngagementScore))
	}
	if p.ProficiencyEstimate < 0 {
		errs = append(errs, fmt.Errorf("proficiency estimate %v must not be negative", p.ProficiencyEstimate))
	}
	return errors.Join(errs...)
}

// AddDifficulty records a weak area on the profile, preserving set semantics.
func (p *Profile) AddDifficulty(tag string) {
	if tag == "" {
		return
	}
	for _, d := range p.Difficulties {
		if d == tag {
			return
		}
	}
	p.Difficulties = append(p.Difficulties, tag)
}

// WordUsage is one observed production of a vocabulary word during a turn.
type WordUsage struct {
	// Word is the vocabulary word as stored (target language).
	Word string

	// UsedCorrectly reports whether the production was judged correct.
	UsedCorrectly bool
}

// GrammarCorrection is an advisory correction surfaced by turn analysis.
// Corrections feed study notes; they have no numeric effect on mastery.
type GrammarCorrection struct {
	// Original is the learner's phrasing.
	Original string

	// Corrected is the suggested phrasing.
	Corrected string

	// Note optionally explains the underlying rule.
	Note string
}

// TurnAnalysis is the structured result of analysing one completed exchange.
// It is the sole input through which a turn changes learning state.
type TurnAnalysis struct {
	// WordsUsed lists tracked-vocabulary productions observed in the
	// learner's utterance, with a correctness judgement each.
	WordsUsed []WordUsage

	// EngagementScore estimates learner engagement for this turn, in [0, 1].
	EngagementScore float64

	// DifficultyObserved estimates the difficulty level the learner actually
	// handled this turn, on the proficiency scale.
	DifficultyObserved float64

	// Topics are coarse topic labels touched during the exchange.
	Topics []string

	// GrammarCorrections are advisory corrections for study notes.
	GrammarCorrections []GrammarCorrection
}
