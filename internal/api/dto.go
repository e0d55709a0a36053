package api

import (
	"time"

	"github.com/nabu-app/nabu/internal/notes"
	"github.com/nabu-app/nabu/internal/session"
	"github.com/nabu-app/nabu/pkg/learner"
)

// Wire shapes for the versioned API. Times serialize as RFC 3339 and
// durations as integral milliseconds; slices that may be empty encode as
// empty arrays, never null.

type vocabItemDTO struct {
	Word         string     `json:"word"`
	Translation  string     `json:"translation,omitempty"`
	MasteryLevel float64    `json:"mastery_level"`
	TimesSeen    int        `json:"times_seen"`
	TimesUsed    int        `json:"times_used"`
	LastSeenAt   *time.Time `json:"last_seen_at,omitempty"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func toVocabItemDTO(it learner.VocabularyItem) vocabItemDTO {
	return vocabItemDTO{
		Word:         it.Word,
		Translation:  it.Translation,
		MasteryLevel: it.MasteryLevel,
		TimesSeen:    it.TimesSeen,
		TimesUsed:    it.TimesUsed,
		LastSeenAt:   it.LastSeenAt,
		LastUsedAt:   it.LastUsedAt,
		CreatedAt:    it.CreatedAt,
	}
}

func toVocabItemDTOs(items []learner.VocabularyItem) []vocabItemDTO {
	out := make([]vocabItemDTO, 0, len(items))
	for _, it := range items {
		out = append(out, toVocabItemDTO(it))
	}
	return out
}

type wordUsageDTO struct {
	Word          string `json:"word"`
	UsedCorrectly bool   `json:"used_correctly"`
}

type correctionDTO struct {
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
	Note      string `json:"note,omitempty"`
}

func toCorrectionDTOs(cs []learner.GrammarCorrection) []correctionDTO {
	out := make([]correctionDTO, 0, len(cs))
	for _, c := range cs {
		out = append(out, correctionDTO{Original: c.Original, Corrected: c.Corrected, Note: c.Note})
	}
	return out
}

type analysisDTO struct {
	WordsUsed          []wordUsageDTO  `json:"words_used"`
	EngagementScore    float64         `json:"engagement_score"`
	DifficultyObserved float64         `json:"difficulty_observed"`
	Topics             []string        `json:"topics,omitempty"`
	GrammarCorrections []correctionDTO `json:"grammar_corrections,omitempty"`
}

func toAnalysisDTO(a *learner.TurnAnalysis) *analysisDTO {
	if a == nil {
		return nil
	}
	used := make([]wordUsageDTO, 0, len(a.WordsUsed))
	for _, wu := range a.WordsUsed {
		used = append(used, wordUsageDTO{Word: wu.Word, UsedCorrectly: wu.UsedCorrectly})
	}
	return &analysisDTO{
		WordsUsed:          used,
		EngagementScore:    a.EngagementScore,
		DifficultyObserved: a.DifficultyObserved,
		Topics:             a.Topics,
		GrammarCorrections: toCorrectionDTOs(a.GrammarCorrections),
	}
}

type profileDTO struct {
	LearnerID           string    `json:"learner_id"`
	Language            string    `json:"language"`
	ProficiencyEstimate float64   `json:"proficiency_estimate"`
	EngagementScore     float64   `json:"engagement_score"`
	LearningStyle       string    `json:"learning_style,omitempty"`
	Difficulties        []string  `json:"difficulties,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func toProfileDTO(p *learner.Profile) profileDTO {
	return profileDTO{
		LearnerID:           p.LearnerID,
		Language:            p.Language,
		ProficiencyEstimate: p.ProficiencyEstimate,
		EngagementScore:     p.EngagementScore,
		LearningStyle:       string(p.LearningStyle),
		Difficulties:        p.Difficulties,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
}

type summaryDTO struct {
	SessionID           string          `json:"session_id"`
	LearnerID           string          `json:"learner_id"`
	Language            string          `json:"language"`
	Mode                string          `json:"mode"`
	StartedAt           time.Time       `json:"started_at"`
	EndedAt             time.Time       `json:"ended_at"`
	DurationMS          int64           `json:"duration_ms"`
	Turns               int             `json:"turns"`
	AverageEngagement   float64         `json:"average_engagement"`
	AverageDifficulty   float64         `json:"average_difficulty"`
	VocabularyPracticed []string        `json:"vocabulary_practiced"`
	NewVocabulary       []string        `json:"new_vocabulary"`
	Corrections         []correctionDTO `json:"corrections,omitempty"`
	Topics              []string        `json:"topics,omitempty"`
}

func toSummaryDTO(sum *session.Summary) summaryDTO {
	return summaryDTO{
		SessionID:           sum.SessionID,
		LearnerID:           sum.LearnerID,
		Language:            sum.Language,
		Mode:                sum.Mode,
		StartedAt:           sum.StartedAt,
		EndedAt:             sum.EndedAt,
		DurationMS:          sum.Duration.Milliseconds(),
		Turns:               sum.Turns,
		AverageEngagement:   sum.AverageEngagement,
		AverageDifficulty:   sum.AverageDifficulty,
		VocabularyPracticed: emptyIfNil(sum.VocabularyPracticed),
		NewVocabulary:       emptyIfNil(sum.NewVocabulary),
		Corrections:         toCorrectionDTOs(sum.Corrections),
		Topics:              sum.Topics,
	}
}

type noteDTO struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	Priority  int       `json:"priority"`
	Tags      []string  `json:"tags,omitempty"`
	Language  string    `json:"language"`
	LearnerID string    `json:"learner_id"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

func toNoteDTO(n notes.Note) noteDTO {
	return noteDTO{
		ID:        n.ID,
		Title:     n.Title,
		Content:   n.Content,
		Category:  n.Category,
		Priority:  n.Priority,
		Tags:      n.Tags,
		Language:  n.Language,
		LearnerID: n.LearnerID,
		SessionID: n.SessionID,
		CreatedAt: n.CreatedAt,
	}
}

func emptyIfNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
