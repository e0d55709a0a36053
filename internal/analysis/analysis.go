// Package analysis turns one completed tutoring exchange into a structured
// [learner.TurnAnalysis].
//
// The [Analyzer] is the only path through which conversation content becomes
// learning feedback, so the LLM-backed implementation is strict about what it
// accepts: the model is instructed (via the system prompt) to respond with
// bare JSON, the response is decoded after optional markdown code fences are
// stripped, and every field is validated before the result is returned. A
// response that fails any of these checks yields [ErrValidationFailed];
// callers skip the feedback step for that turn rather than update mastery
// state from guessed values.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/nabu-app/nabu/pkg/learner"
	"github.com/nabu-app/nabu/pkg/provider/llm"
)

// ErrValidationFailed indicates the analysis result did not conform to the
// expected structure or value ranges. The turn's feedback step must be
// skipped when this error is returned.
var ErrValidationFailed = errors.New("analysis: validation failed")

const (
	defaultTemperature = 0.2
	defaultMaxTokens   = 400

	defaultMinDifficulty = 1.0
	defaultMaxDifficulty = 5.0
)

// systemPromptTemplate is the base system prompt. The language name,
// difficulty scale, proficiency estimate, and tracked-vocabulary list are
// filled in at call time.
const systemPromptTemplate = `You are a language-learning analyst reviewing one exchange from a %s tutoring conversation.

Your task: judge the learner's utterance and produce a structured analysis of it.

Rules:
- words_used lists ONLY words from the tracked vocabulary below that the learner actually produced, each with a correctness judgement. Inflected or conjugated forms count as uses of the base word.
- engagement_score is a float in [0.0, 1.0]. Effortful, on-topic, multi-clause responses score high; one-word or off-topic responses score low.
- difficulty_observed is a float on the %.1f-%.1f proficiency scale: the level of language the learner actually handled this turn, not the level they were offered. The learner's recent estimate is %.1f; deviate from it only as far as the utterance justifies.
- topics are at most three short lowercase labels for what the exchange was about.
- grammar_corrections lists genuine errors in the learner's utterance, not stylistic preferences. Leave it empty when the utterance is correct.

Tracked vocabulary:
%s

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "words_used": [
    {"word": "<word>", "used_correctly": <true|false>}
  ],
  "engagement_score": <0.0-1.0>,
  "difficulty_observed": <float>,
  "topics": ["<topic>"],
  "grammar_corrections": [
    {"original": "<learner phrasing>", "corrected": "<suggested phrasing>", "note": "<rule>"}
  ]
}`

// Exchange is the completed turn handed to an [Analyzer]: what the learner
// said, how the tutor replied, and the vocabulary that was in play.
type Exchange struct {
	// LearnerUtterance is the learner's (transcribed) speech for this turn.
	LearnerUtterance string

	// TutorReply is the tutor's generated response. May be empty when
	// analysis runs before generation completes.
	TutorReply string

	// Language is the target language being learned (ISO 639-1 code).
	Language string

	// ShownVocabulary lists the tracked words presented to the tutor for
	// this turn. The analyst judges learner usage against this list.
	ShownVocabulary []string

	// ProficiencyEstimate is the learner's current estimate, used to
	// calibrate the analyst's difficulty judgement.
	ProficiencyEstimate float64
}

// Analyzer produces a [learner.TurnAnalysis] from a completed exchange.
type Analyzer interface {
	// Analyze judges the exchange. A nonconforming result is reported as an
	// error matching [ErrValidationFailed]; callers must then skip feedback
	// for the turn.
	Analyze(ctx context.Context, ex Exchange) (*learner.TurnAnalysis, error)
}

// wireAnalysis is the expected JSON structure returned by the LLM.
type wireAnalysis struct {
	WordsUsed []struct {
		Word          string `json:"word" validate:"required"`
		UsedCorrectly bool   `json:"used_correctly"`
	} `json:"words_used" validate:"dive"`
	EngagementScore    float64  `json:"engagement_score" validate:"min=0,max=1"`
	DifficultyObserved float64  `json:"difficulty_observed"`
	Topics             []string `json:"topics"`
	GrammarCorrections []struct {
		Original  string `json:"original" validate:"required"`
		Corrected string `json:"corrected" validate:"required"`
		Note      string `json:"note"`
	} `json:"grammar_corrections" validate:"dive"`
}

// validate is shared across calls; a [validator.Validate] caches struct
// metadata and is safe for concurrent use.
var validate = validator.New()

// Option is a functional option for configuring an [LLMAnalyzer].
type Option func(*LLMAnalyzer)

// WithTemperature sets the LLM sampling temperature. Lower values produce
// more consistent judgements. Default: 0.2.
func WithTemperature(temp float64) Option {
	return func(a *LLMAnalyzer) {
		a.temperature = temp
	}
}

// WithMaxTokens caps the analysis completion length. Default: 400.
func WithMaxTokens(n int) Option {
	return func(a *LLMAnalyzer) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

// WithDifficultyBounds sets the proficiency scale that difficulty_observed
// must fall within. Values with min >= max are ignored. Default: 1.0-5.0.
func WithDifficultyBounds(min, max float64) Option {
	return func(a *LLMAnalyzer) {
		if min < max {
			a.minDifficulty = min
			a.maxDifficulty = max
		}
	}
}

// LLMAnalyzer asks an [llm.Provider] to judge the exchange and validates the
// structured response. It is safe for concurrent use.
//
// Model selection follows the one-provider-per-model pattern: to analyse with
// a specific model, construct the [llm.Provider] with that model configured.
type LLMAnalyzer struct {
	llm           llm.Provider
	temperature   float64
	maxTokens     int
	minDifficulty float64
	maxDifficulty float64
}

// NewLLM returns an [LLMAnalyzer] backed by the given provider.
func NewLLM(provider llm.Provider, opts ...Option) *LLMAnalyzer {
	a := &LLMAnalyzer{
		llm:           provider,
		temperature:   defaultTemperature,
		maxTokens:     defaultMaxTokens,
		minDifficulty: defaultMinDifficulty,
		maxDifficulty: defaultMaxDifficulty,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyze sends the exchange to the LLM and validates the structured result.
//
// Provider failures (network, context cancellation) are returned as plain
// errors. A response that decodes but does not conform — out-of-range scores,
// blank words, malformed JSON — is reported as [ErrValidationFailed] so the
// caller can skip feedback without aborting the turn.
func (a *LLMAnalyzer) Analyze(ctx context.Context, ex Exchange) (*learner.TurnAnalysis, error) {
	if strings.TrimSpace(ex.LearnerUtterance) == "" {
		return nil, fmt.Errorf("%w: empty learner utterance", ErrValidationFailed)
	}

	req := llm.CompletionRequest{
		SystemPrompt: a.buildSystemPrompt(ex),
		Temperature:  a.temperature,
		MaxTokens:    a.maxTokens,
		Messages: []llm.Message{
			{Role: "user", Content: buildUserMessage(ex)},
		},
	}

	resp, err := a.llm.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("analysis: complete: %w", err)
	}

	return a.parseAnalysis(resp.Content)
}

// buildSystemPrompt formats the prompt template with the exchange context.
func (a *LLMAnalyzer) buildSystemPrompt(ex Exchange) string {
	var vocab strings.Builder
	for _, w := range ex.ShownVocabulary {
		vocab.WriteString("- ")
		vocab.WriteString(w)
		vocab.WriteByte('\n')
	}
	if vocab.Len() == 0 {
		vocab.WriteString("(none tracked this turn)\n")
	}

	estimate := ex.ProficiencyEstimate
	if estimate < a.minDifficulty {
		estimate = a.minDifficulty
	}

	return fmt.Sprintf(systemPromptTemplate,
		languageName(ex.Language),
		a.minDifficulty, a.maxDifficulty, estimate,
		vocab.String(),
	)
}

// buildUserMessage renders the exchange as a two-speaker transcript.
func buildUserMessage(ex Exchange) string {
	var sb strings.Builder
	sb.WriteString("Learner: ")
	sb.WriteString(ex.LearnerUtterance)
	if strings.TrimSpace(ex.TutorReply) != "" {
		sb.WriteString("\n\nTutor: ")
		sb.WriteString(ex.TutorReply)
	}
	return sb.String()
}

// parseAnalysis decodes and validates the LLM output, then maps it onto the
// learner type. All failure paths report [ErrValidationFailed].
func (a *LLMAnalyzer) parseAnalysis(content string) (*learner.TurnAnalysis, error) {
	cleaned := stripFences(content)

	var w wireAnalysis
	if err := json.Unmarshal([]byte(cleaned), &w); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrValidationFailed, err)
	}
	if err := validate.Struct(&w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	if w.DifficultyObserved < a.minDifficulty || w.DifficultyObserved > a.maxDifficulty {
		return nil, fmt.Errorf("%w: difficulty_observed %v outside [%v, %v]",
			ErrValidationFailed, w.DifficultyObserved, a.minDifficulty, a.maxDifficulty)
	}

	out := &learner.TurnAnalysis{
		EngagementScore:    w.EngagementScore,
		DifficultyObserved: w.DifficultyObserved,
	}

	// words_used has set semantics: first judgement per word wins.
	seen := make(map[string]bool, len(w.WordsUsed))
	for _, wu := range w.WordsUsed {
		word := strings.ToLower(strings.TrimSpace(wu.Word))
		if word == "" {
			return nil, fmt.Errorf("%w: blank word in words_used", ErrValidationFailed)
		}
		if seen[word] {
			continue
		}
		seen[word] = true
		out.WordsUsed = append(out.WordsUsed, learner.WordUsage{
			Word:          word,
			UsedCorrectly: wu.UsedCorrectly,
		})
	}

	for _, t := range w.Topics {
		if t = strings.TrimSpace(t); t != "" {
			out.Topics = append(out.Topics, strings.ToLower(t))
		}
	}

	for _, c := range w.GrammarCorrections {
		out.GrammarCorrections = append(out.GrammarCorrections, learner.GrammarCorrection{
			Original:  strings.TrimSpace(c.Original),
			Corrected: strings.TrimSpace(c.Corrected),
			Note:      strings.TrimSpace(c.Note),
		})
	}

	return out, nil
}

// stripFences removes optional markdown code fences (```json ... ```) that
// some models wrap around JSON output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}

// languageName resolves an ISO 639-1 code to its English display name for
// prompt text. Unparseable input passes through unchanged.
func languageName(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return "target-language"
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

// Static returns a fixed analysis for every exchange. It serves tests and
// wiring that needs the feedback path without a second model call.
type Static struct {
	Result learner.TurnAnalysis
}

// Analyze returns a copy of the configured result.
func (s *Static) Analyze(context.Context, Exchange) (*learner.TurnAnalysis, error) {
	out := s.Result
	out.WordsUsed = slices.Clone(s.Result.WordsUsed)
	out.Topics = slices.Clone(s.Result.Topics)
	out.GrammarCorrections = slices.Clone(s.Result.GrammarCorrections)
	return &out, nil
}

var (
	_ Analyzer = (*LLMAnalyzer)(nil)
	_ Analyzer = (*Static)(nil)
)
