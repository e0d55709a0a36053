package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nabu-app/nabu/internal/analysis"
	"github.com/nabu-app/nabu/internal/difficulty"
	"github.com/nabu-app/nabu/internal/feedback"
	"github.com/nabu-app/nabu/internal/observe"
	"github.com/nabu-app/nabu/internal/session"
	"github.com/nabu-app/nabu/internal/turnctx"
	"github.com/nabu-app/nabu/internal/vocabdetect"
	"github.com/nabu-app/nabu/pkg/learner"
	"github.com/nabu-app/nabu/pkg/provider/llm"
)

const (
	// defaultTemperature balances natural tutoring conversation against
	// staying on the vocabulary script.
	defaultTemperature = 0.7

	// defaultMaxTokens keeps tutor replies short enough to speak aloud.
	defaultMaxTokens = 150

	// defaultMaxToolRounds caps model→tool→model round trips per turn.
	defaultMaxToolRounds = 3
)

// Config carries the collaborators a [Pipeline] needs. Sessions, Assembler,
// Provider, Analyzer and Feedback are required; the rest are optional and
// enabled through [Option] values.
type Config struct {
	// Sessions resolves turn requests to active sessions and receives
	// per-turn statistics.
	Sessions *session.Manager

	// Assembler builds the per-turn learner context (vocabulary selection,
	// difficulty recommendation, profile snapshot).
	Assembler *turnctx.Assembler

	// Provider generates tutor replies.
	Provider llm.Provider

	// Analyzer judges each completed exchange.
	Analyzer analysis.Analyzer

	// Feedback commits analysis results to learner state.
	Feedback *feedback.Integrator
}

// Option configures optional Pipeline behaviour.
type Option func(*Pipeline)

// WithToolHost offers the host's tools to the model during reply generation
// and executes the calls the model makes.
func WithToolHost(h ToolHost) Option {
	return func(p *Pipeline) { p.tools = h }
}

// WithPersonas resolves session persona names to persona prompt text. Without
// it, turns run with the session's persona field ignored.
func WithPersonas(src PersonaSource) Option {
	return func(p *Pipeline) { p.personas = src }
}

// WithVocabularyScan enables detection of tracked words the learner used
// spontaneously, beyond the vocabulary shown to the tutor. The store provides
// the learner's full tracked set; the detector matches it against the
// utterance.
func WithVocabularyScan(store learner.VocabularyStore, det *vocabdetect.Detector) Option {
	return func(p *Pipeline) {
		p.vocab = store
		p.detector = det
	}
}

// WithMaxActiveVocab caps how many tracked items the vocabulary scan fetches
// per turn, bounding matcher work for learners with very large vocabularies.
// Zero or negative means no cap.
func WithMaxActiveVocab(n int) Option {
	return func(p *Pipeline) { p.maxActiveVocab = n }
}

// WithTemperature overrides the reply generation temperature.
func WithTemperature(t float64) Option {
	return func(p *Pipeline) { p.temperature = t }
}

// WithMaxTokens overrides the reply generation token cap.
func WithMaxTokens(n int) Option {
	return func(p *Pipeline) { p.maxTokens = n }
}

// WithMaxToolRounds overrides the per-turn tool round-trip cap.
func WithMaxToolRounds(n int) Option {
	return func(p *Pipeline) { p.maxToolRounds = n }
}

// WithMetrics overrides the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// Pipeline executes complete tutoring turns. See the package documentation
// for the stage breakdown.
type Pipeline struct {
	sessions  *session.Manager
	assembler *turnctx.Assembler
	provider  llm.Provider
	analyzer  analysis.Analyzer
	feedback  *feedback.Integrator

	tools          ToolHost
	personas       PersonaSource
	vocab          learner.VocabularyStore
	detector       *vocabdetect.Detector
	maxActiveVocab int
	metrics        *observe.Metrics

	// turnLocks serialises turns within one session; stateLocks serialises
	// learner-state critical sections across sessions sharing a learner and
	// language. Acquisition order is always turn lock first.
	turnLocks  *keyedMutex
	stateLocks *keyedMutex

	temperature   float64
	maxTokens     int
	maxToolRounds int
}

var _ TurnEngine = (*Pipeline)(nil)

// New validates cfg and builds a Pipeline.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("engine: session manager must not be nil")
	}
	if cfg.Assembler == nil {
		return nil, errors.New("engine: context assembler must not be nil")
	}
	if cfg.Provider == nil {
		return nil, errors.New("engine: llm provider must not be nil")
	}
	if cfg.Analyzer == nil {
		return nil, errors.New("engine: analyzer must not be nil")
	}
	if cfg.Feedback == nil {
		return nil, errors.New("engine: feedback integrator must not be nil")
	}

	p := &Pipeline{
		sessions:      cfg.Sessions,
		assembler:     cfg.Assembler,
		provider:      cfg.Provider,
		analyzer:      cfg.Analyzer,
		feedback:      cfg.Feedback,
		metrics:       observe.DefaultMetrics(),
		turnLocks:     newKeyedMutex(),
		stateLocks:    newKeyedMutex(),
		temperature:   defaultTemperature,
		maxTokens:     defaultMaxTokens,
		maxToolRounds: defaultMaxToolRounds,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ─── TurnEngine interface ───

// ProcessTurn runs one full tutoring turn against the identified session.
func (p *Pipeline) ProcessTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	utterance := strings.TrimSpace(req.Utterance)
	if utterance == "" {
		return nil, fmt.Errorf("engine: %w: empty utterance", difficulty.ErrInvalidInput)
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, fmt.Errorf("engine: %w: empty session id", difficulty.ErrInvalidInput)
	}

	sess, err := p.sessions.Get(req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("engine: resolve session: %w", err)
	}

	// ── Stage 1: serialise turns within the session ──
	endTurn := p.turnLocks.lock(sess.ID, "")
	defer endTurn()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	sess.Touch()

	// ── Stage 2: assemble context under the learner-state lock ──
	stage := time.Now()
	release := p.stateLocks.lock(sess.LearnerID, sess.Language)
	tc, err := p.assembler.Build(ctx, turnctx.BuildRequest{
		LearnerID:    sess.LearnerID,
		Language:     sess.Language,
		TopicHint:    utterance,
		RecentTopics: sess.RecentTopics(),
	})
	release()
	if err != nil {
		p.finishTurn(ctx, sess, "error", start)
		return nil, fmt.Errorf("engine: assemble context: %w", err)
	}
	p.metrics.RecordStage(ctx, "assemble", time.Since(stage).Seconds())

	// ── Stage 3: generate the tutor's reply ──
	persona := ""
	if p.personas != nil {
		persona = p.personas.Prompt(sess.Persona, sess.Language)
	}
	systemPrompt := turnctx.FormatSystemPrompt(tc, persona, sess.NativeLanguage)

	history := sess.History().Messages()
	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, llm.Message{Role: "user", Content: utterance})

	stage = time.Now()
	reply, toolCalls, err := p.generate(ctx, systemPrompt, msgs)
	if err != nil {
		p.finishTurn(ctx, sess, "aborted", start)
		return nil, fmt.Errorf("%w: generate reply: %w", ErrTurnAborted, err)
	}
	p.metrics.RecordStage(ctx, "generate", time.Since(stage).Seconds())

	shown := make([]string, len(tc.SelectedVocabulary))
	for i, item := range tc.SelectedVocabulary {
		shown[i] = item.Word
	}

	result := &TurnResult{
		SessionID:       sess.ID,
		Reply:           reply,
		Band:            tc.Band,
		VocabularyShown: tc.SelectedVocabulary,
		Proficiency:     tc.Profile.ProficiencyEstimate,
		ToolCalls:       toolCalls,
	}

	// ── Stage 4: detect spontaneous usage, then judge the exchange ──
	hits := p.scanUtterance(ctx, sess, utterance)

	stage = time.Now()
	an, err := p.analyzer.Analyze(ctx, analysis.Exchange{
		LearnerUtterance:    utterance,
		TutorReply:          reply,
		Language:            sess.Language,
		ShownVocabulary:     shown,
		ProficiencyEstimate: tc.Profile.ProficiencyEstimate,
	})
	p.metrics.RecordStage(ctx, "analyze", time.Since(stage).Seconds())
	switch {
	case err == nil:
		result.Analysis = mergeDetections(an, hits)
	case errors.Is(err, analysis.ErrValidationFailed):
		// The reply already happened; keep the conversation moving and
		// leave learner state untouched for this turn.
		slog.Warn("engine: analysis rejected, feedback skipped",
			"session_id", sess.ID,
			"learner_id", sess.LearnerID,
			"err", err)
		p.recordExchange(ctx, sess, utterance, result)
		result.Duration = time.Since(start)
		p.finishTurn(ctx, sess, "feedback_skipped", start)
		return result, nil
	default:
		p.finishTurn(ctx, sess, "aborted", start)
		return nil, fmt.Errorf("%w: analyse exchange: %w", ErrTurnAborted, err)
	}

	// ── Stage 5: commit feedback under the learner-state lock ──
	stage = time.Now()
	release = p.stateLocks.lock(sess.LearnerID, sess.Language)
	applied, err := p.feedback.Apply(ctx, feedback.ApplyRequest{
		LearnerID: sess.LearnerID,
		Language:  sess.Language,
		Shown:     tc.SelectedVocabulary,
		Analysis:  *result.Analysis,
	})
	release()
	if err != nil {
		p.finishTurn(ctx, sess, "error", start)
		return nil, fmt.Errorf("engine: apply feedback: %w", err)
	}
	p.metrics.RecordStage(ctx, "apply", time.Since(stage).Seconds())

	result.FeedbackApplied = true
	result.NewWords = applied.CreatedWords
	result.Proficiency = applied.Proficiency
	p.metrics.RecordVocabularyCreated(ctx, sess.Language, len(result.NewWords))

	// ── Stage 6: session bookkeeping ──
	p.recordExchange(ctx, sess, utterance, result)

	result.Duration = time.Since(start)
	p.finishTurn(ctx, sess, "completed", start)
	slog.Info("engine: turn completed",
		"session_id", sess.ID,
		"learner_id", sess.LearnerID,
		"language", sess.Language,
		"band", tc.Band,
		"words_shown", len(shown),
		"new_words", len(result.NewWords),
		"tool_calls", toolCalls,
		"duration", result.Duration)
	return result, nil
}

// generate runs the completion loop, executing tool calls the model requests
// and feeding results back until the model answers in text or the round cap
// is reached.
func (p *Pipeline) generate(ctx context.Context, systemPrompt string, msgs []llm.Message) (string, int, error) {
	req := llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Temperature:  p.temperature,
		MaxTokens:    p.maxTokens,
	}
	if p.tools != nil {
		req.Tools = p.tools.AvailableTools()
	}

	executed := 0
	for round := 0; ; round++ {
		req.Messages = msgs
		resp, err := p.provider.Complete(ctx, req)
		if err != nil {
			return "", executed, err
		}
		if resp == nil {
			return "", executed, errors.New("provider returned no response")
		}
		if len(resp.ToolCalls) == 0 || p.tools == nil {
			return resp.Content, executed, nil
		}
		if round >= p.maxToolRounds {
			slog.Warn("engine: tool round limit reached, returning partial reply",
				"rounds", round,
				"pending_calls", len(resp.ToolCalls))
			return resp.Content, executed, nil
		}

		msgs = append(msgs, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			msgs = append(msgs, llm.Message{
				Role:       "tool",
				Content:    p.executeTool(ctx, call),
				ToolCallID: call.ID,
			})
			executed++
		}
	}
}

// executeTool runs a single tool call. Failures are reported back to the
// model as the tool result rather than aborting the turn, so the model can
// recover in its reply.
func (p *Pipeline) executeTool(ctx context.Context, call llm.ToolCall) string {
	start := time.Now()
	out, err := p.tools.ExecuteTool(ctx, call.Name, call.Arguments)
	if err != nil {
		p.metrics.RecordToolCall(ctx, call.Name, "error", time.Since(start).Seconds())
		slog.Warn("engine: tool execution failed",
			"tool", call.Name,
			"err", err)
		return fmt.Sprintf("error: %s", err)
	}
	p.metrics.RecordToolCall(ctx, call.Name, "ok", time.Since(start).Seconds())
	return out
}

// scanUtterance matches the learner's full tracked vocabulary against the
// utterance. Best effort: a storage failure here only costs spontaneous-usage
// credit, never the turn.
func (p *Pipeline) scanUtterance(ctx context.Context, sess *session.Session, utterance string) []vocabdetect.Hit {
	if p.detector == nil || p.vocab == nil {
		return nil
	}
	var opts []learner.ListOpt
	if p.maxActiveVocab > 0 {
		opts = append(opts, learner.WithLimit(p.maxActiveVocab))
	}
	items, err := p.vocab.GetVocabulary(ctx, sess.LearnerID, sess.Language, opts...)
	if err != nil {
		slog.Warn("engine: vocabulary scan skipped",
			"learner_id", sess.LearnerID,
			"language", sess.Language,
			"err", err)
		return nil
	}
	if len(items) == 0 {
		return nil
	}
	words := make([]string, len(items))
	for i, item := range items {
		words[i] = item.Word
	}
	return p.detector.Detect(utterance, vocabdetect.Prepare(words))
}

// mergeDetections folds spontaneous detector hits into the analysis as
// correct uses. The analyst judges only shown vocabulary; the detector covers
// the rest of the tracked set. Words the analyst already judged keep the
// analyst's verdict.
func mergeDetections(an *learner.TurnAnalysis, hits []vocabdetect.Hit) *learner.TurnAnalysis {
	if len(hits) == 0 {
		return an
	}
	judged := make(map[string]struct{}, len(an.WordsUsed))
	for _, wu := range an.WordsUsed {
		judged[strings.ToLower(wu.Word)] = struct{}{}
	}
	for _, h := range hits {
		w := strings.ToLower(h.Word)
		if _, ok := judged[w]; ok {
			continue
		}
		judged[w] = struct{}{}
		an.WordsUsed = append(an.WordsUsed, learner.WordUsage{Word: w, UsedCorrectly: true})
	}
	return an
}

// recordExchange folds the completed exchange into the session: conversation
// history for the next prompt, statistics for the end-of-session summary.
// History failures are logged and swallowed; the turn already succeeded.
func (p *Pipeline) recordExchange(ctx context.Context, sess *session.Session, utterance string, result *TurnResult) {
	err := sess.History().Append(ctx,
		llm.Message{Role: "user", Content: utterance},
		llm.Message{Role: "assistant", Content: result.Reply},
	)
	if err != nil {
		slog.Warn("engine: history append failed",
			"session_id", sess.ID,
			"err", err)
	}

	rec := session.TurnRecord{NewWords: result.NewWords}
	for _, item := range result.VocabularyShown {
		rec.WordsPracticed = append(rec.WordsPracticed, item.Word)
	}
	if an := result.Analysis; an != nil {
		rec.EngagementScore = an.EngagementScore
		rec.DifficultyObserved = an.DifficultyObserved
		rec.Topics = an.Topics
		rec.Corrections = an.GrammarCorrections
		for _, wu := range an.WordsUsed {
			rec.WordsPracticed = append(rec.WordsPracticed, wu.Word)
		}
	}
	sess.RecordTurn(rec)
}

func (p *Pipeline) finishTurn(ctx context.Context, sess *session.Session, status string, start time.Time) {
	p.metrics.RecordTurn(ctx, sess.Language, status, time.Since(start).Seconds())
}
