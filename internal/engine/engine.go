// Package engine orchestrates one complete tutoring turn.
//
// A turn takes the learner's utterance through context assembly, reply
// generation, usage analysis, and feedback integration, updating session
// state along the way. The engine owns a per-learner+language keyed lock so
// that reads of learner state and the atomic feedback commit cannot
// interleave across concurrent turns, while the slow LLM awaits run outside
// every critical section.
//
// # Architecture
//
//  1. Resolve the session and take the learner+language lock.
//  2. Assemble the turn context: due vocabulary, difficulty band, profile.
//  3. Release the lock; format the tutor system prompt (persona + context +
//     bounded history).
//  4. Generate the reply, executing any tool calls the model requests and
//     feeding results back until it answers in text.
//  5. Detect tracked vocabulary in the learner's utterance locally, then
//     analyse the exchange with the LLM and merge the detector's hits.
//  6. Re-take the lock and apply feedback atomically; release.
//  7. Fold the exchange into the session history and statistics.
//
// A nonconforming analysis skips step 6 — the learner still gets the reply,
// and the skip is logged — whereas generation or analysis transport failures
// abort the turn with [ErrTurnAborted] before any state changes.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/nabu-app/nabu/internal/difficulty"
	"github.com/nabu-app/nabu/pkg/learner"
	"github.com/nabu-app/nabu/pkg/provider/llm"
)

// ErrTurnAborted indicates a collaborator (LLM, tool host) failed mid-turn.
// No learner state has been mutated when this is returned.
var ErrTurnAborted = errors.New("engine: turn aborted")

// TurnRequest carries one learner utterance into the pipeline.
type TurnRequest struct {
	// SessionID names the live session this turn belongs to.
	SessionID string

	// Utterance is the learner's message, already transcribed.
	Utterance string
}

// TurnResult is the outcome of one processed turn.
type TurnResult struct {
	SessionID string

	// Reply is the tutor's response text.
	Reply string

	// Band is the difficulty band the reply was generated under.
	Band difficulty.Band

	// VocabularyShown lists the items selected for practice this turn.
	VocabularyShown []learner.VocabularyItem

	// Analysis is the merged judgement of the learner's utterance. Nil when
	// analysis was rejected and feedback skipped.
	Analysis *learner.TurnAnalysis

	// FeedbackApplied reports whether learner state was updated.
	FeedbackApplied bool

	// NewWords lists vocabulary first stored this turn.
	NewWords []string

	// Proficiency is the learner's estimate after the turn. When feedback
	// was skipped it carries the pre-turn estimate.
	Proficiency float64

	// ToolCalls counts tool executions during generation.
	ToolCalls int

	// Duration is the end-to-end processing time.
	Duration time.Duration
}

// TurnEngine processes tutoring turns. Implemented by [Pipeline]; the HTTP
// layer depends on this interface so handlers can be tested with a mock.
type TurnEngine interface {
	// ProcessTurn runs one complete turn. It returns the tutor's reply and
	// turn metadata, or an error that left learner state untouched.
	ProcessTurn(ctx context.Context, req TurnRequest) (*TurnResult, error)
}

// ToolHost exposes callable tools to the generation stage. Implemented by
// the tools registry; nil disables tool calling.
type ToolHost interface {
	// AvailableTools lists the definitions offered to the model.
	AvailableTools() []llm.ToolDefinition

	// ExecuteTool runs the named tool and returns its textual result.
	ExecuteTool(ctx context.Context, name, args string) (string, error)
}

// PersonaSource resolves a persona name to the prompt text injected into the
// tutor system prompt. Implemented by the persona registry; nil leaves the
// persona section empty.
type PersonaSource interface {
	// Prompt returns the persona's prompt text for the given language.
	// Unknown names fall back to the default persona.
	Prompt(name, language string) string
}
