// Package turnctx assembles the per-turn tutoring context injected into every
// LLM call of the Nabu conversation pipeline.
//
// A turn context combines three components that are fetched concurrently:
//
//  1. Vocabulary due for practice, ranked by the spaced-repetition scheduler.
//  2. The learner's proficiency profile and the difficulty band derived from it.
//  3. Known words semantically related to the current topic (optional, requires
//     an embedding provider and a vector-capable store).
//
// Assembly is a pure read: it never mutates learner state. Use
// [FormatSystemPrompt] to convert a [TurnContext] into a system prompt string
// ready for LLM injection.
package turnctx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nabu-app/nabu/internal/difficulty"
	"github.com/nabu-app/nabu/pkg/learner"
)

// ErrInvalidRequest is returned by [Assembler.Build] when the request is
// missing a learner ID or language.
var ErrInvalidRequest = errors.New("turnctx: invalid request")

// ─────────────────────────────────────────────────────────────────────────────
// Public types
// ─────────────────────────────────────────────────────────────────────────────

// TurnContext is the assembled context injected into every tutoring LLM call.
// Band and the learner identity are always populated; the remaining fields may
// be empty when the learner is new or retrieval is unavailable.
type TurnContext struct {
	// LearnerID and Language identify whose context this is.
	LearnerID string
	Language  string

	// Band is the difficulty band recommended for this turn.
	Band difficulty.Band

	// Profile is a snapshot of the learner's proficiency profile. A learner
	// with no stored profile gets a zero-valued snapshot (identity fields set).
	Profile learner.Profile

	// SelectedVocabulary holds the items due for practice this turn, ranked
	// most urgent first. Never nil.
	SelectedVocabulary []learner.VocabularyItem

	// RelatedWords holds known words semantically related to the topic hint,
	// nearest first. Empty when no semantic retrieval is configured, the hint
	// is empty, or retrieval failed.
	RelatedWords []learner.RelatedWord

	// RecentTopics carries conversation topics forwarded by the caller.
	RecentTopics []string

	// FocusAreas lists difficulty tags to reinforce this turn: the caller's
	// request flags merged with the profile's recorded difficulties.
	FocusAreas []string

	// AssemblyDuration records how long [Assembler.Build] took.
	AssemblyDuration time.Duration
}

// BuildRequest carries the per-turn inputs to [Assembler.Build].
type BuildRequest struct {
	// LearnerID and Language select the learner state to assemble. Required.
	LearnerID string
	Language  string

	// TopicHint is free text describing the current conversation topic (for
	// example the learner's last utterance). When non-empty and semantic
	// retrieval is configured, it seeds the related-word lookup.
	TopicHint string

	// RecentTopics is carried into the context verbatim.
	RecentTopics []string

	// FocusAreas are reinforcement tags the caller wants emphasised this turn,
	// merged ahead of the profile's own difficulty tags.
	FocusAreas []string
}

// Validate reports whether the request identifies a learner and language.
func (r BuildRequest) Validate() error {
	var errs []error
	if strings.TrimSpace(r.LearnerID) == "" {
		errs = append(errs, errors.New("learner id is empty"))
	}
	if strings.TrimSpace(r.Language) == "" {
		errs = append(errs, errors.New("language is empty"))
	}
	return errors.Join(errs...)
}

// VocabSelector picks the vocabulary items due for practice. Implemented by
// the spaced-repetition scheduler.
type VocabSelector interface {
	Select(ctx context.Context, learnerID, lang string, maxItems int) ([]learner.VocabularyItem, error)
}

// Embedder maps a text string to an embedding vector. Satisfied by any
// embeddings provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Assembler
// ─────────────────────────────────────────────────────────────────────────────

// Assembler concurrently fetches the turn-context components and combines them
// into a [TurnContext].
type Assembler struct {
	vocab    VocabSelector
	profiles learner.ProfileStore
	adapter  *difficulty.Adapter

	index    learner.SemanticIndex
	embedder Embedder

	maxVocab        int
	maxContextWords int
	relatedTopK     int
}

// Option is a functional option for [New].
type Option func(*Assembler)

// WithMaxVocab caps how many vocabulary items [Assembler.Build] requests from
// the scheduler. Defaults to 8. Values < 1 are ignored.
func WithMaxVocab(n int) Option {
	return func(a *Assembler) {
		if n >= 1 {
			a.maxVocab = n
		}
	}
}

// WithMaxContextWords sets the word budget for the variable-length sections of
// the assembled context. When the budget is exceeded, related words are
// dropped first, then selected vocabulary from the tail of the ranking; the
// learner identity and difficulty band are never dropped. Defaults to 250.
// Values < 1 are ignored.
func WithMaxContextWords(n int) Option {
	return func(a *Assembler) {
		if n >= 1 {
			a.maxContextWords = n
		}
	}
}

// WithRelatedTopK sets how many related words the semantic lookup requests.
// Defaults to 4. Values < 1 are ignored.
func WithRelatedTopK(n int) Option {
	return func(a *Assembler) {
		if n >= 1 {
			a.relatedTopK = n
		}
	}
}

// WithSemanticRetrieval enables topic-related word lookup using the given
// vector index and embedding provider. Without this option the RelatedWords
// component is always empty.
func WithSemanticRetrieval(index learner.SemanticIndex, embedder Embedder) Option {
	return func(a *Assembler) {
		a.index = index
		a.embedder = embedder
	}
}

// New creates an [Assembler] with sensible defaults.
// Apply [Option] values to override the defaults.
func New(vocab VocabSelector, profiles learner.ProfileStore, adapter *difficulty.Adapter, opts ...Option) *Assembler {
	a := &Assembler{
		vocab:           vocab,
		profiles:        profiles,
		adapter:         adapter,
		maxVocab:        8,
		maxContextWords: 250,
		relatedTopK:     4,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Build concurrently fetches the context components and returns a fully
// populated [TurnContext].
//
// The vocabulary selection, profile fetch, and semantic retrieval run in
// parallel via errgroup. If the vocabulary or profile fetch fails, assembly is
// aborted and that error is returned — wrapped with a "turn context: " prefix.
// A failed semantic retrieval only degrades the result: the error is logged
// and RelatedWords stays empty, because related words are an enrichment while
// vocabulary and band are the contract.
//
// Build respects context cancellation on all underlying I/O calls.
func (a *Assembler) Build(ctx context.Context, req BuildRequest) (*TurnContext, error) {
	start := time.Now()

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	var (
		selected []learner.VocabularyItem
		profile  *learner.Profile
		related  []learner.RelatedWord
	)

	eg, egCtx := errgroup.WithContext(ctx)

	// ── goroutine 1: vocabulary selection ────────────────────────────────────
	eg.Go(func() error {
		items, err := a.vocab.Select(egCtx, req.LearnerID, req.Language, a.maxVocab)
		if err != nil {
			return fmt.Errorf("turn context: select vocabulary for %q/%q: %w", req.LearnerID, req.Language, err)
		}
		selected = items
		return nil
	})

	// ── goroutine 2: proficiency profile ─────────────────────────────────────
	eg.Go(func() error {
		p, err := a.profiles.GetProfile(egCtx, req.LearnerID, req.Language)
		if err != nil {
			return fmt.Errorf("turn context: load profile for %q/%q: %w", req.LearnerID, req.Language, err)
		}
		profile = p
		return nil
	})

	// ── goroutine 3: topic-related words (optional, degrades on failure) ─────
	hint := strings.TrimSpace(req.TopicHint)
	if a.index != nil && a.embedder != nil && hint != "" {
		eg.Go(func() error {
			words, err := a.fetchRelated(egCtx, req.LearnerID, req.Language, hint)
			if err != nil {
				slog.Warn("turnctx: related-word retrieval failed",
					"learner_id", req.LearnerID,
					"language", req.Language,
					"err", err)
				return nil
			}
			related = words
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	prof := learner.Profile{LearnerID: req.LearnerID, Language: req.Language}
	if profile != nil {
		prof = *profile
	}

	tc := &TurnContext{
		LearnerID:          req.LearnerID,
		Language:           req.Language,
		Band:               a.adapter.Recommend(prof),
		Profile:            prof,
		SelectedVocabulary: selected,
		RelatedWords:       filterRelated(related, selected),
		RecentTopics:       req.RecentTopics,
		FocusAreas:         mergeFocusAreas(req.FocusAreas, prof.Difficulties),
	}
	a.truncate(tc)

	tc.AssemblyDuration = time.Since(start)
	slog.Debug("turnctx: assembled turn context",
		"learner_id", tc.LearnerID,
		"language", tc.Language,
		"band", tc.Band,
		"vocabulary", len(tc.SelectedVocabulary),
		"related", len(tc.RelatedWords),
		"duration", tc.AssemblyDuration)
	return tc, nil
}

// fetchRelated embeds the topic hint and queries the semantic index for the
// nearest known words.
func (a *Assembler) fetchRelated(ctx context.Context, learnerID, lang, hint string) ([]learner.RelatedWord, error) {
	vec, err := a.embedder.Embed(ctx, hint)
	if err != nil {
		return nil, fmt.Errorf("embed topic hint: %w", err)
	}
	words, err := a.index.SearchRelated(ctx, learnerID, lang, vec, a.relatedTopK)
	if err != nil {
		return nil, fmt.Errorf("search related words: %w", err)
	}
	return words, nil
}

// filterRelated removes related words that are already part of the selected
// vocabulary, so the two prompt sections never repeat each other.
func filterRelated(related []learner.RelatedWord, selected []learner.VocabularyItem) []learner.RelatedWord {
	if len(related) == 0 {
		return related
	}
	chosen := make(map[string]bool, len(selected))
	for _, it := range selected {
		chosen[it.Word] = true
	}
	var out []learner.RelatedWord
	for _, rw := range related {
		if !chosen[rw.Item.Word] {
			out = append(out, rw)
		}
	}
	return out
}

// mergeFocusAreas combines the caller's reinforcement tags with the profile's
// recorded difficulties, first occurrence wins, order preserved.
func mergeFocusAreas(requested, recorded []string) []string {
	var out []string
	seen := make(map[string]bool, len(requested)+len(recorded))
	for _, tag := range append(append([]string{}, requested...), recorded...) {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

// truncate enforces the assembler's word budget over the variable-length
// sections. Related words are dropped first (nearest-last order), then
// selected vocabulary from the tail of the ranking. The scheduler returns
// vocabulary ranked most urgent first, so trimming the tail removes the least
// important items. Identity, band, topics, and focus areas are never dropped.
func (a *Assembler) truncate(tc *TurnContext) {
	for contextWords(tc) > a.maxContextWords {
		switch {
		case len(tc.RelatedWords) > 0:
			tc.RelatedWords = tc.RelatedWords[:len(tc.RelatedWords)-1]
		case len(tc.SelectedVocabulary) > 0:
			tc.SelectedVocabulary = tc.SelectedVocabulary[:len(tc.SelectedVocabulary)-1]
		default:
			return
		}
	}
}

// contextWords counts the words contributed by the variable-length sections.
func contextWords(tc *TurnContext) int {
	n := 0
	for _, it := range tc.SelectedVocabulary {
		n += len(strings.Fields(it.Word)) + len(strings.Fields(it.Translation))
	}
	for _, rw := range tc.RelatedWords {
		n += len(strings.Fields(rw.Item.Word)) + len(strings.Fields(rw.Item.Translation))
	}
	for _, topic := range tc.RecentTopics {
		n += len(strings.Fields(topic))
	}
	for _, tag := range tc.FocusAreas {
		n += len(strings.Fields(tag))
	}
	return n
}
