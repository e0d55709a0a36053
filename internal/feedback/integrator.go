// Package feedback applies a validated turn analysis to learner state.
//
// The [Integrator] is the sole writer of vocabulary counters, mastery levels,
// and learner profiles. Apply computes the complete post-turn state in memory
// — exposure counters for shown words, usage counters and mastery steps for
// judged words, the smoothed profile — then commits everything through one
// [learner.TurnCommitter.ApplyTurn] call, so a failure can never leave a
// turn half-applied.
//
// Apply is cumulative, not idempotent: the same analysis applied twice moves
// counters twice. At-most-once delivery per turn is the caller's job, as is
// serialising turns per learner+language (the engine holds a keyed lock
// around Apply).
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/nabu-app/nabu/internal/difficulty"
	"github.com/nabu-app/nabu/pkg/learner"
)

// Params holds the mastery-update constants of the integrator.
type Params struct {
	// CorrectStep is added to mastery on a correct use, capped at 1.0.
	CorrectStep float64

	// IncorrectStep is subtracted from mastery on an incorrect use, floored
	// at 0.0. Kept below CorrectStep so experimentation is rewarded on
	// balance.
	IncorrectStep float64

	// InitialMasteryCorrect seeds a word first observed in correct use.
	InitialMasteryCorrect float64

	// InitialMasteryIncorrect seeds a word first observed in incorrect use.
	InitialMasteryIncorrect float64
}

// DefaultParams returns the standard tuning.
func DefaultParams() Params {
	return Params{
		CorrectStep:             0.1,
		IncorrectStep:           0.05,
		InitialMasteryCorrect:   0.3,
		InitialMasteryIncorrect: 0.1,
	}
}

// Validate reports every constraint violation in the params as a joined
// error.
func (p Params) Validate() error {
	var errs []error
	if p.CorrectStep <= 0 || p.CorrectStep > 1 {
		errs = append(errs, fmt.Errorf("correct step %v must be in (0, 1]", p.CorrectStep))
	}
	if p.IncorrectStep <= 0 || p.IncorrectStep > 1 {
		errs = append(errs, fmt.Errorf("incorrect step %v must be in (0, 1]", p.IncorrectStep))
	}
	if p.IncorrectStep > p.CorrectStep {
		errs = append(errs, fmt.Errorf("incorrect step %v must not exceed correct step %v", p.IncorrectStep, p.CorrectStep))
	}
	if p.InitialMasteryCorrect < 0 || p.InitialMasteryCorrect > 1 {
		errs = append(errs, fmt.Errorf("initial mastery (correct) %v must be in [0, 1]", p.InitialMasteryCorrect))
	}
	if p.InitialMasteryIncorrect < 0 || p.InitialMasteryIncorrect > 1 {
		errs = append(errs, fmt.Errorf("initial mastery (incorrect) %v must be in [0, 1]", p.InitialMasteryIncorrect))
	}
	return errors.Join(errs...)
}

// ApplyRequest carries everything needed to fold one completed turn into
// learner state.
type ApplyRequest struct {
	// LearnerID and Language identify the state being updated.
	LearnerID string
	Language  string

	// Shown is the vocabulary actually presented to the tutor this turn
	// (the turn context's selected vocabulary). Every entry gets its
	// exposure counter bumped.
	Shown []learner.VocabularyItem

	// Analysis is the validated judgement of the learner's utterance.
	Analysis learner.TurnAnalysis
}

// Validate reports identity violations as a joined error.
func (r ApplyRequest) Validate() error {
	var errs []error
	if strings.TrimSpace(r.LearnerID) == "" {
		errs = append(errs, errors.New("learner id must not be empty"))
	}
	if strings.TrimSpace(r.Language) == "" {
		errs = append(errs, errors.New("language must not be empty"))
	}
	return errors.Join(errs...)
}

// Option is a functional option for configuring an [Integrator].
type Option func(*Integrator)

// WithAudit makes the integrator append a record to log after every
// committed turn. Audit failures are logged and never fail the turn.
func WithAudit(log *AuditLog) Option {
	return func(in *Integrator) {
		in.audit = log
	}
}

// Integrator folds turn analyses into the learner store. It is safe for
// concurrent use.
type Integrator struct {
	store   learner.Store
	adapter *difficulty.Adapter
	params  Params
	audit   *AuditLog
}

// ApplyResult reports what one applied turn changed.
type ApplyResult struct {
	// CreatedWords lists words first stored this turn, sorted. This covers
	// both shown words the store had never held and words the learner
	// produced spontaneously.
	CreatedWords []string

	// Proficiency is the learner's proficiency estimate after the update.
	Proficiency float64
}

// New returns an [Integrator] writing through store and smoothing profiles
// with adapter.
func New(store learner.Store, adapter *difficulty.Adapter, params Params, opts ...Option) (*Integrator, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("feedback: invalid params: %w", err)
	}
	in := &Integrator{
		store:   store,
		adapter: adapter,
		params:  params,
	}
	for _, o := range opts {
		o(in)
	}
	return in, nil
}

// Apply folds one turn into learner state: exposure counters for every shown
// word, usage counters and mastery steps for every judged word, then the
// profile update through the difficulty adapter. All writes commit
// atomically through a single ApplyTurn call.
//
// Malformed identifiers and out-of-domain analysis scores are rejected —
// wrapped in [difficulty.ErrInvalidInput] — before any write. Storage
// failures propagate with [learner.ErrStorageUnavailable] intact. In every
// failure case the store is left exactly as it was.
func (in *Integrator) Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", difficulty.ErrInvalidInput, err)
	}

	existing, err := in.store.GetVocabulary(ctx, req.LearnerID, req.Language)
	if err != nil {
		return nil, fmt.Errorf("feedback: read vocabulary for %q/%q: %w", req.LearnerID, req.Language, err)
	}
	prof, err := in.store.GetProfile(ctx, req.LearnerID, req.Language)
	if err != nil {
		return nil, fmt.Errorf("feedback: read profile for %q/%q: %w", req.LearnerID, req.Language, err)
	}

	now := time.Now().UTC()
	items, created := in.collectUpdates(req, existing, now)

	profile, err := in.updateProfile(prof, req, now)
	if err != nil {
		return nil, err
	}

	commit := learner.TurnCommit{
		LearnerID: req.LearnerID,
		Language:  req.Language,
		Items:     items,
		Profile:   &profile,
	}
	if err := in.store.ApplyTurn(ctx, commit); err != nil {
		return nil, fmt.Errorf("feedback: apply turn for %q/%q: %w", req.LearnerID, req.Language, err)
	}

	slog.Debug("feedback: applied turn",
		"learner_id", req.LearnerID,
		"language", req.Language,
		"words_shown", len(req.Shown),
		"words_used", len(req.Analysis.WordsUsed),
		"proficiency_estimate", profile.ProficiencyEstimate,
	)

	if in.audit != nil {
		if err := in.audit.Append(newRecord(req, profile, now)); err != nil {
			slog.Warn("feedback: audit append failed",
				"learner_id", req.LearnerID,
				"language", req.Language,
				"err", err,
			)
		}
	}
	return &ApplyResult{
		CreatedWords: created,
		Proficiency:  profile.ProficiencyEstimate,
	}, nil
}

// collectUpdates computes the post-turn state of every touched vocabulary
// item. Shown words gain exposure; judged words gain usage and a mastery
// step; words the store has never held are created. Both returned slices are
// sorted by word so commits are deterministic.
func (in *Integrator) collectUpdates(req ApplyRequest, existing []learner.VocabularyItem, now time.Time) (items []learner.VocabularyItem, created []string) {
	byWord := make(map[string]learner.VocabularyItem, len(existing))
	for _, item := range existing {
		byWord[item.Word] = item
	}

	touched := make(map[string]learner.VocabularyItem)
	createdSet := make(map[string]struct{})

	for _, s := range req.Shown {
		word := normalizeWord(s.Word)
		if word == "" {
			continue
		}
		item, ok := touched[word]
		if !ok {
			if item, ok = byWord[word]; !ok {
				// Shown but never stored: adopt the presented item under
				// this turn's identity with fresh counters.
				item = s
				item.LearnerID = req.LearnerID
				item.Language = req.Language
				item.Word = word
				item.TimesSeen = 0
				item.TimesUsed = 0
				item.LastSeenAt = nil
				item.LastUsedAt = nil
				item.CreatedAt = now
				createdSet[word] = struct{}{}
			}
		}
		item.TimesSeen++
		seenAt := now
		item.LastSeenAt = &seenAt
		touched[word] = item
	}

	for _, wu := range req.Analysis.WordsUsed {
		word := normalizeWord(wu.Word)
		if word == "" {
			continue
		}
		item, ok := touched[word]
		if !ok {
			item, ok = byWord[word]
		}
		switch {
		case !ok && wu.UsedCorrectly:
			item = in.newItem(req, word, in.params.InitialMasteryCorrect, now)
			createdSet[word] = struct{}{}
		case !ok:
			item = in.newItem(req, word, in.params.InitialMasteryIncorrect, now)
			createdSet[word] = struct{}{}
		case wu.UsedCorrectly:
			item.MasteryLevel = math.Min(1, item.MasteryLevel+in.params.CorrectStep)
		default:
			item.MasteryLevel = math.Max(0, item.MasteryLevel-in.params.IncorrectStep)
		}
		item.TimesUsed++
		usedAt := now
		item.LastUsedAt = &usedAt
		touched[word] = item
	}

	items = make([]learner.VocabularyItem, 0, len(touched))
	for _, item := range touched {
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b learner.VocabularyItem) int {
		return strings.Compare(a.Word, b.Word)
	})

	created = make([]string, 0, len(createdSet))
	for word := range createdSet {
		created = append(created, word)
	}
	slices.Sort(created)
	return items, created
}

// newItem creates a record for a word first observed in learner speech.
// Such items carry no translation until a curriculum import or a later turn
// supplies one.
func (in *Integrator) newItem(req ApplyRequest, word string, mastery float64, now time.Time) learner.VocabularyItem {
	return learner.VocabularyItem{
		LearnerID:    req.LearnerID,
		Language:     req.Language,
		Word:         word,
		MasteryLevel: mastery,
		CreatedAt:    now,
	}
}

// updateProfile runs the difficulty adapter over the current profile,
// seeding a first profile at the bottom of the proficiency scale.
func (in *Integrator) updateProfile(prof *learner.Profile, req ApplyRequest, now time.Time) (learner.Profile, error) {
	var profile learner.Profile
	if prof != nil {
		profile = *prof
		profile.Difficulties = slices.Clone(prof.Difficulties)
	} else {
		profile = learner.Profile{
			LearnerID:           req.LearnerID,
			Language:            req.Language,
			ProficiencyEstimate: in.adapter.Params().MinProficiency,
			CreatedAt:           now,
		}
	}

	updated, err := in.adapter.Update(profile, req.Analysis.DifficultyObserved, req.Analysis.EngagementScore)
	if err != nil {
		return learner.Profile{}, fmt.Errorf("feedback: update profile: %w", err)
	}
	updated.UpdatedAt = now
	return updated, nil
}

// normalizeWord lowercases and trims a word to its storage key form.
func normalizeWord(w string) string {
	return strings.ToLower(strings.TrimSpace(w))
}
