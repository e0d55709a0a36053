// Package learner defines the persistent learning state Nabu tracks for each
// learner and target language, and the storage interfaces over it.
//
// Two aggregates make up that state:
//
//   - [VocabularyItem]: one record per (learner, language, word) with
//     exposure counters and a mastery estimate in [0, 1]. Items are created
//     on first encounter and never deleted.
//   - [Profile]: per learner+language proficiency and engagement estimates
//     that drive difficulty adaptation.
//
// All interfaces are public so that external packages can supply alternative
// storage backends (Postgres/pgvector, SQLite, in-memory, …) without
// depending on nabu internals. [Store] is the combined surface the engine
// wires; [SemanticIndex] is an optional extension for backends that keep
// vocabulary embeddings.
//
// Every implementation must be safe for concurrent use.
package learner

import (
	"context"
	"errors"
)

// ErrStorageUnavailable indicates the backing store could not be reached or
// failed mid-operation. Implementations wrap the driver error with this
// sentinel so callers can match it with [errors.Is]. The condition is always
// propagated; learning state is never silently defaulted.
var ErrStorageUnavailable = errors.New("learner: storage unavailable")

// ErrNotFound indicates a record was required but does not exist.
// Plain lookups return (nil, nil) for absent records; ErrNotFound is reserved
// for operations that target an existing record, such as
// [SemanticIndex.UpdateEmbedding].
var ErrNotFound = errors.New("learner: not found")

// ErrInvalidRecord indicates a write was rejected because the record failed
// validation. The store is left unchanged.
var ErrInvalidRecord = errors.New("learner: invalid record")

// ─────────────────────────────────────────────────────────────────────────────
// Query options
// ─────────────────────────────────────────────────────────────────────────────

// listOptions accumulates options for [VocabularyStore.GetVocabulary].
// Unexported — callers configure it via [ListOpt] functional options.
type listOptions struct {
	minMastery    float64
	maxMastery    float64
	hasMinMastery bool
	hasMaxMastery bool
	limit         int
}

// ListOpt is a functional option for [VocabularyStore.GetVocabulary].
type ListOpt func(*listOptions)

// WithMinMastery restricts results to items with MasteryLevel >= m.
func WithMinMastery(m float64) ListOpt {
	return func(o *listOptions) {
		o.minMastery = m
		o.hasMinMastery = true
	}
}

// WithMaxMastery restricts results to items with MasteryLevel <= m.
func WithMaxMastery(m float64) ListOpt {
	return func(o *listOptions) {
		o.maxMastery = m
		o.hasMaxMastery = true
	}
}

// WithLimit caps the number of items returned.
// A value of 0 means no limit.
func WithLimit(n int) ListOpt {
	return func(o *listOptions) { o.limit = n }
}

// ListParams holds the resolved parameters from a slice of [ListOpt].
type ListParams struct {
	MinMastery    float64
	MaxMastery    float64
	HasMinMastery bool
	HasMaxMastery bool
	Limit         int
}

// ApplyListOpts applies a slice of [ListOpt] functional options and returns
// the resolved parameters as a [ListParams]. This helper allows storage
// backends to read the option values without access to the unexported
// [listOptions] type.
func ApplyListOpts(opts []ListOpt) ListParams {
	o := &listOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return ListParams{
		MinMastery:    o.minMastery,
		MaxMastery:    o.maxMastery,
		HasMinMastery: o.hasMinMastery,
		HasMaxMastery: o.hasMaxMastery,
		Limit:         o.limit,
	}
}

// Match reports whether item satisfies the resolved filter, ignoring Limit.
func (p ListParams) Match(item VocabularyItem) bool {
	if p.HasMinMastery && item.MasteryLevel < p.MinMastery {
		return false
	}
	if p.HasMaxMastery && item.MasteryLevel > p.MaxMastery {
		return false
	}
	return true
}

// ─────────────────────────────────────────────────────────────────────────────
// Vocabulary store
// ─────────────────────────────────────────────────────────────────────────────

// VocabularyStore persists [VocabularyItem] records keyed by
// (learner, language, word).
//
// Implementations must be safe for concurrent use.
type VocabularyStore interface {
	// GetVocabulary returns all items for the given learner and language
	// matching the options, ordered by word.
	// Returns an empty (non-nil) slice when no items match.
	GetVocabulary(ctx context.Context, learnerID, lang string, opts ...ListOpt) ([]VocabularyItem, error)

	// GetWord retrieves a single item by its full identity.
	// Returns (nil, nil) when the item does not exist.
	GetWord(ctx context.Context, learnerID, lang, word string) (*VocabularyItem, error)

	// UpsertVocabulary writes an item, replacing any existing record with the
	// same identity. Counters are stored as given; monotonicity is the
	// caller's responsibility.
	UpsertVocabulary(ctx context.Context, item VocabularyItem) error

	// SeedVocabulary inserts the given items, skipping any whose identity
	// already exists, and reports how many were created. Existing items are
	// never modified. Used by curriculum import.
	SeedVocabulary(ctx context.Context, items []VocabularyItem) (int, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Profile store
// ─────────────────────────────────────────────────────────────────────────────

// ProfileStore persists [Profile] records keyed by (learner, language).
//
// Implementations must be safe for concurrent use.
type ProfileStore interface {
	// GetProfile retrieves the profile for the given learner and language.
	// Returns (nil, nil) when no profile exists yet.
	GetProfile(ctx context.Context, learnerID, lang string) (*Profile, error)

	// UpsertProfile writes a profile, replacing any existing record with the
	// same identity.
	UpsertProfile(ctx context.Context, profile Profile) error
}

// ─────────────────────────────────────────────────────────────────────────────
// Atomic turn commit
// ─────────────────────────────────────────────────────────────────────────────

// TurnCommit is the complete set of state changes produced by one applied
// turn for a single learner and language. Items carry the full desired state
// of every touched vocabulary record (new or updated); Profile, when
// non-nil, is the full desired profile state.
type TurnCommit struct {
	LearnerID string
	Language  string
	Items     []VocabularyItem
	Profile   *Profile
}

// Validate reports every constraint violation on the commit as a joined
// error, including identity mismatches between the commit and its records.
func (c TurnCommit) Validate() error {
	var errs []error
	if c.LearnerID == "" {
		errs = append(errs, errors.New("learner id must not be empty"))
	}
	if c.Language == "" {
		errs = append(errs, errors.New("language must not be empty"))
	}
	for _, item := range c.Items {
		if err := item.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if item.LearnerID != c.LearnerID || item.Language != c.Language {
			errs = append(errs, errors.New("item identity does not match commit"))
		}
	}
	if c.Profile != nil {
		if err := c.Profile.Validate(); err != nil {
			errs = append(errs, err)
		} else if c.Profile.LearnerID != c.LearnerID || c.Profile.Language != c.Language {
			errs = append(errs, errors.New("profile identity does not match commit"))
		}
	}
	return errors.Join(errs...)
}

// TurnCommitter applies a [TurnCommit] atomically: either every item and the
// profile are written, or nothing changes. The feedback integrator relies on
// this to keep counters and the profile consistent when a write fails
// mid-turn.
type TurnCommitter interface {
	// ApplyTurn atomically upserts every record in the commit.
	// A validation failure or storage failure leaves the store unchanged.
	ApplyTurn(ctx context.Context, commit TurnCommit) error
}

// Store is the combined storage surface the engine operates on.
type Store interface {
	VocabularyStore
	ProfileStore
	TurnCommitter
}

// ─────────────────────────────────────────────────────────────────────────────
// Semantic index (optional extension)
// ─────────────────────────────────────────────────────────────────────────────

// RelatedWord pairs a vocabulary item with its vector-space distance from a
// query embedding. Lower Distance values indicate higher semantic similarity.
type RelatedWord struct {
	Item VocabularyItem

	// Distance is the cosine distance to the query embedding.
	Distance float64
}

// SemanticIndex is an optional store extension for backends that keep an
// embedding per vocabulary item. Embeddings are auxiliary retrieval metadata,
// not learning state: they are written by the maintenance backfill, never by
// the feedback path, and their absence only disables topic-related retrieval.
type SemanticIndex interface {
	// SearchRelated finds the topK items for the given learner and language
	// whose embeddings are closest to the query embedding.
	// Results are ordered by ascending Distance (most similar first); items
	// without an embedding are not returned.
	// Returns an empty (non-nil) slice when nothing matches.
	SearchRelated(ctx context.Context, learnerID, lang string, embedding []float32, topK int) ([]RelatedWord, error)

	// UpdateEmbedding sets the stored embedding for an existing item.
	// Returns an error wrapping [ErrNotFound] when the item does not exist.
	UpdateEmbedding(ctx context.Context, learnerID, lang, word string, embedding []float32) error

	// MissingEmbeddings returns up to limit items across all learners that
	// have no stored embedding yet, oldest first.
	// Returns an empty (non-nil) slice when every item is embedded.
	MissingEmbeddings(ctx context.Context, limit int) ([]VocabularyItem, error)
}
