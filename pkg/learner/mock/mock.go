// Package mock provides in-memory test doubles for the learner storage
// interfaces.
//
// Each mock records every method call for assertion in tests and exposes
// exported fields that control what the mock returns. All mocks are safe for
// concurrent use via an internal [sync.Mutex].
//
// Typical usage:
//
//	store := &mock.Store{}
//	store.GetVocabularyResult = []learner.VocabularyItem{{Word: "casa"}}
//
//	// inject store into the system under test …
//
//	if got := store.CallCount("ApplyTurn"); got != 1 {
//	    t.Errorf("expected 1 ApplyTurn call, got %d", got)
//	}
package mock

import (
	"context"
	"sync"

	"github.com/nabu-app/nabu/pkg/learner"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// ─────────────────────────────────────────────────────────────────────────────
// Store mock
// ─────────────────────────────────────────────────────────────────────────────

// Store is a configurable test double for [learner.Store].
// All exported *Err fields default to nil (success); all exported *Result
// slice fields default to nil (empty slice returned).
type Store struct {
	mu sync.Mutex

	// calls records every method invocation in order.
	calls []Call

	// GetVocabularyResult is returned by [Store.GetVocabulary].
	// When nil, GetVocabulary returns an empty non-nil slice.
	GetVocabularyResult []learner.VocabularyItem

	// GetVocabularyErr is returned by [Store.GetVocabulary] when non-nil.
	GetVocabularyErr error

	// GetWordResult is returned by [Store.GetWord].
	GetWordResult *learner.VocabularyItem

	// GetWordErr is returned by [Store.GetWord] when non-nil.
	GetWordErr error

	// UpsertVocabularyErr is returned by [Store.UpsertVocabulary] when non-nil.
	UpsertVocabularyErr error

	// SeedVocabularyCreated is returned by [Store.SeedVocabulary].
	SeedVocabularyCreated int

	// SeedVocabularyErr is returned by [Store.SeedVocabulary] when non-nil.
	SeedVocabularyErr error

	// GetProfileResult is returned by [Store.GetProfile].
	GetProfileResult *learner.Profile

	// GetProfileErr is returned by [Store.GetProfile] when non-nil.
	GetProfileErr error

	// UpsertProfileErr is returned by [Store.UpsertProfile] when non-nil.
	UpsertProfileErr error

	// ApplyTurnErr is returned by [Store.ApplyTurn] when non-nil.
	ApplyTurnErr error
}

// Calls returns a copy of all recorded method invocations.
func (m *Store) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *Store) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls without altering response configuration.
func (m *Store) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// GetVocabulary implements [learner.VocabularyStore].
func (m *Store) GetVocabulary(_ context.Context, learnerID, lang string, opts ...learner.ListOpt) ([]learner.VocabularyItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "GetVocabulary", Args: []any{learnerID, lang, learner.ApplyListOpts(opts)}})
	if m.GetVocabularyResult == nil {
		return []learner.VocabularyItem{}, m.GetVocabularyErr
	}
	out := make([]learner.VocabularyItem, len(m.GetVocabularyResult))
	copy(out, m.GetVocabularyResult)
	return out, m.GetVocabularyErr
}

// GetWord implements [learner.VocabularyStore].
func (m *Store) GetWord(_ context.Context, learnerID, lang, word string) (*learner.VocabularyItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "GetWord", Args: []any{learnerID, lang, word}})
	if m.GetWordResult == nil {
		return nil, m.GetWordErr
	}
	cp := *m.GetWordResult
	return &cp, m.GetWordErr
}

// UpsertVocabulary implements [learner.VocabularyStore].
func (m *Store) UpsertVocabulary(_ context.Context, item learner.VocabularyItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "UpsertVocabulary", Args: []any{item}})
	return m.UpsertVocabularyErr
}

// SeedVocabulary implements [learner.VocabularyStore].
func (m *Store) SeedVocabulary(_ context.Context, items []learner.VocabularyItem) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "SeedVocabulary", Args: []any{items}})
	return m.SeedVocabularyCreated, m.SeedVocabularyErr
}

// GetProfile implements [learner.ProfileStore].
func (m *Store) GetProfile(_ context.Context, learnerID, lang string) (*learner.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "GetProfile", Args: []any{learnerID, lang}})
	if m.GetProfileResult == nil {
		return nil, m.GetProfileErr
	}
	cp := *m.GetProfileResult
	return &cp, m.GetProfileErr
}

// UpsertProfile implements [learner.ProfileStore].
func (m *Store) UpsertProfile(_ context.Context, profile learner.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "UpsertProfile", Args: []any{profile}})
	return m.UpsertProfileErr
}

// ApplyTurn implements [learner.TurnCommitter].
func (m *Store) ApplyTurn(_ context.Context, commit learner.TurnCommit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "ApplyTurn", Args: []any{commit}})
	return m.ApplyTurnErr
}

// Ensure Store satisfies the interface at compile time.
var _ learner.Store = (*Store)(nil)

// ─────────────────────────────────────────────────────────────────────────────
// SemanticIndex mock
// ─────────────────────────────────────────────────────────────────────────────

// SemanticIndex is a configurable test double for [learner.SemanticIndex].
type SemanticIndex struct {
	mu sync.Mutex

	calls []Call

	// SearchRelatedResult is returned by [SemanticIndex.SearchRelated].
	// When nil, SearchRelated returns an empty non-nil slice.
	SearchRelatedResult []learner.RelatedWord

	// SearchRelatedErr is returned by [SemanticIndex.SearchRelated] when non-nil.
	SearchRelatedErr error

	// UpdateEmbeddingErr is returned by [SemanticIndex.UpdateEmbedding] when non-nil.
	UpdateEmbeddingErr error

	// MissingEmbeddingsResult is returned by [SemanticIndex.MissingEmbeddings].
	// When nil, MissingEmbeddings returns an empty non-nil slice.
	MissingEmbeddingsResult []learner.VocabularyItem

	// MissingEmbeddingsErr is returned by [SemanticIndex.MissingEmbeddings] when non-nil.
	MissingEmbeddingsErr error
}

// Calls returns a copy of all recorded method invocations.
func (m *SemanticIndex) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *SemanticIndex) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls without altering response configuration.
func (m *SemanticIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// SearchRelated implements [learner.SemanticIndex].
func (m *SemanticIndex) SearchRelated(_ context.Context, learnerID, lang string, embedding []float32, topK int) ([]learner.RelatedWord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "SearchRelated", Args: []any{learnerID, lang, embedding, topK}})
	if m.SearchRelatedResult == nil {
		return []learner.RelatedWord{}, m.SearchRelatedErr
	}
	out := make([]learner.RelatedWord, len(m.SearchRelatedResult))
	copy(out, m.SearchRelatedResult)
	return out, m.SearchRelatedErr
}

// UpdateEmbedding implements [learner.SemanticIndex].
func (m *SemanticIndex) UpdateEmbedding(_ context.Context, learnerID, lang, word string, embedding []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "UpdateEmbedding", Args: []any{learnerID, lang, word, embedding}})
	return m.UpdateEmbeddingErr
}

// MissingEmbeddings implements [learner.SemanticIndex].
func (m *SemanticIndex) MissingEmbeddings(_ context.Context, limit int) ([]learner.VocabularyItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "MissingEmbeddings", Args: []any{limit}})
	if m.MissingEmbeddingsResult == nil {
		return []learner.VocabularyItem{}, m.MissingEmbeddingsErr
	}
	out := make([]learner.VocabularyItem, len(m.MissingEmbeddingsResult))
	copy(out, m.MissingEmbeddingsResult)
	return out, m.MissingEmbeddingsErr
}

// Ensure SemanticIndex satisfies the interface at compile time.
var _ learner.SemanticIndex = (*SemanticIndex)(nil)
