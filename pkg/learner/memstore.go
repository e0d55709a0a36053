package learner

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// vocabKey is the composite identity of a vocabulary item.
type vocabKey struct {
	learnerID string
	lang      string
	word      string
}

// profileKey is the composite identity of a profile.
type profileKey struct {
	learnerID string
	lang      string
}

// MemStore is a thread-safe, in-memory implementation of [Store].
// It backs the "memory" storage driver and most tests.
// The zero value is ready to use.
type MemStore struct {
	mu       sync.RWMutex
	vocab    map[vocabKey]VocabularyItem
	profiles map[profileKey]Profile
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		vocab:    make(map[vocabKey]VocabularyItem),
		profiles: make(map[profileKey]Profile),
	}
}

// GetVocabulary implements [VocabularyStore.GetVocabulary].
func (s *MemStore) GetVocabulary(ctx context.Context, learnerID, lang string, opts ...ListOpt) ([]VocabularyItem, error) {
	params := ApplyListOpts(opts)

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]VocabularyItem, 0, len(s.vocab))
	for key, item := range s.vocab {
		if key.learnerID != learnerID || key.lang != lang {
			continue
		}
		if !params.Match(item) {
			continue
		}
		result = append(result, cloneItem(item))
	}
	slices.SortFunc(result, func(a, b VocabularyItem) int {
		return strings.Compare(a.Word, b.Word)
	})
	if params.Limit > 0 && len(result) > params.Limit {
		result = result[:params.Limit]
	}
	return result, nil
}

// GetWord implements [VocabularyStore.GetWord].
func (s *MemStore) GetWord(ctx context.Context, learnerID, lang, word string) (*VocabularyItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.vocab[vocabKey{learnerID, lang, word}]
	if !ok {
		return nil, nil
	}
	cp := cloneItem(item)
	return &cp, nil
}

// UpsertVocabulary implements [VocabularyStore.UpsertVocabulary].
func (s *MemStore) UpsertVocabulary(ctx context.Context, item VocabularyItem) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vocab == nil {
		s.vocab = make(map[vocabKey]VocabularyItem)
	}
	s.vocab[vocabKey{item.LearnerID, item.Language, item.Word}] = cloneItem(item)
	return nil
}

// SeedVocabulary implements [VocabularyStore.SeedVocabulary].
func (s *MemStore) SeedVocabulary(ctx context.Context, items []VocabularyItem) (int, error) {
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return 0, fmt.Errorf("%w: item %d (word %q): %w", ErrInvalidRecord, i, item.Word, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vocab == nil {
		s.vocab = make(map[vocabKey]VocabularyItem)
	}
	created := 0
	for _, item := range items {
		key := vocabKey{item.LearnerID, item.Language, item.Word}
		if _, exists := s.vocab[key]; exists {
			continue
		}
		s.vocab[key] = cloneItem(item)
		created++
	}
	return created, nil
}

// GetProfile implements [ProfileStore.GetProfile].
func (s *MemStore) GetProfile(ctx context.Context, learnerID, lang string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[profileKey{learnerID, lang}]
	if !ok {
		return nil, nil
	}
	cp := cloneProfile(p)
	return &cp, nil
}

// UpsertProfile implements [ProfileStore.UpsertProfile].
func (s *MemStore) UpsertProfile(ctx context.Context, profile Profile) error {
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profiles == nil {
		s.profiles = make(map[profileKey]Profile)
	}
	s.profiles[profileKey{profile.LearnerID, profile.Language}] = cloneProfile(profile)
	return nil
}

// ApplyTurn implements [TurnCommitter.ApplyTurn]. Validation happens before
// any write, so a rejected commit leaves the store untouched.
func (s *MemStore) ApplyTurn(ctx context.Context, commit TurnCommit) error {
	if err := commit.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vocab == nil {
		s.vocab = make(map[vocabKey]VocabularyItem)
	}
	if s.profiles == nil {
		s.profiles = make(map[profileKey]Profile)
	}
	for _, item := range commit.Items {
		s.vocab[vocabKey{item.LearnerID, item.Language, item.Word}] = cloneItem(item)
	}
	if commit.Profile != nil {
		p := *commit.Profile
		s.profiles[profileKey{p.LearnerID, p.Language}] = cloneProfile(p)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// cloneItem deep-copies an item so stored state never aliases caller memory.
func cloneItem(item VocabularyItem) VocabularyItem {
	item.LastSeenAt = cloneTime(item.LastSeenAt)
	item.LastUsedAt = cloneTime(item.LastUsedAt)
	return item
}

// cloneProfile deep-copies a profile, including its difficulties slice.
func cloneProfile(p Profile) Profile {
	p.Difficulties = slices.Clone(p.Difficulties)
	return p
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
