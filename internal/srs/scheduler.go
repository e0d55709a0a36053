// Package srs selects which vocabulary items to surface in the next turn.
//
// Selection is a pure ranking over the learner's stored vocabulary; it never
// mutates state. Items are ordered by review urgency:
//
//  1. Items below the review threshold (weak mastery) come before items at or
//     above it.
//  2. Within each group, the least recently surfaced item comes first. An
//     item that was never surfaced ranks as maximally overdue.
//  3. Remaining ties break on lower mastery, then on the word itself, so the
//     ordering is fully deterministic.
package srs

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/nabu-app/nabu/pkg/learner"
)

// DefaultReviewThreshold is the mastery level below which an item is
// considered in need of review.
const DefaultReviewThreshold = 0.5

// Scheduler ranks a learner's vocabulary for review.
type Scheduler struct {
	store     learner.VocabularyStore
	threshold float64
}

// Option configures a [Scheduler].
type Option func(*Scheduler)

// WithReviewThreshold overrides [DefaultReviewThreshold]. Values outside
// (0, 1] are ignored.
func WithReviewThreshold(t float64) Option {
	return func(s *Scheduler) {
		if t > 0 && t <= 1 {
			s.threshold = t
		}
	}
}

// New returns a Scheduler reading from store.
func New(store learner.VocabularyStore, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:     store,
		threshold: DefaultReviewThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select returns up to maxItems vocabulary items for the given learner and
// language, most review-worthy first. The result contains no duplicate words
// and is identical across calls while the underlying store is unchanged.
//
// A learner with no stored vocabulary yields an empty (non-nil) slice and no
// error; maxItems <= 0 likewise yields an empty slice. Store failures are
// propagated.
func (s *Scheduler) Select(ctx context.Context, learnerID, lang string, maxItems int) ([]learner.VocabularyItem, error) {
	if maxItems <= 0 {
		return []learner.VocabularyItem{}, nil
	}

	items, err := s.store.GetVocabulary(ctx, learnerID, lang)
	if err != nil {
		return nil, fmt.Errorf("srs: select vocabulary for %q/%q: %w", learnerID, lang, err)
	}

	slices.SortFunc(items, s.compare)

	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items, nil
}

// compare is the total order behind [Scheduler.Select]. Negative means a
// ranks before b.
func (s *Scheduler) compare(a, b learner.VocabularyItem) int {
	if ba, bb := s.bucket(a), s.bucket(b); ba != bb {
		return ba - bb
	}
	if c := compareLastSeen(a.LastSeenAt, b.LastSeenAt); c != 0 {
		return c
	}
	if a.MasteryLevel != b.MasteryLevel {
		if a.MasteryLevel < b.MasteryLevel {
			return -1
		}
		return 1
	}
	return strings.Compare(a.Word, b.Word)
}

// bucket groups items by review urgency: 0 for weak mastery, 1 otherwise.
func (s *Scheduler) bucket(item learner.VocabularyItem) int {
	if item.MasteryLevel < s.threshold {
		return 0
	}
	return 1
}

// compareLastSeen orders nil (never surfaced) before any timestamp, and
// earlier timestamps before later ones.
func compareLastSeen(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case a.Before(*b):
		return -1
	case b.Before(*a):
		return 1
	default:
		return 0
	}
}
