package maintenance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nabu-app/nabu/internal/notes"
	"github.com/nabu-app/nabu/internal/session"
)

// ── test doubles ─────────────────────────────────────────────────────────────

type stubReaper struct {
	summaries []*session.Summary
}

func (r *stubReaper) ReapIdle() []*session.Summary { return r.summaries }

// captureNotes records everything saved and satisfies notes.Store.
type captureNotes struct {
	mu      sync.Mutex
	saved   []notes.Note
	saveErr error
}

func (c *captureNotes) Save(note notes.Note) error {
	return c.SaveAll([]notes.Note{note})
}

func (c *captureNotes) SaveAll(ns []notes.Note) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.saveErr != nil {
		return c.saveErr
	}
	c.saved = append(c.saved, ns...)
	return nil
}

func (c *captureNotes) Search(_ notes.SearchRequest) ([]notes.Result, error) {
	return []notes.Result{}, nil
}

func (c *captureNotes) Count() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(len(c.saved)), nil
}

func (c *captureNotes) Close() error { return nil }

var _ notes.Store = (*captureNotes)(nil)

func summaryWithTurns(id string, turns int) *session.Summary {
	now := time.Now().UTC()
	return &session.Summary{
		SessionID:           id,
		LearnerID:           "learner-1",
		Language:            "es",
		Mode:                "conversation",
		StartedAt:           now.Add(-20 * time.Minute),
		EndedAt:             now,
		Duration:            20 * time.Minute,
		Turns:               turns,
		AverageEngagement:   0.8,
		AverageDifficulty:   2.4,
		VocabularyPracticed: []string{"hola", "gato"},
		NewVocabulary:       []string{"gato"},
	}
}

// ── session reaper ───────────────────────────────────────────────────────────

func TestRunReap_WritesNotesForActiveSessions(t *testing.T) {
	reaper := &stubReaper{summaries: []*session.Summary{
		summaryWithTurns("sess-active", 3),
		summaryWithTurns("sess-empty", 0),
	}}
	store := &captureNotes{}

	s := New(reaper, WithNotes(store))
	s.runReap()

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.saved) == 0 {
		t.Fatal("expected notes for the session with turns, got none")
	}
	for _, n := range store.saved {
		if n.SessionID != "sess-active" {
			t.Errorf("note from session %q; zero-turn sessions should produce none", n.SessionID)
		}
		if n.LearnerID != "learner-1" {
			t.Errorf("note learner = %q, want learner-1", n.LearnerID)
		}
	}
}

func TestRunReap_NoNoteStore(t *testing.T) {
	reaper := &stubReaper{summaries: []*session.Summary{
		summaryWithTurns("sess-1", 2),
	}}

	// Notes disabled: reaping must still succeed.
	s := New(reaper)
	s.runReap()
}

func TestRunReap_NothingIdle(t *testing.T) {
	store := &captureNotes{}
	s := New(&stubReaper{}, WithNotes(store))
	s.runReap()

	if n, _ := store.Count(); n != 0 {
		t.Errorf("expected no notes, got %d", n)
	}
}

func TestRunReap_SaveFailureDoesNotPanic(t *testing.T) {
	reaper := &stubReaper{summaries: []*session.Summary{
		summaryWithTurns("sess-1", 2),
		summaryWithTurns("sess-2", 4),
	}}
	store := &captureNotes{saveErr: errors.New("index unavailable")}

	s := New(reaper, WithNotes(store))
	s.runReap() // both failures are logged and swallowed
}

// ── lifecycle ────────────────────────────────────────────────────────────────

func TestScheduler_StartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(&stubReaper{}, WithNotes(&captureNotes{}))
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Stop()
}
