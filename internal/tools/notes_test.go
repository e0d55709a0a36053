package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nabu-app/nabu/internal/notes"
)

// stubNoteStore records saves and serves canned search results.
type stubNoteStore struct {
	saveErr   error
	searchErr error

	searchResults []notes.Result

	saved    []notes.Note
	requests []notes.SearchRequest
}

var _ notes.Store = (*stubNoteStore)(nil)

func (s *stubNoteStore) Save(note notes.Note) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, note)
	return nil
}

func (s *stubNoteStore) SaveAll(batch []notes.Note) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, batch...)
	return nil
}

func (s *stubNoteStore) Search(req notes.SearchRequest) ([]notes.Result, error) {
	s.requests = append(s.requests, req)
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.searchResults, nil
}

func (s *stubNoteStore) Count() (uint64, error) { return uint64(len(s.saved)), nil }

func (s *stubNoteStore) Close() error { return nil }

// ─────────────────────────────────────────────────────────────────────────────
// save_note
// ─────────────────────────────────────────────────────────────────────────────

func TestSaveNote_Success(t *testing.T) {
	t.Parallel()
	store := &stubNoteStore{}
	handler := makeSaveNoteHandler(store)

	out, err := handler(context.Background(), `{
		"title": "Ser vs estar",
		"content": "Use ser for permanent traits, estar for states.",
		"category": "grammar",
		"language": "ES",
		"tags": ["verbs"],
		"priority": 3
	}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.saved) != 1 {
		t.Fatalf("expected 1 saved note, got %d", len(store.saved))
	}
	note := store.saved[0]
	if note.ID == "" {
		t.Error("saved note has empty ID")
	}
	if note.Category != notes.CategoryGrammar {
		t.Errorf("Category = %q, want %q", note.Category, notes.CategoryGrammar)
	}
	if note.Language != "es" {
		t.Errorf("Language = %q, want %q (normalized)", note.Language, "es")
	}
	if note.Priority != notes.PriorityHigh {
		t.Errorf("Priority = %d, want %d", note.Priority, notes.PriorityHigh)
	}
	if note.CreatedAt.IsZero() {
		t.Error("saved note has zero CreatedAt")
	}

	var res saveNoteResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("failed to unmarshal: %v\noutput: %s", err, out)
	}
	if res.ID != note.ID {
		t.Errorf("result ID = %q, want %q", res.ID, note.ID)
	}
	if res.Title != "Ser vs estar" {
		t.Errorf("result Title = %q, want %q", res.Title, "Ser vs estar")
	}
}

// TestSaveNote_Defaults verifies the category and priority fallbacks.
func TestSaveNote_Defaults(t *testing.T) {
	t.Parallel()
	store := &stubNoteStore{}
	handler := makeSaveNoteHandler(store)

	_, err := handler(context.Background(), `{"title":"Falsos amigos","content":"embarazada means pregnant, not embarrassed"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.saved) != 1 {
		t.Fatalf("expected 1 saved note, got %d", len(store.saved))
	}
	note := store.saved[0]
	if note.Category != notes.CategoryVocabulary {
		t.Errorf("Category = %q, want default %q", note.Category, notes.CategoryVocabulary)
	}
	if note.Priority != notes.PriorityMedium {
		t.Errorf("Priority = %d, want default %d", note.Priority, notes.PriorityMedium)
	}
}

func TestSaveNote_EmptyTitle(t *testing.T) {
	t.Parallel()
	handler := makeSaveNoteHandler(&stubNoteStore{})

	_, err := handler(context.Background(), `{"title":"","content":"body"}`)
	if err == nil {
		t.Error("expected error for empty title")
	}
	if !strings.HasPrefix(err.Error(), "tools:") {
		t.Errorf("error %q should be prefixed with 'tools:'", err.Error())
	}
}

func TestSaveNote_EmptyContent(t *testing.T) {
	t.Parallel()
	handler := makeSaveNoteHandler(&stubNoteStore{})

	_, err := handler(context.Background(), `{"title":"headline","content":""}`)
	if err == nil {
		t.Error("expected error for empty content")
	}
}

func TestSaveNote_UnknownCategory(t *testing.T) {
	t.Parallel()
	handler := makeSaveNoteHandler(&stubNoteStore{})

	_, err := handler(context.Background(), `{"title":"t","content":"c","category":"gossip"}`)
	if err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestSaveNote_PriorityOutOfRange(t *testing.T) {
	t.Parallel()
	handler := makeSaveNoteHandler(&stubNoteStore{})

	_, err := handler(context.Background(), `{"title":"t","content":"c","priority":7}`)
	if err == nil {
		t.Error("expected error for out-of-range priority")
	}
}

func TestSaveNote_StoreError(t *testing.T) {
	t.Parallel()
	handler := makeSaveNoteHandler(&stubNoteStore{saveErr: errors.New("index offline")})

	_, err := handler(context.Background(), `{"title":"t","content":"c"}`)
	if err == nil {
		t.Error("expected error from store")
	}
}

func TestSaveNote_BadJSON(t *testing.T) {
	t.Parallel()
	handler := makeSaveNoteHandler(&stubNoteStore{})

	_, err := handler(context.Background(), `{bad json}`)
	if err == nil {
		t.Error("expected error for bad JSON")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// search_notes
// ─────────────────────────────────────────────────────────────────────────────

func TestSearchNotes_Success(t *testing.T) {
	t.Parallel()
	store := &stubNoteStore{
		searchResults: []notes.Result{
			{
				Note: notes.Note{
					ID:        "n1",
					Title:     "ES Grammar Focus",
					Content:   "Review ser vs estar",
					Category:  notes.CategoryGrammar,
					Priority:  notes.PriorityMedium,
					Tags:      []string{"es", "grammar"},
					Language:  "es",
					LearnerID: "learner-1",
					CreatedAt: time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC),
				},
				Score: 1.2,
			},
		},
	}
	handler := makeSearchNotesHandler(store)

	out, err := handler(context.Background(), `{"query":"ser","category":"grammar","language":"ES","limit":5}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var hits []noteHit
	if err := json.Unmarshal([]byte(out), &hits); err != nil {
		t.Fatalf("failed to unmarshal: %v\noutput: %s", err, out)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].Title != "ES Grammar Focus" {
		t.Errorf("Title = %q, want %q", hits[0].Title, "ES Grammar Focus")
	}
	if hits[0].CreatedAt == "" {
		t.Error("CreatedAt should be set")
	}

	// Learner attribution stays out of model-facing results.
	if strings.Contains(out, "learner-1") {
		t.Errorf("output %q should not expose the learner ID", out)
	}

	// Verify the request was forwarded with a normalized language.
	if len(store.requests) != 1 {
		t.Fatalf("expected 1 search request, got %d", len(store.requests))
	}
	req := store.requests[0]
	if req.Query != "ser" || req.Category != notes.CategoryGrammar || req.Language != "es" || req.Limit != 5 {
		t.Errorf("unexpected search request: %+v", req)
	}
}

// TestSearchNotes_CategoryOnly verifies that a filter-only search is allowed.
func TestSearchNotes_CategoryOnly(t *testing.T) {
	t.Parallel()
	store := &stubNoteStore{}
	handler := makeSearchNotesHandler(store)

	out, err := handler(context.Background(), `{"category":"progress"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "[]" {
		t.Errorf("output = %q, want %q", out, "[]")
	}
	if len(store.requests) != 1 || store.requests[0].Category != notes.CategoryProgress {
		t.Errorf("unexpected search requests: %+v", store.requests)
	}
}

func TestSearchNotes_RequiresQueryOrCategory(t *testing.T) {
	t.Parallel()
	handler := makeSearchNotesHandler(&stubNoteStore{})

	_, err := handler(context.Background(), `{}`)
	if err == nil {
		t.Error("expected error for empty query and category")
	}
}

func TestSearchNotes_UnknownCategory(t *testing.T) {
	t.Parallel()
	handler := makeSearchNotesHandler(&stubNoteStore{})

	_, err := handler(context.Background(), `{"category":"gossip"}`)
	if err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestSearchNotes_StoreError(t *testing.T) {
	t.Parallel()
	handler := makeSearchNotesHandler(&stubNoteStore{searchErr: errors.New("index offline")})

	_, err := handler(context.Background(), `{"query":"anything"}`)
	if err == nil {
		t.Error("expected error from store")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// NoteTools
// ─────────────────────────────────────────────────────────────────────────────

func TestNoteTools_ReturnsExpectedTools(t *testing.T) {
	t.Parallel()

	ts := NoteTools(&stubNoteStore{})
	if len(ts) != 2 {
		t.Fatalf("NoteTools returned %d tools, want 2", len(ts))
	}

	wantNames := map[string]bool{
		"save_note":    true,
		"search_notes": true,
	}

	for _, tool := range ts {
		if !wantNames[tool.Definition.Name] {
			t.Errorf("unexpected tool name %q", tool.Definition.Name)
		}
		delete(wantNames, tool.Definition.Name)

		if tool.Handler == nil {
			t.Errorf("tool %q has nil Handler", tool.Definition.Name)
		}
	}

	for missing := range wantNames {
		t.Errorf("NoteTools missing tool %q", missing)
	}
}

// TestNoteTools_WithRealIndex saves and retrieves a note through a live
// in-memory index.
func TestNoteTools_WithRealIndex(t *testing.T) {
	t.Parallel()

	idx, err := notes.NewMemoryIndex()
	if err != nil {
		t.Fatalf("NewMemoryIndex: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	h := NewHost()
	defer h.Close()
	for _, b := range NoteTools(idx) {
		must(t, h.RegisterBuiltin(b))
	}

	ctx := context.Background()
	_, err = h.ExecuteTool(ctx, "save_note", `{
		"title": "El subjuntivo",
		"content": "Trigger phrases: espero que, ojalá, es importante que.",
		"category": "grammar",
		"language": "es"
	}`)
	if err != nil {
		t.Fatalf("save_note: %v", err)
	}

	out, err := h.ExecuteTool(ctx, "search_notes", `{"query":"subjuntivo"}`)
	if err != nil {
		t.Fatalf("search_notes: %v", err)
	}

	var hits []noteHit
	if err := json.Unmarshal([]byte(out), &hits); err != nil {
		t.Fatalf("failed to unmarshal: %v\noutput: %s", err, out)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].Category != notes.CategoryGrammar {
		t.Errorf("Category = %q, want %q", hits[0].Category, notes.CategoryGrammar)
	}
}
