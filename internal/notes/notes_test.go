package notes

import (
	"strings"
	"testing"
	"time"

	"github.com/nabu-app/nabu/internal/session"
	"github.com/nabu-app/nabu/pkg/learner"
)

func fullSummary() *session.Summary {
	return &session.Summary{
		SessionID:           "3f8a2c1d-77aa-4b01-9cfe-0123456789ab",
		LearnerID:           "lena",
		Language:            "es",
		Duration:            12*time.Minute + 30*time.Second,
		Turns:               9,
		AverageEngagement:   0.8,
		VocabularyPracticed: []string{"hola", "gato", "perro", "rojo"},
		NewVocabulary:       []string{"gato", "perro", "rojo", "azul", "verde", "amarillo"},
		Corrections: []learner.GrammarCorrection{
			{Original: "yo es feliz", Corrected: "yo soy feliz", Note: "ser conjugation"},
		},
		Topics: []string{"pets", "colours"},
	}
}

func TestGenerate_FullSession(t *testing.T) {
	notes := Generate(fullSummary())
	if len(notes) != 3 {
		t.Fatalf("expected 3 notes, got %d", len(notes))
	}

	wantCategories := []string{CategoryVocabulary, CategoryGrammar, CategoryProgress}
	for i, want := range wantCategories {
		if notes[i].Category != want {
			t.Errorf("note %d: category = %q, want %q", i, notes[i].Category, want)
		}
	}

	seen := map[string]bool{}
	for _, n := range notes {
		if n.ID == "" {
			t.Error("note has empty ID")
		}
		if seen[n.ID] {
			t.Errorf("duplicate note ID %s", n.ID)
		}
		seen[n.ID] = true

		if n.LearnerID != "lena" || n.Language != "es" {
			t.Errorf("note not scoped to learner: %+v", n)
		}
		if n.SessionID != "3f8a2c1d-77aa-4b01-9cfe-0123456789ab" {
			t.Errorf("note session ID = %q", n.SessionID)
		}
		if n.CreatedAt.IsZero() {
			t.Error("note has zero CreatedAt")
		}
	}
}

func TestGenerate_VocabularyNote(t *testing.T) {
	notes := Generate(fullSummary())
	note := notes[0]

	if want := "New ES Vocabulary - Session 3f8a2c1d"; note.Title != want {
		t.Errorf("title = %q, want %q", note.Title, want)
	}
	if note.Priority != PriorityMedium {
		t.Errorf("priority = %d, want %d", note.Priority, PriorityMedium)
	}
	if !strings.Contains(note.Content, "6 new vocabulary words") {
		t.Errorf("content missing word count:\n%s", note.Content)
	}

	// Only the first five words are previewed.
	if !strings.Contains(note.Content, "gato, perro, rojo, azul, verde") {
		t.Errorf("content missing word preview:\n%s", note.Content)
	}
	if strings.Contains(note.Content, "amarillo") {
		t.Errorf("preview should stop at five words:\n%s", note.Content)
	}

	wantTags := []string{"es", "vocabulary", "new-words"}
	if len(note.Tags) != len(wantTags) {
		t.Fatalf("tags = %v, want %v", note.Tags, wantTags)
	}
	for i, tag := range wantTags {
		if note.Tags[i] != tag {
			t.Errorf("tags[%d] = %q, want %q", i, note.Tags[i], tag)
		}
	}
}

func TestGenerate_GrammarNote(t *testing.T) {
	notes := Generate(fullSummary())
	note := notes[1]

	if want := "ES Grammar Focus - Session 3f8a2c1d"; note.Title != want {
		t.Errorf("title = %q, want %q", note.Title, want)
	}
	if !strings.Contains(note.Content, `"yo es feliz" → "yo soy feliz"`) {
		t.Errorf("content missing correction:\n%s", note.Content)
	}
	if !strings.Contains(note.Content, "ser conjugation") {
		t.Errorf("content missing correction note:\n%s", note.Content)
	}
}

func TestGenerate_ProgressNote(t *testing.T) {
	notes := Generate(fullSummary())
	note := notes[2]

	if want := "ES Learning Progress - Session 3f8a2c1d"; note.Title != want {
		t.Errorf("title = %q, want %q", note.Title, want)
	}
	if note.Priority != PriorityLow {
		t.Errorf("priority = %d, want %d", note.Priority, PriorityLow)
	}
	for _, want := range []string{
		"Duration: 12.5 minutes",
		"Turns: 9",
		"Vocabulary practiced: 4 words",
		"New vocabulary: 6 words",
		"Topics discussed: pets, colours",
		"Engagement level: High",
	} {
		if !strings.Contains(note.Content, want) {
			t.Errorf("content missing %q:\n%s", want, note.Content)
		}
	}
}

func TestGenerate_QuietSessionGetsProgressOnly(t *testing.T) {
	sum := &session.Summary{
		SessionID: "b2c3d4e5-0000-0000-0000-000000000000",
		LearnerID: "marco",
		Language:  "fr",
		Duration:  3 * time.Minute,
		Turns:     2,
	}

	notes := Generate(sum)
	if len(notes) != 1 {
		t.Fatalf("expected 1 note, got %d", len(notes))
	}
	if notes[0].Category != CategoryProgress {
		t.Errorf("category = %q, want %q", notes[0].Category, CategoryProgress)
	}
	if !strings.Contains(notes[0].Content, "Topics discussed: Various topics") {
		t.Errorf("expected topic fallback:\n%s", notes[0].Content)
	}
	if !strings.Contains(notes[0].Content, "Engagement level: Low") {
		t.Errorf("expected low engagement label:\n%s", notes[0].Content)
	}
}

func TestGenerate_NilSummary(t *testing.T) {
	if notes := Generate(nil); notes != nil {
		t.Errorf("expected nil notes, got %v", notes)
	}
}

func TestEngagementLabel(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.9, "High"},
		{0.71, "High"},
		{0.7, "Medium"},
		{0.5, "Medium"},
		{0.41, "Medium"},
		{0.4, "Low"},
		{0.1, "Low"},
		{0, "Low"},
	}
	for _, tt := range tests {
		if got := engagementLabel(tt.score); got != tt.want {
			t.Errorf("engagementLabel(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("3f8a2c1d-77aa"); got != "3f8a2c1d" {
		t.Errorf("shortID = %q, want %q", got, "3f8a2c1d")
	}
	if got := shortID("abc"); got != "abc" {
		t.Errorf("short input should pass through, got %q", got)
	}
}
