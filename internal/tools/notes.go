package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nabu-app/nabu/internal/notes"
	"github.com/nabu-app/nabu/pkg/provider/llm"
)

// ─────────────────────────────────────────────────────────────────────────────
// save_note
// ─────────────────────────────────────────────────────────────────────────────

// saveNoteArgs is the JSON-decoded input for the "save_note" tool.
type saveNoteArgs struct {
	// Title is a short headline for the note.
	Title string `json:"title"`

	// Content is the note body.
	Content string `json:"content"`

	// Category is one of "vocabulary", "grammar" or "progress". Defaults to
	// "vocabulary" when empty.
	Category string `json:"category,omitempty"`

	// Language is the ISO 639-1 code of the target language the note concerns.
	Language string `json:"language,omitempty"`

	// Tags are free-form labels attached to the note.
	Tags []string `json:"tags,omitempty"`

	// Priority ranks the note 1 (low) to 3 (high). Defaults to 2.
	Priority int `json:"priority,omitempty"`
}

// saveNoteResult confirms a saved note back to the model.
type saveNoteResult struct {
	// ID is the generated note ID.
	ID string `json:"id"`

	// Title echoes the saved title.
	Title string `json:"title"`
}

// ─────────────────────────────────────────────────────────────────────────────
// search_notes
// ─────────────────────────────────────────────────────────────────────────────

// searchNotesArgs is the JSON-decoded input for the "search_notes" tool.
type searchNotesArgs struct {
	// Query is the full-text search string matched against note titles,
	// contents and tags. May be empty when Category is set.
	Query string `json:"query,omitempty"`

	// Category restricts results to "vocabulary", "grammar" or "progress".
	Category string `json:"category,omitempty"`

	// Language restricts results to notes for one target language.
	Language string `json:"language,omitempty"`

	// Limit caps the number of results returned. Defaults to 10 when ≤ 0.
	Limit int `json:"limit,omitempty"`
}

// noteHit is one search result presented to the model. Learner and session
// IDs stay internal.
type noteHit struct {
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Category  string   `json:"category"`
	Priority  int      `json:"priority"`
	Tags      []string `json:"tags,omitempty"`
	Language  string   `json:"language,omitempty"`
	CreatedAt string   `json:"created_at,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Handler constructors
// ─────────────────────────────────────────────────────────────────────────────

// makeSaveNoteHandler returns a handler for the "save_note" tool that stamps
// an ID and timestamp and delegates to store.Save.
func makeSaveNoteHandler(store notes.Store) func(context.Context, string) (string, error) {
	return func(_ context.Context, args string) (string, error) {
		var a saveNoteArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("tools: save_note: failed to parse arguments: %w", err)
		}
		if strings.TrimSpace(a.Title) == "" {
			return "", fmt.Errorf("tools: save_note: title must not be empty")
		}
		if strings.TrimSpace(a.Content) == "" {
			return "", fmt.Errorf("tools: save_note: content must not be empty")
		}

		category := a.Category
		if category == "" {
			category = notes.CategoryVocabulary
		}
		if !validCategory(category) {
			return "", fmt.Errorf("tools: save_note: unknown category %q", a.Category)
		}

		priority := a.Priority
		if priority == 0 {
			priority = notes.PriorityMedium
		}
		if priority < notes.PriorityLow || priority > notes.PriorityHigh {
			return "", fmt.Errorf("tools: save_note: priority %d must be between 1 and 3", a.Priority)
		}

		note := notes.Note{
			ID:        uuid.New().String(),
			Title:     a.Title,
			Content:   a.Content,
			Category:  category,
			Priority:  priority,
			Tags:      a.Tags,
			Language:  normalizeLanguage(a.Language),
			CreatedAt: time.Now().UTC(),
		}
		if err := store.Save(note); err != nil {
			return "", fmt.Errorf("tools: save_note: %w", err)
		}

		res, err := json.Marshal(saveNoteResult{ID: note.ID, Title: note.Title})
		if err != nil {
			return "", fmt.Errorf("tools: save_note: failed to encode result: %w", err)
		}
		return string(res), nil
	}
}

// makeSearchNotesHandler returns a handler for the "search_notes" tool that
// delegates to store.Search.
func makeSearchNotesHandler(store notes.Store) func(context.Context, string) (string, error) {
	return func(_ context.Context, args string) (string, error) {
		var a searchNotesArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("tools: search_notes: failed to parse arguments: %w", err)
		}
		if strings.TrimSpace(a.Query) == "" && a.Category == "" {
			return "", fmt.Errorf("tools: search_notes: query or category must be provided")
		}
		if a.Category != "" && !validCategory(a.Category) {
			return "", fmt.Errorf("tools: search_notes: unknown category %q", a.Category)
		}

		results, err := store.Search(notes.SearchRequest{
			Query:    a.Query,
			Category: a.Category,
			Language: normalizeLanguage(a.Language),
			Limit:    a.Limit,
		})
		if err != nil {
			return "", fmt.Errorf("tools: search_notes: %w", err)
		}

		hits := make([]noteHit, 0, len(results))
		for _, r := range results {
			hit := noteHit{
				Title:    r.Note.Title,
				Content:  r.Note.Content,
				Category: r.Note.Category,
				Priority: r.Note.Priority,
				Tags:     r.Note.Tags,
				Language: r.Note.Language,
			}
			if !r.Note.CreatedAt.IsZero() {
				hit.CreatedAt = r.Note.CreatedAt.Format(time.RFC3339)
			}
			hits = append(hits, hit)
		}

		res, err := json.Marshal(hits)
		if err != nil {
			return "", fmt.Errorf("tools: search_notes: failed to encode result: %w", err)
		}
		return string(res), nil
	}
}

// validCategory reports whether c is one of the note categories.
func validCategory(c string) bool {
	switch c {
	case notes.CategoryVocabulary, notes.CategoryGrammar, notes.CategoryProgress:
		return true
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// NoteTools
// ─────────────────────────────────────────────────────────────────────────────

// NoteTools constructs the built-in study-note tools, wired to the provided
// note store. store must be non-nil; wrap it in a [notes.IndexGuard] if index
// failures should not surface to the model.
func NoteTools(store notes.Store) []Builtin {
	return []Builtin{
		{
			Definition: llm.ToolDefinition{
				Name:        "save_note",
				Description: "Save a study note for the learner to review after the session. Use it to capture a tricky grammar point, a useful phrase, or anything the learner asks you to remember.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title": map[string]any{
							"type":        "string",
							"description": "Short headline for the note.",
						},
						"content": map[string]any{
							"type":        "string",
							"description": "The note body in plain text.",
						},
						"category": map[string]any{
							"type":        "string",
							"description": "Note category. Defaults to vocabulary.",
							"enum":        []string{"vocabulary", "grammar", "progress"},
						},
						"language": map[string]any{
							"type":        "string",
							"description": "ISO 639-1 code of the target language, e.g. \"es\".",
						},
						"tags": map[string]any{
							"type":        "array",
							"items":       map[string]any{"type": "string"},
							"description": "Free-form labels for later filtering.",
						},
						"priority": map[string]any{
							"type":        "integer",
							"description": "1 (low) to 3 (high). Defaults to 2.",
							"minimum":     1,
							"maximum":     3,
						},
					},
					"required": []string{"title", "content"},
				},
			},
			Handler: makeSaveNoteHandler(store),
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "search_notes",
				Description: "Search previously saved study notes by full-text query, optionally filtered by category and language. Use it to recall what the learner struggled with or noted in earlier sessions.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{
							"type":        "string",
							"description": "Full-text search matched against titles, contents, and tags. May be omitted when category is set.",
						},
						"category": map[string]any{
							"type":        "string",
							"description": "Restrict results to one category.",
							"enum":        []string{"vocabulary", "grammar", "progress"},
						},
						"language": map[string]any{
							"type":        "string",
							"description": "Restrict results to one target language, e.g. \"es\".",
						},
						"limit": map[string]any{
							"type":        "integer",
							"description": "Maximum number of results to return. Defaults to 10.",
							"minimum":     1,
							"maximum":     50,
						},
					},
					"required": []string{},
				},
			},
			Handler: makeSearchNotesHandler(store),
		},
	}
}
