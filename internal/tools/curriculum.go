package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nabu-app/nabu/internal/curriculum"
	"github.com/nabu-app/nabu/pkg/provider/llm"
)

// ─────────────────────────────────────────────────────────────────────────────
// lookup_word
// ─────────────────────────────────────────────────────────────────────────────

// lookupWordArgs is the JSON-decoded input for the "lookup_word" tool.
type lookupWordArgs struct {
	// Word is the target-language word to look up, matched case-insensitively.
	Word string `json:"word"`

	// Language is the ISO 639-1 code of the target language, e.g. "es".
	Language string `json:"language"`
}

// ─────────────────────────────────────────────────────────────────────────────
// search_vocabulary
// ─────────────────────────────────────────────────────────────────────────────

// searchVocabularyArgs is the JSON-decoded input for the "search_vocabulary"
// tool.
type searchVocabularyArgs struct {
	// Query is matched against words, translations and tags.
	Query string `json:"query"`

	// Language is the ISO 639-1 code of the target language, e.g. "es".
	Language string `json:"language"`

	// Limit caps the number of results returned. Defaults to 10 when ≤ 0.
	Limit int `json:"limit,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Handler constructors
// ─────────────────────────────────────────────────────────────────────────────

// makeLookupWordHandler returns a handler for the "lookup_word" tool that
// delegates to catalog.Lookup.
func makeLookupWordHandler(catalog *curriculum.Catalog) func(context.Context, string) (string, error) {
	return func(_ context.Context, args string) (string, error) {
		var a lookupWordArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("tools: lookup_word: failed to parse arguments: %w", err)
		}
		if strings.TrimSpace(a.Word) == "" {
			return "", fmt.Errorf("tools: lookup_word: word must not be empty")
		}
		lang := normalizeLanguage(a.Language)
		if lang == "" {
			return "", fmt.Errorf("tools: lookup_word: language must not be empty")
		}

		entry, ok := catalog.Lookup(lang, a.Word)
		if !ok {
			return "", fmt.Errorf("tools: lookup_word: word %q is not in the %s curriculum", a.Word, lang)
		}

		res, err := json.Marshal(entry)
		if err != nil {
			return "", fmt.Errorf("tools: lookup_word: failed to encode result: %w", err)
		}
		return string(res), nil
	}
}

// makeSearchVocabularyHandler returns a handler for the "search_vocabulary"
// tool that delegates to catalog.Search.
func makeSearchVocabularyHandler(catalog *curriculum.Catalog) func(context.Context, string) (string, error) {
	return func(_ context.Context, args string) (string, error) {
		var a searchVocabularyArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("tools: search_vocabulary: failed to parse arguments: %w", err)
		}
		if strings.TrimSpace(a.Query) == "" {
			return "", fmt.Errorf("tools: search_vocabulary: query must not be empty")
		}
		lang := normalizeLanguage(a.Language)
		if lang == "" {
			return "", fmt.Errorf("tools: search_vocabulary: language must not be empty")
		}

		entries := catalog.Search(lang, a.Query, a.Limit)
		if entries == nil {
			entries = []curriculum.WordEntry{}
		}

		res, err := json.Marshal(entries)
		if err != nil {
			return "", fmt.Errorf("tools: search_vocabulary: failed to encode result: %w", err)
		}
		return string(res), nil
	}
}

// normalizeLanguage lowercases and trims a model-supplied language code so it
// matches catalog keys.
func normalizeLanguage(language string) string {
	return strings.ToLower(strings.TrimSpace(language))
}

// ─────────────────────────────────────────────────────────────────────────────
// CurriculumTools
// ─────────────────────────────────────────────────────────────────────────────

// CurriculumTools constructs the built-in word tools, wired to the provided
// curriculum catalog. catalog must be non-nil.
func CurriculumTools(catalog *curriculum.Catalog) []Builtin {
	return []Builtin{
		{
			Definition: llm.ToolDefinition{
				Name:        "lookup_word",
				Description: "Look up a single word in the curriculum word lists. Returns the word's translation, part of speech, CEFR level, tags, and example sentences. Use this when the learner asks what a word means or how to use it.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"word": map[string]any{
							"type":        "string",
							"description": "The target-language word to look up.",
						},
						"language": map[string]any{
							"type":        "string",
							"description": "ISO 639-1 code of the target language, e.g. \"es\".",
						},
					},
					"required": []string{"word", "language"},
				},
			},
			Handler: makeLookupWordHandler(catalog),
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "search_vocabulary",
				Description: "Search the curriculum word lists for entries whose word, translation, or tags contain the query. Returns matching entries with translations and levels. Useful for finding themed vocabulary to work into the conversation.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{
							"type":        "string",
							"description": "Search text matched against words, translations, and tags.",
						},
						"language": map[string]any{
							"type":        "string",
							"description": "ISO 639-1 code of the target language, e.g. \"es\".",
						},
						"limit": map[string]any{
							"type":        "integer",
							"description": "Maximum number of results to return. Defaults to 10.",
							"minimum":     1,
							"maximum":     50,
						},
					},
					"required": []string{"query", "language"},
				},
			},
			Handler: makeSearchVocabularyHandler(catalog),
		},
	}
}
