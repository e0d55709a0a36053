package curriculum_test

import (
	"strings"
	"testing"

	"github.com/nabu-app/nabu/internal/curriculum"
)

const validListYAML = `
list:
  name: "Spanish basics"
  language: es
  description: "Everyday words for beginners"
words:
  - word: "hola"
    translation: "hello"
    part_of_speech: interjection
    level: A1
    tags:
      - greetings
    examples:
      - "¡Hola! ¿Cómo estás?"
  - word: "gato"
    translation: "cat"
    part_of_speech: noun
    level: A1
    tags:
      - animals
`

const minimalListYAML = `
list:
  name: "Empty starter"
  language: fr
words: []
`

func TestLoadListFromReader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		wantName  string
		wantLang  string
		wantCount int
	}{
		{
			name:      "valid list",
			input:     validListYAML,
			wantName:  "Spanish basics",
			wantLang:  "es",
			wantCount: 2,
		},
		{
			name:      "minimal list no words",
			input:     minimalListYAML,
			wantName:  "Empty starter",
			wantLang:  "fr",
			wantCount: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			list, err := curriculum.LoadListFromReader(strings.NewReader(tc.input))
			if err != nil {
				t.Fatalf("LoadListFromReader: unexpected error: %v", err)
			}
			if list.Name != tc.wantName {
				t.Errorf("list name: expected %q, got %q", tc.wantName, list.Name)
			}
			if list.Language != tc.wantLang {
				t.Errorf("list language: expected %q, got %q", tc.wantLang, list.Language)
			}
			if len(list.Words) != tc.wantCount {
				t.Errorf("word count: expected %d, got %d", tc.wantCount, len(list.Words))
			}
		})
	}
}

func TestLoadListFromReader_FieldsRoundTrip(t *testing.T) {
	t.Parallel()

	list, err := curriculum.LoadListFromReader(strings.NewReader(validListYAML))
	if err != nil {
		t.Fatalf("LoadListFromReader: %v", err)
	}

	hola := list.Words[0]
	if hola.Word != "hola" || hola.Translation != "hello" {
		t.Errorf("word/translation: got %+v", hola)
	}
	if hola.PartOfSpeech != "interjection" {
		t.Errorf("part of speech: expected interjection, got %q", hola.PartOfSpeech)
	}
	if hola.Level != curriculum.LevelA1 {
		t.Errorf("level: expected A1, got %q", hola.Level)
	}
	if len(hola.Tags) != 1 || hola.Tags[0] != "greetings" {
		t.Errorf("tags: got %v", hola.Tags)
	}
	if len(hola.Examples) != 1 || !strings.Contains(hola.Examples[0], "Cómo estás") {
		t.Errorf("examples: got %v", hola.Examples)
	}
}

func TestLoadListFromReader_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "completely invalid YAML",
			input: ":::not valid yaml:::",
		},
		{
			name:  "unknown top-level key",
			input: "list:\n  name: x\n  language: es\nunknown_key: true\n",
		},
		{
			name:  "unknown word key",
			input: "list:\n  name: x\n  language: es\nwords:\n  - word: hola\n    translaton: hello\n",
		},
		{
			name:  "missing name",
			input: "list:\n  language: es\nwords: []\n",
		},
		{
			name:  "uppercase language code",
			input: "list:\n  name: x\n  language: ES\nwords: []\n",
		},
		{
			name:  "unrecognised level",
			input: "list:\n  name: x\n  language: es\nwords:\n  - word: hola\n    level: A7\n",
		},
		{
			name:  "duplicate word",
			input: "list:\n  name: x\n  language: es\nwords:\n  - word: hola\n  - word: Hola\n",
		},
		{
			name:  "empty word",
			input: "list:\n  name: x\n  language: es\nwords:\n  - translation: hello\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := curriculum.LoadListFromReader(strings.NewReader(tc.input))
			if err == nil {
				t.Fatal("LoadListFromReader: expected error for invalid input, got nil")
			}
		})
	}
}

func TestValidate_JoinsAllProblems(t *testing.T) {
	t.Parallel()

	err := curriculum.Validate(curriculum.WordList{
		Language: "spanish",
		Words: []curriculum.WordEntry{
			{Word: "hola", Level: "beginner"},
			{Word: ""},
		},
	})
	if err == nil {
		t.Fatal("Validate: expected error, got nil")
	}

	msg := err.Error()
	for _, want := range []string{"name must not be empty", "spanish", "beginner", "words[1]"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error should mention %q, got:\n%s", want, msg)
		}
	}
}
