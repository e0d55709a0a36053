// Package curriculum manages the word lists tutors draw vocabulary from.
//
// Word lists are defined per language and carry the teaching metadata the
// learner store does not: translations, part of speech, CEFR level, usage
// examples. Lists come from native YAML files ([LoadListFile],
// [LoadListFromReader]) or XLSX spreadsheets ([ImportXLSX]), are collected
// in a [Catalog], and are introduced into a learner's vocabulary store by
// an [Importer].
//
// All catalog operations are safe for concurrent use.
package curriculum

// WordEntry is one teachable word in a curriculum list.
type WordEntry struct {
	// Word is the vocabulary word or short phrase in the target language.
	Word string `yaml:"word" json:"word"`

	// Translation is the meaning in the learner's native language.
	Translation string `yaml:"translation" json:"translation"`

	// PartOfSpeech classifies the word (noun, verb, adjective, ...).
	PartOfSpeech string `yaml:"part_of_speech,omitempty" json:"part_of_speech,omitempty"`

	// Level is the CEFR difficulty band of the word, if known.
	Level Level `yaml:"level,omitempty" json:"level,omitempty"`

	// Tags are searchable labels for grouping (e.g. "food", "travel").
	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`

	// Examples are sample sentences showing the word in use.
	Examples []string `yaml:"examples,omitempty" json:"examples,omitempty"`
}

// WordList is a named collection of words for one target language.
type WordList struct {
	// Name is the list's display name.
	Name string `yaml:"name" json:"name"`

	// Language is the target language as a lowercase ISO 639-1 code.
	Language string `yaml:"language" json:"language"`

	// Description is a free-text summary of what the list covers.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Words are the list entries.
	Words []WordEntry `yaml:"words" json:"words"`
}

// Level is a CEFR proficiency band.
type Level string

const (
	LevelA1 Level = "A1"
	LevelA2 Level = "A2"
	LevelB1 Level = "B1"
	LevelB2 Level = "B2"
	LevelC1 Level = "C1"
	LevelC2 Level = "C2"
)

// IsValid reports whether l is a recognised CEFR level.
func (l Level) IsValid() bool {
	switch l {
	case LevelA1, LevelA2, LevelB1, LevelB2, LevelC1, LevelC2:
		return true
	}
	return false
}
