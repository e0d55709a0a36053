package curriculum

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ListFile is the top-level structure of a word-list YAML file.
//
// Example:
//
//	list:
//	  name: "Spanish basics"
//	  language: es
//	words:
//	  - word: "hola"
//	    translation: "hello"
//	    level: A1
type ListFile struct {
	List  ListMeta    `yaml:"list"`
	Words []WordEntry `yaml:"words"`
}

// ListMeta holds top-level metadata for a word list.
type ListMeta struct {
	// Name is the list's display name.
	Name string `yaml:"name"`

	// Language is the target language as a lowercase ISO 639-1 code.
	Language string `yaml:"language"`

	// Description is a free-text summary of what the list covers.
	Description string `yaml:"description"`
}

// LoadListFile reads, parses and validates a word-list YAML file from disk.
// Returns a descriptive error if the file cannot be opened or parsed.
func LoadListFile(path string) (*WordList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("curriculum: open list file %q: %w", path, err)
	}
	defer f.Close()

	list, err := LoadListFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("curriculum: parse list file %q: %w", path, err)
	}
	return list, nil
}

// LoadListFromReader parses and validates word-list YAML from an [io.Reader].
// The reader is consumed entirely; the caller is responsible for closing it.
func LoadListFromReader(r io.Reader) (*WordList, error) {
	var lf ListFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // reject unknown keys to catch typos
	if err := dec.Decode(&lf); err != nil {
		return nil, fmt.Errorf("curriculum: decode list yaml: %w", err)
	}

	list := WordList{
		Name:        lf.List.Name,
		Language:    lf.List.Language,
		Description: lf.List.Description,
		Words:       lf.Words,
	}
	if err := Validate(list); err != nil {
		return nil, fmt.Errorf("curriculum: invalid word list %q: %w", list.Name, err)
	}
	return &list, nil
}
