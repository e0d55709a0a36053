package persona

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the top-level structure of a personas YAML file.
//
// Example:
//
//	personas:
//	  - name: maria
//	    style: |
//	      You are María, a warm tutor from Madrid who loves food and travel.
//	    behavior_rules:
//	      - Sprinkle in common colloquialisms and explain them briefly.
type File struct {
	Personas []Persona `yaml:"personas"`
}

// LoadFile reads, parses and validates a personas YAML file from disk.
func LoadFile(path string) ([]Persona, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("persona: open file %q: %w", path, err)
	}
	defer f.Close()

	personas, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("persona: parse file %q: %w", path, err)
	}
	return personas, nil
}

// LoadFromReader parses and validates personas YAML from an [io.Reader].
// The reader is consumed entirely; the caller is responsible for closing it.
func LoadFromReader(r io.Reader) ([]Persona, error) {
	var pf File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // reject unknown keys to catch typos
	if err := dec.Decode(&pf); err != nil {
		return nil, fmt.Errorf("persona: decode yaml: %w", err)
	}

	for i := range pf.Personas {
		if err := pf.Personas[i].Validate(); err != nil {
			return nil, fmt.Errorf("persona: personas[%d] (%s): %w", i, pf.Personas[i].Name, err)
		}
	}
	return pf.Personas, nil
}
