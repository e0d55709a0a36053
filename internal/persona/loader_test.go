package persona_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nabu-app/nabu/internal/persona"
)

const validPersonasYAML = `
personas:
  - name: maria
    description: "Warm Madrid tutor"
    style: |
      You are María, a warm tutor from Madrid who loves food and travel.
    behavior_rules:
      - Sprinkle in common colloquialisms and explain them briefly.
    languages:
      fr:
        extra_rules:
          - Contrast French grammar with Spanish when helpful.
  - name: viktor
    style: "You are Viktor, a precise tutor who drills grammar patterns."
`

func TestLoadFromReader(t *testing.T) {
	t.Parallel()

	personas, err := persona.LoadFromReader(strings.NewReader(validPersonasYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: unexpected error: %v", err)
	}
	if len(personas) != 2 {
		t.Fatalf("expected 2 personas, got %d", len(personas))
	}

	maria := personas[0]
	if maria.Name != "maria" || maria.Description != "Warm Madrid tutor" {
		t.Errorf("maria: %+v", maria)
	}
	if len(maria.BehaviorRules) != 1 {
		t.Errorf("behaviour rules: %v", maria.BehaviorRules)
	}
	if ov, ok := maria.Languages["fr"]; !ok || len(ov.ExtraRules) != 1 {
		t.Errorf("fr override: %+v", maria.Languages)
	}
}

func TestLoadFromReader_Invalid(t *testing.T) {
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
			name:  "unknown key",
			input: "personas:\n  - name: x\n    style: s\n    behaviour_rules: []\n",
		},
		{
			name:  "missing style",
			input: "personas:\n  - name: x\n",
		},
		{
			name:  "bad language key",
			input: "personas:\n  - name: x\n    style: s\n    languages:\n      spanish: {}\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := persona.LoadFromReader(strings.NewReader(tc.input))
			if err == nil {
				t.Fatal("LoadFromReader: expected error for invalid input, got nil")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "personas.yaml")
	if err := os.WriteFile(path, []byte(validPersonasYAML), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	personas, err := persona.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: unexpected error: %v", err)
	}
	if len(personas) != 2 {
		t.Fatalf("expected 2 personas, got %d", len(personas))
	}

	if _, err := persona.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("LoadFile: expected error for missing file")
	}
}
