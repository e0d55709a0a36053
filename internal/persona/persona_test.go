package persona_test

import (
	"strings"
	"testing"

	"github.com/nabu-app/nabu/internal/persona"
)

func mariaPersona() persona.Persona {
	return persona.Persona{
		Name:  "maria",
		Style: "You are María, a warm tutor from Madrid who loves food and travel.",
		BehaviorRules: []string{
			"Sprinkle in common colloquialisms and explain them briefly.",
			"Reference Spanish culture when it fits the topic.",
		},
		Languages: map[string]persona.Override{
			"fr": {
				Style:      "You are María, a Madrileña who teaches French with a Spanish accent and lots of humour.",
				ExtraRules: []string{"Contrast French grammar with Spanish when helpful."},
			},
		},
	}
}

func TestPersona_Validate(t *testing.T) {
	t.Parallel()

	t.Run("valid persona", func(t *testing.T) {
		t.Parallel()
		p := mariaPersona()
		if err := p.Validate(); err != nil {
			t.Fatalf("Validate: unexpected error: %v", err)
		}
	})

	t.Run("joins all violations", func(t *testing.T) {
		t.Parallel()
		p := persona.Persona{
			BehaviorRules: []string{""},
			Languages:     map[string]persona.Override{"ES": {}},
		}
		err := p.Validate()
		if err == nil {
			t.Fatal("Validate: expected error, got nil")
		}
		msg := err.Error()
		for _, want := range []string{"name must not be empty", "style must not be empty", "behavior_rules[0]", `"ES"`} {
			if !strings.Contains(msg, want) {
				t.Errorf("error should mention %q, got:\n%s", want, msg)
			}
		}
	})
}

func TestPersona_PromptText(t *testing.T) {
	t.Parallel()

	p := mariaPersona()

	t.Run("base language", func(t *testing.T) {
		t.Parallel()
		got := p.PromptText("es")
		if !strings.HasPrefix(got, "You are María, a warm tutor from Madrid") {
			t.Errorf("prompt should open with the style text:\n%s", got)
		}
		if !strings.Contains(got, "Rules:\n1. Sprinkle in common colloquialisms") {
			t.Errorf("prompt should number the rules:\n%s", got)
		}
		if !strings.Contains(got, "\n2. Reference Spanish culture") {
			t.Errorf("prompt should keep rule order:\n%s", got)
		}
	})

	t.Run("language override replaces style and extends rules", func(t *testing.T) {
		t.Parallel()
		got := p.PromptText("fr")
		if !strings.Contains(got, "teaches French with a Spanish accent") {
			t.Errorf("override style should replace the base style:\n%s", got)
		}
		if strings.Contains(got, "warm tutor from Madrid who loves food") {
			t.Errorf("base style should be gone:\n%s", got)
		}
		if !strings.Contains(got, "\n3. Contrast French grammar with Spanish") {
			t.Errorf("extra rule should be appended as rule 3:\n%s", got)
		}
	})

	t.Run("override does not leak into the base persona", func(t *testing.T) {
		t.Parallel()
		_ = p.PromptText("fr")
		got := p.PromptText("es")
		if strings.Contains(got, "Contrast French grammar") {
			t.Errorf("base rules were mutated by the override:\n%s", got)
		}
	})

	t.Run("no rules means no rules section", func(t *testing.T) {
		t.Parallel()
		bare := persona.Persona{Name: "quiet", Style: "You are a calm tutor."}
		got := bare.PromptText("es")
		if strings.Contains(got, "Rules:") {
			t.Errorf("expected no rules section:\n%s", got)
		}
	})
}

func TestDefaultPersona(t *testing.T) {
	t.Parallel()

	p := persona.DefaultPersona()
	if err := p.Validate(); err != nil {
		t.Fatalf("default persona must validate: %v", err)
	}
	if !strings.Contains(p.PromptText("es"), "Rules:") {
		t.Error("default persona should carry behaviour rules")
	}
}
