package persona_test

import (
	"strings"
	"testing"

	"github.com/nabu-app/nabu/internal/persona"
)

func TestRegistry_AddAndGet(t *testing.T) {
	t.Parallel()

	r := persona.NewRegistry()
	if err := r.Add(mariaPersona()); err != nil {
		t.Fatalf("Add: unexpected error: %v", err)
	}

	got, ok := r.Get("MARIA")
	if !ok {
		t.Fatal("Get: expected case-insensitive hit")
	}
	if got.Name != "maria" {
		t.Errorf("Get: name = %q", got.Name)
	}

	if _, ok := r.Get("nadia"); ok {
		t.Error("Get: expected miss for unknown persona")
	}

	if err := r.Add(persona.Persona{Name: "bad"}); err == nil {
		t.Error("Add: expected error for persona without style")
	}
}

func TestRegistry_AddReplaces(t *testing.T) {
	t.Parallel()

	r := persona.NewRegistry()
	if err := r.Add(mariaPersona()); err != nil {
		t.Fatalf("Add: %v", err)
	}

	updated := mariaPersona()
	updated.Style = "You are María, freshly back from a year in Buenos Aires."
	if err := r.Add(updated); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if got := r.Prompt("maria", "es"); !strings.Contains(got, "Buenos Aires") {
		t.Errorf("replacement did not take effect:\n%s", got)
	}
	if names := r.Names(); len(names) != 1 {
		t.Errorf("Names: expected 1 entry, got %v", names)
	}
}

func TestRegistry_Prompt(t *testing.T) {
	t.Parallel()

	r := persona.NewRegistry()
	if err := r.Add(mariaPersona()); err != nil {
		t.Fatalf("Add: %v", err)
	}

	t.Run("known persona", func(t *testing.T) {
		t.Parallel()
		got := r.Prompt("maria", "es")
		if !strings.Contains(got, "María") {
			t.Errorf("prompt missing persona text:\n%s", got)
		}
	})

	t.Run("language override applies", func(t *testing.T) {
		t.Parallel()
		got := r.Prompt("maria", "fr")
		if !strings.Contains(got, "Contrast French grammar") {
			t.Errorf("override rule missing:\n%s", got)
		}
	})

	t.Run("unknown name falls back to default", func(t *testing.T) {
		t.Parallel()
		got := r.Prompt("nadia", "es")
		want := persona.DefaultPersona().PromptText("es")
		if got != want {
			t.Errorf("expected default persona prompt, got:\n%s", got)
		}
	})

	t.Run("empty name falls back to default", func(t *testing.T) {
		t.Parallel()
		if got := r.Prompt("", "es"); got != persona.DefaultPersona().PromptText("es") {
			t.Errorf("expected default persona prompt, got:\n%s", got)
		}
	})
}

func TestRegistry_SetDefault(t *testing.T) {
	t.Parallel()

	r := persona.NewRegistry()
	if err := r.SetDefault(persona.Persona{Name: "viktor", Style: "You are Viktor."}); err != nil {
		t.Fatalf("SetDefault: %v", err)
	}
	if got := r.Prompt("unknown", "es"); !strings.Contains(got, "Viktor") {
		t.Errorf("fallback not replaced:\n%s", got)
	}

	if err := r.SetDefault(persona.Persona{}); err == nil {
		t.Error("SetDefault: expected error for invalid persona")
	}
}

func TestRegistry_Names(t *testing.T) {
	t.Parallel()

	r := persona.NewRegistry()
	for _, p := range []persona.Persona{
		{Name: "viktor", Style: "You are Viktor."},
		{Name: "maria", Style: "You are María."},
	} {
		if err := r.Add(p); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	names := r.Names()
	if len(names) != 2 || names[0] != "maria" || names[1] != "viktor" {
		t.Errorf("Names: expected sorted [maria viktor], got %v", names)
	}
}
