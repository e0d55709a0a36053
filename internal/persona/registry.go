package persona

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nabu-app/nabu/internal/engine"
)

// Registry holds the loaded personas and resolves session persona names to
// prompt text. It implements [engine.PersonaSource].
//
// All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	personas map[string]Persona
	fallback Persona
}

// Compile-time check that Registry satisfies engine.PersonaSource.
var _ engine.PersonaSource = (*Registry)(nil)

// NewRegistry creates an empty registry with [DefaultPersona] as fallback.
func NewRegistry() *Registry {
	return &Registry{
		personas: make(map[string]Persona),
		fallback: DefaultPersona(),
	}
}

// Add validates a persona and adds it to the registry. A persona with the
// same name replaces the earlier one, so config reloads converge on the
// latest definitions.
func (r *Registry) Add(p Persona) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("persona: invalid persona %q: %w", p.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.personas[normalizeName(p.Name)] = p
	return nil
}

// SetDefault replaces the fallback persona used for unknown names.
func (r *Registry) SetDefault(p Persona) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("persona: invalid default persona %q: %w", p.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = p
	return nil
}

// Get returns the persona registered under name.
func (r *Registry) Get(name string) (Persona, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.personas[normalizeName(name)]
	return p, ok
}

// Names returns the registered persona names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.personas))
	for name := range r.personas {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Prompt implements [engine.PersonaSource]. Unknown or empty names resolve
// to the fallback persona.
func (r *Registry) Prompt(name, language string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.personas[normalizeName(name)]
	if !ok {
		p = r.fallback
	}
	return p.PromptText(language)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
