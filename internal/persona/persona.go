// Package persona defines the tutor personalities injected into the system
// prompt.
//
// A [Persona] is the declarative configuration for one tutor character —
// teaching style, behaviour rules, per-language overrides — loaded from YAML
// files ([LoadFile]) and collected in a [Registry]. The registry renders the
// persona section of the system prompt for the engine; unknown or empty
// persona names fall back to a built-in default so a turn never runs without
// a character.
package persona

import (
	"errors"
	"fmt"
	"strings"
)

// Persona is the declarative configuration for one tutor character.
type Persona struct {
	// Name is the unique identifier sessions refer to (e.g., "maria").
	// Case-insensitive.
	Name string `yaml:"name" json:"name"`

	// Style is a free-text description of the tutor's character and manner
	// of speaking. Injected verbatim into the LLM system prompt.
	Style string `yaml:"style" json:"style"`

	// Description is a short operator-facing summary. Never sent to the LLM.
	Description string `yaml:"description" json:"description"`

	// BehaviorRules are hard constraints on the tutor's responses
	// (e.g., "Never switch entirely to English"). Appended to the system
	// prompt as a numbered list.
	BehaviorRules []string `yaml:"behavior_rules" json:"behavior_rules"`

	// Languages holds per-language adjustments, keyed by lowercase ISO 639-1
	// code. An override replaces Style and extends BehaviorRules for
	// sessions in that language.
	Languages map[string]Override `yaml:"languages" json:"languages"`
}

// Override adjusts a persona for one target language.
type Override struct {
	// Style replaces the persona's base style when non-empty.
	Style string `yaml:"style" json:"style"`

	// ExtraRules are appended after the persona's base behaviour rules.
	ExtraRules []string `yaml:"extra_rules" json:"extra_rules"`
}

// Validate checks the Persona for logical consistency. It returns a joined
// error describing every violation found, or nil if the persona is valid.
func (p *Persona) Validate() error {
	var errs []error

	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, fmt.Errorf("persona: name must not be empty"))
	}
	if strings.TrimSpace(p.Style) == "" {
		errs = append(errs, fmt.Errorf("persona: style must not be empty"))
	}
	for i, rule := range p.BehaviorRules {
		if strings.TrimSpace(rule) == "" {
			errs = append(errs, fmt.Errorf("persona: behavior_rules[%d] must not be empty", i))
		}
	}
	for lang := range p.Languages {
		if !isLanguageCode(lang) {
			errs = append(errs, fmt.Errorf("persona: language key %q must be a lowercase ISO 639-1 code", lang))
		}
	}

	return errors.Join(errs...)
}

// PromptText renders the persona section of the system prompt for one
// target language, applying any per-language override.
func (p Persona) PromptText(language string) string {
	style := p.Style
	rules := p.BehaviorRules

	if ov, ok := p.Languages[language]; ok {
		if ov.Style != "" {
			style = ov.Style
		}
		if len(ov.ExtraRules) > 0 {
			rules = append(append([]string(nil), rules...), ov.ExtraRules...)
		}
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(style))
	if len(rules) > 0 {
		sb.WriteString("\n\nRules:")
		for i, rule := range rules {
			fmt.Fprintf(&sb, "\n%d. %s", i+1, rule)
		}
	}
	return sb.String()
}

// DefaultPersona returns the built-in tutor used when a session names no
// persona or names one the registry does not know.
func DefaultPersona() Persona {
	return Persona{
		Name:        "default",
		Description: "Built-in fallback tutor.",
		Style: "You are a friendly, patient language tutor. Keep the conversation " +
			"natural and encouraging, and adapt to the learner's pace.",
		BehaviorRules: []string{
			"Stay in the target language unless the learner is clearly stuck.",
			"Correct mistakes gently and move on; never lecture.",
			"End most replies with a question that invites the learner to speak.",
		},
	}
}

// isLanguageCode reports whether s looks like a lowercase ISO 639-1 code.
func isLanguageCode(s string) bool {
	if len(s) != 2 {
		return false
	}
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
