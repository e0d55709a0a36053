package turnctx

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/nabu-app/nabu/internal/difficulty"
	"github.com/nabu-app/nabu/pkg/learner"
)

// bandGuidance tells the model how to speak at each difficulty band.
var bandGuidance = map[difficulty.Band]string{
	difficulty.BandBeginner:     "Use short, simple sentences and the most common words. Repeat key phrases often.",
	difficulty.BandElementary:   "Use simple sentences with everyday vocabulary. Introduce new words sparingly.",
	difficulty.BandIntermediate: "Use natural sentences of moderate complexity. Mix familiar and new vocabulary.",
	difficulty.BandAdvanced:     "Use rich, natural language including idioms. Challenge the learner with nuanced phrasing.",
	difficulty.BandFluent:       "Speak as you would with a native speaker. Use colloquialisms and complex structures freely.",
}

// FormatSystemPrompt converts a [TurnContext] into a system prompt string
// suitable for direct injection into a tutoring LLM call.
//
// persona is a free-text tutor character description appended after the
// opening paragraph. nativeLanguage is the learner's native language code or
// name; when empty, the native-language sentence is omitted. If tc is nil, a
// minimal fallback prompt is returned.
//
// The formatter is pure: it performs no I/O, has no side effects, and is safe
// for concurrent use.
//
// Empty sections (no vocabulary, no related words, no topics, no focus areas)
// are omitted entirely rather than rendering as empty headers.
func FormatSystemPrompt(tc *TurnContext, persona, nativeLanguage string) string {
	if tc == nil {
		p := strings.TrimSpace(persona)
		if p != "" {
			return fmt.Sprintf("You are an AI language tutor. Keep responses short and conversational. %s", p)
		}
		return "You are an AI language tutor. Keep responses short and conversational."
	}

	var sb strings.Builder

	// ── Opening paragraph ─────────────────────────────────────────────────────
	target := languageName(tc.Language)
	fmt.Fprintf(&sb, "You are an AI language tutor helping someone learn %s.", target)
	if native := strings.TrimSpace(nativeLanguage); native != "" {
		fmt.Fprintf(&sb, " The learner's native language is %s.", languageName(native))
	}
	fmt.Fprintf(&sb, " Respond in %s and keep responses short and conversational, as they will be spoken aloud. Provide gentle corrections and encourage the learner.", target)

	if p := strings.TrimSpace(persona); p != "" {
		sb.WriteString("\n\n")
		sb.WriteString(p)
	}

	// ── Difficulty section ────────────────────────────────────────────────────
	sb.WriteString("\n\n## Difficulty\n")
	sb.WriteString(formatDifficultySection(tc))

	// ── Vocabulary section ────────────────────────────────────────────────────
	if len(tc.SelectedVocabulary) > 0 {
		sb.WriteString("\n\n## Vocabulary to Practice\n")
		sb.WriteString("Work these words into the conversation naturally:\n")
		sb.WriteString(formatVocabularySection(tc.SelectedVocabulary))
	}

	// ── Related words section ─────────────────────────────────────────────────
	if len(tc.RelatedWords) > 0 {
		sb.WriteString("\n\n## Related Words\n")
		sb.WriteString("The learner already knows these words related to the current topic; reinforce them when relevant:\n")
		sb.WriteString(formatRelatedSection(tc.RelatedWords))
	}

	// ── Recent topics section ─────────────────────────────────────────────────
	if topics := joinNonEmpty(tc.RecentTopics); topics != "" {
		sb.WriteString("\n\n## Recent Topics\n")
		fmt.Fprintf(&sb, "Recently discussed: %s", topics)
	}

	// ── Focus areas section ───────────────────────────────────────────────────
	if areas := joinNonEmpty(tc.FocusAreas); areas != "" {
		sb.WriteString("\n\n## Focus Areas\n")
		fmt.Fprintf(&sb, "The learner struggles with: %s. Build in opportunities to practice these.", areas)
	}

	return sb.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ─────────────────────────────────────────────────────────────────────────────

// formatDifficultySection renders the target band, the proficiency estimate
// when one exists, and the speaking guidance for the band.
func formatDifficultySection(tc *TurnContext) string {
	var lines []string

	level := fmt.Sprintf("Target level: %s", tc.Band)
	if tc.Profile.ProficiencyEstimate > 0 {
		level += fmt.Sprintf(" (proficiency estimate %.1f)", tc.Profile.ProficiencyEstimate)
	}
	lines = append(lines, level)

	if guidance, ok := bandGuidance[tc.Band]; ok {
		lines = append(lines, guidance)
	}

	return strings.Join(lines, "\n")
}

// formatVocabularySection renders one bullet per selected item, annotated with
// how familiar the learner is with it.
func formatVocabularySection(items []learner.VocabularyItem) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		line := "- " + it.Word
		if it.Translation != "" {
			line += fmt.Sprintf(" (%s)", it.Translation)
		}
		if it.TimesSeen == 0 {
			line += " — new"
		} else {
			line += fmt.Sprintf(" — seen %d times", it.TimesSeen)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// formatRelatedSection renders one bullet per related word, nearest first.
func formatRelatedSection(words []learner.RelatedWord) string {
	lines := make([]string, 0, len(words))
	for _, rw := range words {
		line := "- " + rw.Item.Word
		if rw.Item.Translation != "" {
			line += fmt.Sprintf(" (%s)", rw.Item.Translation)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// joinNonEmpty joins the non-blank entries with ", ". Returns "" when nothing
// remains.
func joinNonEmpty(ss []string) string {
	var kept []string
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, ", ")
}

// languageName resolves a BCP 47 code such as "es" or "pt-BR" to its English
// display name. Unparseable or unknown values are returned as given, so full
// names like "Spanish" pass through unchanged.
func languageName(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return "the target language"
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}
