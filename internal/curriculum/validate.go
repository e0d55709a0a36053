package curriculum

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks a [WordList] for required fields and consistent entries.
//
// Rules:
//   - Name must be non-empty.
//   - Language must be a lowercase ISO 639-1 code.
//   - Every entry must have a non-empty Word.
//   - Entry levels, when set, must be recognised CEFR bands.
//   - Words must be unique within the list (case-insensitive).
func Validate(list WordList) error {
	var errs []error

	if list.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if !validLanguageCode(list.Language) {
		errs = append(errs, fmt.Errorf("language %q is not a lowercase ISO 639-1 code", list.Language))
	}

	seen := make(map[string]bool, len(list.Words))
	for i, entry := range list.Words {
		word := strings.ToLower(strings.TrimSpace(entry.Word))
		if word == "" {
			errs = append(errs, fmt.Errorf("words[%d]: word must not be empty", i))
			continue
		}
		if seen[word] {
			errs = append(errs, fmt.Errorf("words[%d]: duplicate word %q", i, entry.Word))
		}
		seen[word] = true

		if entry.Level != "" && !entry.Level.IsValid() {
			errs = append(errs, fmt.Errorf("words[%d]: level %q is not a recognised CEFR band", i, entry.Level))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

// validLanguageCode reports whether s looks like a lowercase ISO 639-1 code.
func validLanguageCode(s string) bool {
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
