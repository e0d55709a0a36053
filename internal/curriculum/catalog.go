package curriculum

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Catalog holds loaded word lists grouped by target language. It backs the
// lookup_word and search_vocabulary tools and curriculum seeding.
//
// The zero value is ready to use. All methods are safe for concurrent use.
type Catalog struct {
	mu    sync.RWMutex
	lists map[string][]WordList
}

// Add validates a list and adds it to the catalog.
func (c *Catalog) Add(list WordList) error {
	if err := Validate(list); err != nil {
		return fmt.Errorf("curriculum: invalid word list %q: %w", list.Name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lists == nil {
		c.lists = make(map[string][]WordList)
	}
	c.lists[list.Language] = append(c.lists[list.Language], list)
	return nil
}

// Lists returns the word lists loaded for a language, in insertion order.
func (c *Catalog) Lists(language string) []WordList {
	c.mu.RLock()
	defer c.mu.RUnlock()

	lists := c.lists[language]
	out := make([]WordList, len(lists))
	copy(out, lists)
	return out
}

// Languages returns the languages with at least one loaded list, sorted.
func (c *Catalog) Languages() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.lists))
	for lang := range c.lists {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// WordCount returns the total number of entries across a language's lists.
func (c *Catalog) WordCount(language string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, list := range c.lists[language] {
		n += len(list.Words)
	}
	return n
}

// Lookup finds a word by exact (case-insensitive) match across a language's
// lists. The first occurrence wins when lists overlap.
func (c *Catalog) Lookup(language, word string) (WordEntry, bool) {
	want := strings.ToLower(strings.TrimSpace(word))
	if want == "" {
		return WordEntry{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, list := range c.lists[language] {
		for _, entry := range list.Words {
			if strings.ToLower(entry.Word) == want {
				return entry, true
			}
		}
	}
	return WordEntry{}, false
}

// Search returns entries whose word, translation or tags contain the query,
// case-insensitively. A limit of zero or less means 10.
func (c *Catalog) Search(language, query string, limit int) []WordEntry {
	if limit <= 0 {
		limit = 10
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []WordEntry
	for _, list := range c.lists[language] {
		for _, entry := range list.Words {
			if entryMatches(entry, q) {
				out = append(out, entry)
				if len(out) >= limit {
					return out
				}
			}
		}
	}
	return out
}

func entryMatches(entry WordEntry, q string) bool {
	if strings.Contains(strings.ToLower(entry.Word), q) {
		return true
	}
	if strings.Contains(strings.ToLower(entry.Translation), q) {
		return true
	}
	for _, tag := range entry.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}
