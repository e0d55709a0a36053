// Package vocabdetect locates a learner's tracked vocabulary inside an
// utterance transcript.
//
// Speech-to-text output mangles learner pronunciation, so naive substring
// search misses real vocabulary use. Detection runs in two stages over
// n-gram windows of the transcript, longest window first:
//
//  1. Exact match on case- and diacritic-folded text.
//  2. Phonetic match: Double Metaphone code overlap between window and
//     vocabulary word, accepted when Jaro-Winkler similarity clears the
//     phonetic threshold. When no codes overlap, a pure Jaro-Winkler
//     comparison with a stricter fuzzy threshold is tried instead.
//
// Vocabulary is prepared once per turn with [Prepare] so the per-window work
// runs on precomputed codes. Each tracked word is reported at most once per
// transcript.
package vocabdetect

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85

	// Windows shorter than this many runes match exactly only; phonetic
	// codes computed on one or two letters are noise.
	minFuzzyRunes = 3
)

// Option is a functional option for configuring a [Detector].
type Option func(*Detector)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched word to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(d *Detector) {
		d.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic code overlap exists and the detector falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(d *Detector) {
		d.fuzzyThreshold = threshold
	}
}

// Detector finds tracked vocabulary in transcripts. It is read-only after
// construction and safe for concurrent use.
type Detector struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Detector] configured with the supplied options.
func New(opts ...Option) *Detector {
	d := &Detector{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Hit is one vocabulary word located in a transcript.
type Hit struct {
	// Word is the tracked vocabulary word, in its stored form.
	Word string

	// Spoken is the transcript window that matched.
	Spoken string

	// Confidence is 1.0 for exact matches, otherwise the Jaro-Winkler
	// similarity of the accepted match.
	Confidence float64

	// Exact reports whether the match was textual rather than phonetic.
	Exact bool
}

// preparedWord carries the precomputed matching data for one vocabulary word.
type preparedWord struct {
	word   string
	folded string
	tokens []string
	codes  map[string]struct{}
}

// PreparedVocab holds a vocabulary set preprocessed for detection: folded
// forms, token lists and Double Metaphone codes. Prepare once per turn and
// reuse across windows.
type PreparedVocab struct {
	words    []preparedWord
	maxWords int
}

// Prepare preprocesses vocabulary words for [Detector.Detect]. Empty and
// whitespace-only entries are dropped.
func Prepare(words []string) *PreparedVocab {
	pv := &PreparedVocab{}
	for _, w := range words {
		folded := foldText(w)
		if folded == "" {
			continue
		}
		tokens := strings.Fields(folded)
		pv.words = append(pv.words, preparedWord{
			word:   w,
			folded: folded,
			tokens: tokens,
			codes:  codesForTokens(tokens),
		})
		if len(tokens) > pv.maxWords {
			pv.maxWords = len(tokens)
		}
	}
	return pv
}

// Len returns the number of prepared words.
func (pv *PreparedVocab) Len() int {
	return len(pv.words)
}

// Detect scans transcript for prepared vocabulary and returns the hits in
// transcript order. Tokens consumed by a match are not reconsidered, and each
// vocabulary word appears at most once, keeping its highest-confidence hit.
// Returns an empty (non-nil) slice when nothing matches.
func (d *Detector) Detect(transcript string, vocab *PreparedVocab) []Hit {
	hits := []Hit{}
	if vocab == nil || len(vocab.words) == 0 {
		return hits
	}
	tokens := strings.Fields(foldText(transcript))
	if len(tokens) == 0 {
		return hits
	}

	seen := make(map[string]int, len(vocab.words))

	i := 0
	for i < len(tokens) {
		maxN := vocab.maxWords
		if i+maxN > len(tokens) {
			maxN = len(tokens) - i
		}

		matched := false
		for n := maxN; n >= 1; n-- {
			window := strings.Join(tokens[i:i+n], " ")
			hit, ok := d.matchWindow(window, tokens[i:i+n], vocab)
			if !ok {
				continue
			}

			if idx, dup := seen[hit.Word]; dup {
				if hit.Confidence > hits[idx].Confidence {
					hits[idx] = hit
				}
			} else {
				seen[hit.Word] = len(hits)
				hits = append(hits, hit)
			}
			i += n
			matched = true
			break
		}

		if !matched {
			i++
		}
	}

	return hits
}

// matchWindow tests one transcript window against all prepared words and
// returns the best acceptable hit. Exact matches win immediately; otherwise
// phonetic candidates outrank fuzzy ones and ties go to the higher score.
func (d *Detector) matchWindow(window string, windowTokens []string, vocab *PreparedVocab) (Hit, bool) {
	windowCodes := codesForTokens(windowTokens)
	shortWindow := len([]rune(window)) < minFuzzyRunes

	var (
		best     Hit
		phonetic bool
		found    bool
	)

	for _, pw := range vocab.words {
		if window == pw.folded {
			return Hit{Word: pw.word, Spoken: window, Confidence: 1.0, Exact: true}, true
		}
		if shortWindow {
			continue
		}

		score := bestJWScore(windowTokens, pw.tokens, window, pw.folded)

		if codesOverlap(windowCodes, pw.codes) {
			if score >= d.phoneticThreshold && (!phonetic || score > best.Confidence) {
				best = Hit{Word: pw.word, Spoken: window, Confidence: score}
				phonetic = true
				found = true
			}
		} else if !phonetic {
			if score >= d.fuzzyThreshold && score > best.Confidence {
				best = Hit{Word: pw.word, Spoken: window, Confidence: score}
				found = true
			}
		}
	}

	return best, found
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// foldTransformer strips diacritical marks so "está" and "esta" compare equal.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldText lowercases text, removes diacritics and trims punctuation from
// every token.
func foldText(text string) string {
	lowered := strings.ToLower(strings.TrimSpace(text))
	folded, _, err := transform.String(foldTransformer, lowered)
	if err != nil {
		folded = lowered
	}
	tokens := strings.FieldsFunc(folded, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	return strings.Join(tokens, " ")
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes (produced when a token is too short or contains
// no consonants) are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	// Iterate over the smaller set for efficiency.
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore computes the highest Jaro-Winkler similarity between the window
// and the vocabulary word using three strategies:
//
//  1. Full-string comparison (e.g., "buenas dias" vs "buenos días").
//  2. Space-stripped comparison, for words STT split or joined.
//  3. Best pairwise token comparison, for a single spoken token aligning with
//     one token of a multi-word phrase.
func bestJWScore(windowTokens, wordTokens []string, windowFull, wordFull string) float64 {
	score := matchr.JaroWinkler(windowFull, wordFull, false)

	if len(windowTokens) > 1 || len(wordTokens) > 1 {
		concat1 := strings.Join(windowTokens, "")
		concat2 := strings.Join(wordTokens, "")
		if s := matchr.JaroWinkler(concat1, concat2, false); s > score {
			score = s
		}
	}

	for _, wt := range windowTokens {
		for _, vt := range wordTokens {
			if s := matchr.JaroWinkler(wt, vt, false); s > score {
				score = s
			}
		}
	}

	return score
}
