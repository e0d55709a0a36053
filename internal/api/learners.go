package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/nabu-app/nabu/internal/curriculum"
	"github.com/nabu-app/nabu/pkg/learner"
)

type vocabularyResponse struct {
	Items []vocabItemDTO `json:"items"`
	Count int            `json:"count"`
}

// handleVocabulary lists a learner's tracked vocabulary for one language,
// ordered by word. Optional query parameters: min_mastery and max_mastery
// filter on mastery level, limit caps the result size.
func (s *Server) handleVocabulary(w http.ResponseWriter, r *http.Request) {
	learnerID := r.PathValue("learner")
	lang, ok := normalizeLanguage(r.PathValue("lang"))
	if !ok {
		respondInvalid(w, fmt.Sprintf("unrecognized language code %q", r.PathValue("lang")))
		return
	}

	q := r.URL.Query()
	var opts []learner.ListOpt
	if v := q.Get("min_mastery"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			respondInvalidQuery(w, fmt.Sprintf("min_mastery: %q is not a number", v))
			return
		}
		opts = append(opts, learner.WithMinMastery(f))
	}
	if v := q.Get("max_mastery"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			respondInvalidQuery(w, fmt.Sprintf("max_mastery: %q is not a number", v))
			return
		}
		opts = append(opts, learner.WithMaxMastery(f))
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondInvalidQuery(w, fmt.Sprintf("limit: %q is not a non-negative integer", v))
			return
		}
		opts = append(opts, learner.WithLimit(n))
	}

	items, err := s.store.GetVocabulary(r.Context(), learnerID, lang, opts...)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, vocabularyResponse{
		Items: toVocabItemDTOs(items),
		Count: len(items),
	})
}

// handleProfile returns a learner's profile for one language. A learner who
// has never completed a turn in that language has no profile yet; that is a
// 404, not an empty profile.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	learnerID := r.PathValue("learner")
	lang, ok := normalizeLanguage(r.PathValue("lang"))
	if !ok {
		respondInvalid(w, fmt.Sprintf("unrecognized language code %q", r.PathValue("lang")))
		return
	}

	p, err := s.store.GetProfile(r.Context(), learnerID, lang)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if p == nil {
		respondError(w, r, fmt.Errorf("%w: no profile for learner %q in language %q",
			learner.ErrNotFound, learnerID, lang))
		return
	}

	respondJSON(w, http.StatusOK, toProfileDTO(p))
}

type seedRequest struct {
	List string `json:"list"`
}

type seedResponse struct {
	List     string `json:"list"`
	Language string `json:"language"`
	Words    int    `json:"words"`
	Created  int    `json:"created"`
}

// handleSeedVocabulary copies one catalog word list into the learner's
// tracked vocabulary at mastery zero. Words the learner already tracks are
// skipped, so seeding the same list twice is harmless.
func (s *Server) handleSeedVocabulary(w http.ResponseWriter, r *http.Request) {
	learnerID := r.PathValue("learner")
	lang, ok := normalizeLanguage(r.PathValue("lang"))
	if !ok {
		respondInvalid(w, fmt.Sprintf("unrecognized language code %q", r.PathValue("lang")))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req seedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "request body is not valid JSON")
		return
	}
	name := strings.TrimSpace(req.List)
	if name == "" {
		respondInvalid(w, "list is required")
		return
	}

	var list curriculum.WordList
	found := false
	for _, l := range s.catalog.Lists(lang) {
		if strings.EqualFold(l.Name, name) {
			list = l
			found = true
			break
		}
	}
	if !found {
		respondError(w, r, fmt.Errorf("%w: no word list %q for language %q",
			learner.ErrNotFound, name, lang))
		return
	}

	created, err := curriculum.NewImporter(s.store).Seed(r.Context(), learnerID, list)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, seedResponse{
		List:     list.Name,
		Language: list.Language,
		Words:    len(list.Words),
		Created:  created,
	})
}
