package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/nabu-app/nabu/internal/notes"
)

type noteResultDTO struct {
	Note  noteDTO `json:"note"`
	Score float64 `json:"score"`
}

type noteSearchResponse struct {
	Results []noteResultDTO `json:"results"`
	Count   int             `json:"count"`
}

// handleNoteSearch runs a full-text search over study notes. The q parameter
// is required; category, language, learner_id and limit narrow the results.
func (s *Server) handleNoteSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := q.Get("q")
	if query == "" {
		respondInvalid(w, "q is required")
		return
	}

	req := notes.SearchRequest{
		Query:     query,
		Category:  q.Get("category"),
		LearnerID: q.Get("learner_id"),
	}
	if v := q.Get("language"); v != "" {
		lang, ok := normalizeLanguage(v)
		if !ok {
			respondInvalid(w, fmt.Sprintf("unrecognized language code %q", v))
			return
		}
		req.Language = lang
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondInvalidQuery(w, fmt.Sprintf("limit: %q is not a non-negative integer", v))
			return
		}
		req.Limit = n
	}

	results, err := s.notes.Search(req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]noteResultDTO, 0, len(results))
	for _, res := range results {
		out = append(out, noteResultDTO{Note: toNoteDTO(res.Note), Score: res.Score})
	}
	respondJSON(w, http.StatusOK, noteSearchResponse{Results: out, Count: len(out)})
}
