package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/nabu-app/nabu/internal/engine"
	"github.com/nabu-app/nabu/internal/notes"
	"github.com/nabu-app/nabu/internal/session"
)

type startSessionRequest struct {
	LearnerID      string `json:"learner_id"`
	Language       string `json:"language"`
	NativeLanguage string `json:"native_language"`
	Mode           string `json:"mode"`
	Persona        string `json:"persona"`
}

type sessionResponse struct {
	SessionID      string    `json:"session_id"`
	LearnerID      string    `json:"learner_id"`
	Language       string    `json:"language"`
	NativeLanguage string    `json:"native_language,omitempty"`
	Mode           string    `json:"mode"`
	Persona        string    `json:"persona,omitempty"`
	StartedAt      time.Time `json:"started_at"`
}

// handleStartSession opens a tutoring session. The target language must be a
// well-formed BCP 47 code and is canonicalized before it reaches storage;
// the native language is advisory free text and passes through as given.
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "request body is not valid JSON")
		return
	}
	if strings.TrimSpace(req.LearnerID) == "" {
		respondInvalid(w, "learner_id is required")
		return
	}
	if strings.TrimSpace(req.Language) == "" {
		respondInvalid(w, "language is required")
		return
	}
	lang, ok := normalizeLanguage(req.Language)
	if !ok {
		respondInvalid(w, fmt.Sprintf("unrecognized language code %q", req.Language))
		return
	}

	sess, err := s.sessions.Start(session.StartRequest{
		LearnerID:      strings.TrimSpace(req.LearnerID),
		Language:       lang,
		NativeLanguage: strings.TrimSpace(req.NativeLanguage),
		Mode:           strings.TrimSpace(req.Mode),
		Persona:        strings.TrimSpace(req.Persona),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Location", "/v1/sessions/"+sess.ID)
	respondJSON(w, http.StatusCreated, sessionResponse{
		SessionID:      sess.ID,
		LearnerID:      sess.LearnerID,
		Language:       sess.Language,
		NativeLanguage: sess.NativeLanguage,
		Mode:           sess.Mode,
		Persona:        sess.Persona,
		StartedAt:      sess.StartedAt,
	})
}

type turnRequest struct {
	Utterance string `json:"utterance"`
}

type turnResponse struct {
	SessionID       string         `json:"session_id"`
	Reply           string         `json:"reply"`
	Band            string         `json:"band"`
	Proficiency     float64        `json:"proficiency"`
	FeedbackApplied bool           `json:"feedback_applied"`
	NewWords        []string       `json:"new_words"`
	VocabularyShown []vocabItemDTO `json:"vocabulary_shown"`
	Analysis        *analysisDTO   `json:"analysis,omitempty"`
	ToolCalls       int            `json:"tool_calls"`
	DurationMS      int64          `json:"duration_ms"`
}

// handleTurn runs one learner utterance through the turn pipeline. A second
// turn posted while the same session is still processing is rejected with a
// conflict; turns within a session are strictly sequential.
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "request body is not valid JSON")
		return
	}
	if strings.TrimSpace(req.Utterance) == "" {
		respondInvalid(w, "utterance is required")
		return
	}

	if !s.beginTurn(id) {
		respondError(w, r, errTurnInFlight)
		return
	}
	defer s.endTurn(id)

	res, err := s.engine.ProcessTurn(r.Context(), engine.TurnRequest{
		SessionID: id,
		Utterance: req.Utterance,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, turnResponse{
		SessionID:       res.SessionID,
		Reply:           res.Reply,
		Band:            string(res.Band),
		Proficiency:     res.Proficiency,
		FeedbackApplied: res.FeedbackApplied,
		NewWords:        emptyIfNil(res.NewWords),
		VocabularyShown: toVocabItemDTOs(res.VocabularyShown),
		Analysis:        toAnalysisDTO(res.Analysis),
		ToolCalls:       res.ToolCalls,
		DurationMS:      res.Duration.Milliseconds(),
	})
}

type endSessionResponse struct {
	Summary summaryDTO `json:"summary"`
	Notes   []noteDTO  `json:"notes"`
}

// handleEndSession closes a session and returns its summary together with
// the study notes generated from it. The session is already ended by the
// time notes are written, so an indexing failure is logged and the summary
// still returned with an empty notes list.
func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sum, err := s.sessions.End(id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	saved := make([]noteDTO, 0)
	if s.notes != nil {
		generated := notes.Generate(sum)
		if len(generated) > 0 {
			if err := s.notes.SaveAll(generated); err != nil {
				slog.ErrorContext(r.Context(), "api: saving session notes failed",
					"session_id", id, "error", err)
			} else {
				for _, n := range generated {
					saved = append(saved, toNoteDTO(n))
				}
			}
		}
	}

	respondJSON(w, http.StatusOK, endSessionResponse{
		Summary: toSummaryDTO(sum),
		Notes:   saved,
	})
}

// normalizeLanguage canonicalizes a BCP 47 language code ("ES" becomes "es",
// "pt-br" becomes "pt-BR"). Vocabulary and profiles are keyed by the
// canonical form, so every surface that accepts a language goes through
// here.
func normalizeLanguage(code string) (string, bool) {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil {
		return "", false
	}
	return tag.String(), true
}
