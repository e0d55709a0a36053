package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nabu-app/nabu/internal/difficulty"
	"github.com/nabu-app/nabu/internal/engine"
	"github.com/nabu-app/nabu/internal/resilience"
	"github.com/nabu-app/nabu/internal/session"
	"github.com/nabu-app/nabu/pkg/learner"
)

// errTurnInFlight rejects a turn posted while the same session is still
// processing the previous one. Turns within a session are strictly
// sequential; the API surfaces that as a conflict rather than queueing.
var errTurnInFlight = errors.New("api: turn already in progress")

// errorBody is the JSON error envelope for every non-2xx response.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps an error to its HTTP status and stable error code. Wrapped
// sentinels are matched with [errors.Is]; more specific conditions are
// checked before the generic ones they may be wrapped in.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, learner.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, errTurnInFlight):
		return http.StatusConflict, "turn_in_progress"
	case errors.Is(err, difficulty.ErrInvalidInput):
		return http.StatusUnprocessableEntity, "invalid_input"
	case errors.Is(err, learner.ErrInvalidRecord):
		return http.StatusUnprocessableEntity, "invalid_record"
	case errors.Is(err, learner.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage_unavailable"
	case errors.Is(err, resilience.ErrAllFailed), errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable, "providers_unavailable"
	case errors.Is(err, engine.ErrTurnAborted):
		return http.StatusBadGateway, "turn_aborted"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// respondError writes err as a JSON error envelope using the taxonomy
// mapping. Internal errors are logged with their cause; the body carries only
// the generic message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "api: internal error",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		msg = "internal server error"
	}
	respondJSON(w, status, errorBody{Code: code, Message: msg})
}

// respondInvalid writes a 422 for request contents that parsed but failed
// validation.
func respondInvalid(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusUnprocessableEntity, errorBody{Code: "invalid_input", Message: message})
}

// respondBadRequest writes a 400 for requests that could not be parsed at
// all.
func respondBadRequest(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusBadRequest, errorBody{Code: "invalid_body", Message: message})
}

// respondInvalidQuery writes a 400 for query parameters that could not be
// parsed.
func respondInvalidQuery(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusBadRequest, errorBody{Code: "invalid_query", Message: message})
}

// respondJSON encodes v with the given status. Encoding failures fall back
// to a plain 500; by then the status line may already be written, so the
// fallback is best effort.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("api: encoding response failed", "error", err)
	}
}
