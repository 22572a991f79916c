package httpapi

import (
	"encoding/json"
	"net/http"

	"babylon/recurring/appcontext"
	"babylon/recurring/recurring/errs"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

// writeJSON encodes v with the given status. Encoding failures are logged;
// the status line has already been sent by then.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := appcontext.LoggerFromContext(r.Context())
		logger.ErrorContext(r.Context(), "Failed to encode response", "error", err)
	}
}

// writeError maps domain errors onto HTTP statuses. Anything outside the
// known taxonomy is a 500 with a generic body; the detail goes to the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errs.IsValidation(err):
		writeJSON(w, r, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errs.IsNotFound(err):
		writeJSON(w, r, http.StatusNotFound, errorBody{Error: err.Error()})
	case errs.IsUnauthorized(err):
		writeJSON(w, r, http.StatusUnauthorized, errorBody{Error: err.Error()})
	default:
		logger := appcontext.LoggerFromContext(r.Context())
		logger.ErrorContext(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, r, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
