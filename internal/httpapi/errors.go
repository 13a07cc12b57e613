package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Korbielowski/AutoApply/internal/config"
	"github.com/Korbielowski/AutoApply/internal/runlock"
	"github.com/Korbielowski/AutoApply/internal/store"
)

// APIError is the body of every non-2xx JSON response.
type APIError struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	// Details carries structured findings, e.g. config validation.
	Details any `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeError(w, r, status, ErrorBody{Code: code, Message: message})
}

// WriteValidation rejects a config with its per-field findings.
func WriteValidation(w http.ResponseWriter, r *http.Request, vr config.Validation) {
	writeError(w, r, http.StatusBadRequest, ErrorBody{
		Code:    "invalid_config",
		Message: "config has errors",
		Details: vr,
	})
}

// WriteErr maps run and store errors to their status; anything else is a
// 500 with fallbackCode.
func WriteErr(w http.ResponseWriter, r *http.Request, err error, fallbackCode string) {
	switch {
	case errors.Is(err, runlock.ErrAlreadyRunning):
		WriteError(w, r, http.StatusConflict, "already_running", err.Error())
	case errors.Is(err, store.ErrNotFound):
		WriteError(w, r, http.StatusNotFound, "not_found", err.Error())
	default:
		WriteError(w, r, http.StatusInternalServerError, fallbackCode, err.Error())
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, body ErrorBody) {
	body.RequestID = RequestIDFrom(r.Context())
	WriteJSON(w, status, APIError{Error: body})
}
