package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/phone-verify/internal/domain"
	"github.com/phone-verify/internal/pkg/validate"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// ValidEnvelope answers confirm and session-validation calls.
type ValidEnvelope struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// DeletedEnvelope answers admin clear calls.
type DeletedEnvelope struct {
	Deleted int `json:"deleted"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// httpError maps a service error onto a status code. Unknown errors are logged
// and answered with a generic 500 so backend details never reach the client.
func httpError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidPhone):
		writeError(w, http.StatusBadRequest, domain.ErrInvalidPhone.Error())
	case errors.Is(err, validate.ErrValidation), errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrTooSoon):
		writeError(w, http.StatusTooManyRequests, domain.ErrTooSoon.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrDeliveryFailed):
		writeError(w, http.StatusBadGateway, domain.ErrDeliveryFailed.Error())
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
