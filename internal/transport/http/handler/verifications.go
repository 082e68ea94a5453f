package handler

import (
	"encoding/json"
	"net/http"

	"github.com/phone-verify/internal/application/verification"
	"github.com/phone-verify/internal/pkg/validate"
)

// rejectedCode is the single answer for every negative confirmation outcome.
const rejectedCode = "invalid or expired code"

// VerificationHandler handles code request and confirmation.
type VerificationHandler struct {
	svc verification.Service
}

func NewVerificationHandler(svc verification.Service) *VerificationHandler {
	return &VerificationHandler{svc: svc}
}

func (h *VerificationHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req verification.RequestCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpError(w, r, err)
		return
	}
	res, err := h.svc.RequestCode(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

func (h *VerificationHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req verification.ConfirmCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpError(w, r, err)
		return
	}
	res, err := h.svc.ConfirmCode(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	if !res.Valid {
		writeError(w, http.StatusBadRequest, rejectedCode)
		return
	}
	writeJSON(w, http.StatusOK, ValidEnvelope{Valid: true})
}
