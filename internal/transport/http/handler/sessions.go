package handler

import (
	"net/http"

	"github.com/phone-verify/internal/application/verification"
	"github.com/phone-verify/internal/transport/http/middleware"
)

// SessionHandler checks that the bearer's account may still act.
type SessionHandler struct {
	svc verification.Service
}

func NewSessionHandler(svc verification.Service) *SessionHandler {
	return &SessionHandler{svc: svc}
}

func (h *SessionHandler) Validate(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	st, err := h.svc.ValidateSession(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ValidEnvelope{Valid: st.Valid, Reason: st.Reason})
}
