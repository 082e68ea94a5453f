package handler

import (
	"net/http"

	"github.com/phone-verify/internal/application/verification"
)

// AdminHandler exposes operational endpoints. Mounted only when admin is enabled.
type AdminHandler struct {
	svc verification.Service
}

func NewAdminHandler(svc verification.Service) *AdminHandler { return &AdminHandler{svc: svc} }

// Clear deletes the records of ?phone=, or every record when phone is ALL.
func (h *AdminHandler) Clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Clear(r.Context(), r.URL.Query().Get("phone"))
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeletedEnvelope{Deleted: n})
}

func (h *AdminHandler) DeliveryStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ChannelStatus())
}
