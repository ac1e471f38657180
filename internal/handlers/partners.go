package handlers

import (
	"net/http"

	"bidtracker/models"
)

// CreatePartnerHandler POST /api/partners
func (h *Handler) CreatePartnerHandler(w http.ResponseWriter, r *http.Request) {
	var in models.PartnerInput
	if !h.decodeJSON(w, r, &in) {
		return
	}
	p, err := h.Store.CreatePartner(r.Context(), &in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) ListPartnersHandler(w http.ResponseWriter, r *http.Request) {
	partners, err := h.Store.ListPartners(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, partners)
}
