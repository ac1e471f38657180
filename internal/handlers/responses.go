package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"bidtracker/internal/logging"
	"bidtracker/models"
)

// GetPartnerResponsesHandler GET /api/bids/{bidId}/partner-responses
func (h *Handler) GetPartnerResponsesHandler(w http.ResponseWriter, r *http.Request) {
	bidID, ok := h.requireAccess(w, r)
	if !ok {
		return
	}
	ledger, err := h.Store.GetPartnerResponses(r.Context(), bidID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ledger)
}

// UpsertPartnerResponsesHandler PUT /api/bids/{bidId}/partner-responses
func (h *Handler) UpsertPartnerResponsesHandler(w http.ResponseWriter, r *http.Request) {
	bidID, ok := h.requireAccess(w, r)
	if !ok {
		return
	}
	var in models.PartnerResponsesInput
	if !h.decodeJSON(w, r, &in) {
		return
	}

	ledger, err := h.Store.UpsertPartnerResponses(r.Context(), bidID, &in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info("partner responses saved",
		zap.Int64("bid_id", bidID),
		zap.Int("responses", len(in.Responses)))

	writeJSON(w, http.StatusOK, ledger)
}

// ProgressSummaryHandler GET /api/bids/{bidId}/partner-responses-summary
func (h *Handler) ProgressSummaryHandler(w http.ResponseWriter, r *http.Request) {
	bidID, ok := h.requireAccess(w, r)
	if !ok {
		return
	}
	summary, err := h.Store.GetProgressSummary(r.Context(), bidID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
