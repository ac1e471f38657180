package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bidtracker/internal/links"
	"bidtracker/internal/logging"
	"bidtracker/models"
)

// GenerateLinkHandler POST /api/bids/{bidId}/partners/{partnerId}/generate-link
func (h *Handler) GenerateLinkHandler(w http.ResponseWriter, r *http.Request) {
	h.issueLink(w, r, "generated")
}

// ExtendLinkHandler POST /api/bids/{bidId}/partners/{partnerId}/extend-link
func (h *Handler) ExtendLinkHandler(w http.ResponseWriter, r *http.Request) {
	h.issueLink(w, r, "extended")
}

func (h *Handler) issueLink(w http.ResponseWriter, r *http.Request, action string) {
	bidID, ok := h.requireAccess(w, r)
	if !ok {
		return
	}
	partnerID, ok := idParam(w, r, "partnerId")
	if !ok {
		return
	}

	var (
		link *models.PartnerLink
		err  error
	)
	if action == "extended" {
		link, err = h.Store.ExtendPartnerLink(r.Context(), bidID, partnerID, h.LinkTTL)
	} else {
		link, err = h.Store.UpsertPartnerLink(r.Context(), bidID, partnerID, h.LinkTTL)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	link.URL = links.URL(h.BaseURL, link.Token)

	h.Metrics.LinksIssued.WithLabelValues(action).Inc()
	logging.FromContext(r.Context()).Info("partner link "+action,
		zap.Int64("bid_id", bidID),
		zap.Int64("partner_id", partnerID),
		zap.String("token", links.Short(link.Token)),
		zap.Time("expires_at", link.ExpiresAt))

	writeJSON(w, http.StatusOK, link)
}

// GetPartnerFormHandler GET /api/partner-link/{token}; без заголовков пользователя
func (h *Handler) GetPartnerFormHandler(w http.ResponseWriter, r *http.Request) {
	form, err := h.Store.GetPartnerForm(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// SubmitPartnerFormHandler POST /api/partner-link/{token}
func (h *Handler) SubmitPartnerFormHandler(w http.ResponseWriter, r *http.Request) {
	var in models.PartnerFormInput
	if !h.decodeJSON(w, r, &in) {
		return
	}
	token := chi.URLParam(r, "token")

	link, err := h.Store.SubmitPartnerForm(r.Context(), token, &in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Metrics.PartnerSubmissions.Inc()
	logging.FromContext(r.Context()).Info("partner form submitted",
		zap.Int64("bid_id", link.BidID),
		zap.Int64("partner_id", link.PartnerID),
		zap.String("token", links.Short(token)))

	writeJSON(w, http.StatusOK, map[string]string{"status": models.ResponseSubmitted})
}
