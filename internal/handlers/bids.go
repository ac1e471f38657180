package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"bidtracker/internal/logging"
	"bidtracker/internal/workflow"
	"bidtracker/models"
)

type createdBid struct {
	BidID     int64  `json:"bid_id"`
	BidNumber string `json:"bid_number"`
	Status    string `json:"status"`
	Version   int    `json:"version"`
}

// CreateBidHandler POST /api/bids
func (h *Handler) CreateBidHandler(w http.ResponseWriter, r *http.Request) {
	var in models.BidInput
	if !h.decodeJSON(w, r, &in) {
		return
	}

	bid, err := h.Store.CreateBid(r.Context(), &in, identity(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info("bid created",
		zap.Int64("bid_id", bid.ID),
		zap.String("bid_number", bid.BidNumber),
		zap.Int("audiences", len(in.Audiences)))

	writeJSON(w, http.StatusCreated, createdBid{BidID: bid.ID, BidNumber: bid.BidNumber, Status: bid.Status, Version: bid.Version})
}

// ListBidsHandler GET /api/bids?status=&limit=&offset=
func (h *Handler) ListBidsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)
	filter := models.BidFilter{Limit: params.Limit, Offset: params.Offset}

	if s := r.URL.Query().Get("status"); s != "" {
		status, err := workflow.Normalize(s)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		filter.Status = string(status)
	}

	bids, err := h.Store.ListBids(r.Context(), filter, identity(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bids)
}

// FindSimilarHandler POST /api/bids/find-similar
func (h *Handler) FindSimilarHandler(w http.ResponseWriter, r *http.Request) {
	var in models.FindSimilarInput
	if !h.decodeJSON(w, r, &in) {
		return
	}
	bids, err := h.Store.FindSimilarBids(r.Context(), &in, identity(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bids)
}

// GetBidHandler GET /api/bids/{bidId}
func (h *Handler) GetBidHandler(w http.ResponseWriter, r *http.Request) {
	bidID, ok := h.requireAccess(w, r)
	if !ok {
		return
	}
	detail, err := h.Store.GetBidDetail(r.Context(), bidID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// UpdateBidHandler PUT /api/bids/{bidId}
func (h *Handler) UpdateBidHandler(w http.ResponseWriter, r *http.Request) {
	bidID, ok := h.requireAccess(w, r)
	if !ok {
		return
	}
	var in models.BidInput
	if !h.decodeJSON(w, r, &in) {
		return
	}

	bid, err := h.Store.UpdateBid(r.Context(), bidID, &in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bid)
}

// NextBidNumberHandler GET /api/bids/next-number
func (h *Handler) NextBidNumberHandler(w http.ResponseWriter, r *http.Request) {
	next, err := h.Store.NextBidNumber(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"bid_number": next})
}

// ChangeStatusHandler POST /api/bids/{bidId}/status
func (h *Handler) ChangeStatusHandler(w http.ResponseWriter, r *http.Request) {
	bidID, ok := h.requireAccess(w, r)
	if !ok {
		return
	}
	var in models.StatusChange
	if !h.decodeJSON(w, r, &in) {
		return
	}

	bid, err := h.Store.TransitionStatus(r.Context(), bidID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Metrics.StatusTransitions.WithLabelValues(bid.Status).Inc()
	logging.FromContext(r.Context()).Info("bid status changed",
		zap.Int64("bid_id", bidID),
		zap.String("status", bid.Status))

	writeJSON(w, http.StatusOK, bid)
}
