package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"bidtracker/internal/logging"
	"bidtracker/internal/notify"
	"bidtracker/models"
)

// RequestAccessHandler POST /api/bids/{bidId}/request-access.
// Повторный запрос, пока прежний pending, ничего не меняет и не уведомляет.
func (h *Handler) RequestAccessHandler(w http.ResponseWriter, r *http.Request) {
	bidID, ok := idParam(w, r, "bidId")
	if !ok {
		return
	}
	user := identity(r)

	req, created, err := h.Store.RequestAccess(r.Context(), bidID, user)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	action := "noop"
	if created {
		action = "requested"
		ev := notify.Event{Kind: notify.AccessRequested, BidID: bidID, UserID: user.UserID, UserName: user.Name, Team: user.Team}
		if bid, err := h.Store.GetBid(r.Context(), bidID); err == nil {
			ev.BidNumber, ev.StudyName = bid.BidNumber, bid.StudyName
		}
		h.notify(r.Context(), ev)
	}
	h.Metrics.AccessRequests.WithLabelValues(action).Inc()

	writeJSON(w, http.StatusOK, req)
}

// GrantAccessHandler POST /api/bids/{bidId}/grant-access
func (h *Handler) GrantAccessHandler(w http.ResponseWriter, r *http.Request) {
	bidID, ok := h.requireAccess(w, r)
	if !ok {
		return
	}
	var in models.GrantAccessInput
	if !h.decodeJSON(w, r, &in) {
		return
	}

	req, err := h.Store.GrantAccess(r.Context(), bidID, in.RequestID, identity(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Metrics.AccessRequests.WithLabelValues("granted").Inc()

	ev := notify.Event{Kind: notify.AccessGranted, BidID: bidID, UserID: req.UserID, UserName: req.UserName, Team: req.Team}
	if bid, err := h.Store.GetBid(r.Context(), bidID); err == nil {
		ev.BidNumber, ev.StudyName = bid.BidNumber, bid.StudyName
	}
	h.notify(r.Context(), ev)

	writeJSON(w, http.StatusOK, req)
}

// DenyAccessHandler POST /api/bids/{bidId}/deny-access
func (h *Handler) DenyAccessHandler(w http.ResponseWriter, r *http.Request) {
	bidID, ok := h.requireAccess(w, r)
	if !ok {
		return
	}
	var in models.GrantAccessInput
	if !h.decodeJSON(w, r, &in) {
		return
	}

	req, err := h.Store.DenyAccess(r.Context(), bidID, in.RequestID, identity(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Metrics.AccessRequests.WithLabelValues("denied").Inc()
	writeJSON(w, http.StatusOK, req)
}

// RevokeAccessHandler POST /api/bids/{bidId}/revoke-access; нужен user_id или team
func (h *Handler) RevokeAccessHandler(w http.ResponseWriter, r *http.Request) {
	bidID, ok := h.requireAccess(w, r)
	if !ok {
		return
	}
	var in models.RevokeAccessInput
	if !h.decodeJSON(w, r, &in) {
		return
	}

	removed, err := h.Store.RevokeAccess(r.Context(), bidID, in.UserID, in.Team)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Metrics.AccessRequests.WithLabelValues("revoked").Inc()
	logging.FromContext(r.Context()).Info("access revoked",
		zap.Int64("bid_id", bidID),
		zap.String("user_id", in.UserID),
		zap.String("team", in.Team),
		zap.Int64("removed", removed))

	writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}

// ListAccessRequestsHandler GET /api/bids/{bidId}/access-requests?status=
func (h *Handler) ListAccessRequestsHandler(w http.ResponseWriter, r *http.Request) {
	bidID, ok := h.requireAccess(w, r)
	if !ok {
		return
	}
	status := r.URL.Query().Get("status")
	switch status {
	case "":
		status = models.AccessPending
	case models.AccessPending, models.AccessGranted, models.AccessDenied:
	default:
		http.Error(w, "Invalid status", http.StatusBadRequest)
		return
	}

	requests, err := h.Store.ListAccessRequests(r.Context(), bidID, status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

// NotificationsHandler GET /api/notifications
func (h *Handler) NotificationsHandler(w http.ResponseWriter, r *http.Request) {
	items, err := h.Store.ListNotifications(r.Context(), identity(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
