package handlers

import (
	"net/http"

	"bidtracker/models"
)

// GetAllocationsHandler GET /api/bids/{bidId}/field-allocations
func (h *Handler) GetAllocationsHandler(w http.ResponseWriter, r *http.Request) {
	bidID, ok := h.requireAccess(w, r)
	if !ok {
		return
	}
	grid, err := h.Store.GetAllocationGrid(r.Context(), bidID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grid)
}

// SetAllocationHandler POST /api/bids/{bidId}/field-allocations
func (h *Handler) SetAllocationHandler(w http.ResponseWriter, r *http.Request) {
	bidID, ok := h.requireAccess(w, r)
	if !ok {
		return
	}
	var in models.AllocationInput
	if !h.decodeJSON(w, r, &in) {
		return
	}

	row, err := h.Store.SetAllocation(r.Context(), bidID, &in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// SaveClosureHandler PUT /api/bids/{bidId}/closure
func (h *Handler) SaveClosureHandler(w http.ResponseWriter, r *http.Request) {
	bidID, ok := h.requireAccess(w, r)
	if !ok {
		return
	}
	var in models.ClosureInput
	if !h.decodeJSON(w, r, &in) {
		return
	}

	lines, err := h.Store.SaveClosure(r.Context(), bidID, &in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

// GetInvoiceHandler GET /api/bids/{bidId}/invoice
func (h *Handler) GetInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	bidID, ok := h.requireAccess(w, r)
	if !ok {
		return
	}
	lines, err := h.Store.GetCostLines(r.Context(), bidID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

// SaveInvoiceHandler PUT /api/bids/{bidId}/invoice
func (h *Handler) SaveInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	bidID, ok := h.requireAccess(w, r)
	if !ok {
		return
	}
	var in models.InvoiceInput
	if !h.decodeJSON(w, r, &in) {
		return
	}

	lines, err := h.Store.SaveInvoice(r.Context(), bidID, &in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

// ClosureListHandler GET /api/bids/closure
func (h *Handler) ClosureListHandler(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Store.ClosureList(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// ReadyForInvoiceHandler GET /api/bids/ready-for-invoice
func (h *Handler) ReadyForInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Store.ReadyForInvoiceList(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// DashboardHandler GET /api/dashboard
func (h *Handler) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	d, err := h.Store.Dashboard(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
