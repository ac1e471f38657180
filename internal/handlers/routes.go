package handlers

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"bidtracker/internal/access"
	"bidtracker/internal/logging"
)

// NewRouter маршруты /api; ссылки партнёров и ping доступны без заголовков пользователя
func NewRouter(h *Handler, log *zap.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(log))
	r.Use(h.Metrics.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)
		r.Get("/partner-link/{token}", h.GetPartnerFormHandler)
		r.Post("/partner-link/{token}", h.SubmitPartnerFormHandler)

		r.Group(func(r chi.Router) {
			r.Use(access.Middleware)

			r.Get("/dashboard", h.DashboardHandler)
			r.Get("/notifications", h.NotificationsHandler)
			r.Get("/partners", h.ListPartnersHandler)
			r.Post("/partners", h.CreatePartnerHandler)

			r.Get("/bids", h.ListBidsHandler)
			r.Post("/bids", h.CreateBidHandler)
			r.Get("/bids/next-number", h.NextBidNumberHandler)
			r.Get("/bids/closure", h.ClosureListHandler)
			r.Get("/bids/ready-for-invoice", h.ReadyForInvoiceHandler)
			r.Post("/bids/find-similar", h.FindSimilarHandler)

			r.Route("/bids/{bidId}", func(r chi.Router) {
				r.Get("/", h.GetBidHandler)
				r.Put("/", h.UpdateBidHandler)
				r.Post("/status", h.ChangeStatusHandler)

				r.Get("/partner-responses", h.GetPartnerResponsesHandler)
				r.Put("/partner-responses", h.UpsertPartnerResponsesHandler)
				r.Get("/partner-responses-summary", h.ProgressSummaryHandler)

				r.Get("/field-allocations", h.GetAllocationsHandler)
				r.Post("/field-allocations", h.SetAllocationHandler)
				r.Put("/closure", h.SaveClosureHandler)
				r.Get("/invoice", h.GetInvoiceHandler)
				r.Put("/invoice", h.SaveInvoiceHandler)

				r.Post("/partners/{partnerId}/generate-link", h.GenerateLinkHandler)
				r.Post("/partners/{partnerId}/extend-link", h.ExtendLinkHandler)

				r.Post("/request-access", h.RequestAccessHandler)
				r.Post("/grant-access", h.GrantAccessHandler)
				r.Post("/deny-access", h.DenyAccessHandler)
				r.Post("/revoke-access", h.RevokeAccessHandler)
				r.Get("/access-requests", h.ListAccessRequestsHandler)
			})
		})
	})
	return r
}
