package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics набор метрик сервиса
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	DBOperationDuration *prometheus.HistogramVec
	StatusTransitions   *prometheus.CounterVec
	AccessRequests      *prometheus.CounterVec
	PartnerSubmissions  prometheus.Counter
	LinksIssued         *prometheus.CounterVec
	Notifications       *prometheus.CounterVec
}

// New регистрирует метрики в reg с префиксом
func New(prefix string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		DBOperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		StatusTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_status_transitions_total",
			Help: "Bid status transitions by target status",
		}, []string{"to"}),
		AccessRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_access_requests_total",
			Help: "Access control operations by outcome",
		}, []string{"action"}),
		PartnerSubmissions: f.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_partner_submissions_total",
			Help: "Partner form submissions through links",
		}),
		LinksIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_partner_links_total",
			Help: "Partner links generated or extended",
		}, []string{"action"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_notifications_total",
			Help: "Notifications sent by event and result",
		}, []string{"event", "result"}),
	}
}

// Middleware метрики HTTP по шаблону маршрута chi
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				path = p
			}
		}
		status := strconv.Itoa(ww.Status())
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}

// TrackDB возвращает функцию, фиксирующую длительность операции с БД
func (m *Metrics) TrackDB(operation string) func() {
	start := time.Now()
	return func() {
		m.DBOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
