package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"bidtracker/db"
	"bidtracker/internal/access"
	"bidtracker/internal/logging"
	"bidtracker/internal/metrics"
	"bidtracker/internal/notify"
	"bidtracker/internal/workflow"
	"bidtracker/models"
)

const maxBodySize = 1048576

// Handler оборачивает Storage для доступа к данным
type Handler struct {
	Store    StorageInterface
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	LinkTTL  time.Duration
	BaseURL  string

	validate *validator.Validate
}

type Option func(*Handler)

func WithNotifier(n notify.Notifier) Option {
	return func(h *Handler) { h.Notifier = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.Metrics = m }
}

// WithLinks срок жизни ссылок партнёров и публичный адрес формы
func WithLinks(ttl time.Duration, baseURL string) Option {
	return func(h *Handler) {
		h.LinkTTL = ttl
		h.BaseURL = baseURL
	}
}

// NewHandler создает новый Handler
func NewHandler(store StorageInterface, opts ...Option) *Handler {
	h := &Handler{
		Store:    store,
		Notifier: notify.NewLogNotifier(zap.NewNop()),
		LinkTTL:  30 * 24 * time.Hour,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.Metrics == nil {
		h.Metrics = metrics.New("bidtracker", prometheus.NewRegistry())
	}
	return h
}

// PingHandler отвечает "ok" для проверки сервера
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// decodeJSON читает тело с ограничением размера и проверяет validate-теги
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return false
	}
	defer r.Body.Close()

	if err := json.Unmarshal(body, dst); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func identity(r *http.Request) models.Identity {
	id, _ := access.IdentityFrom(r.Context())
	return id
}

// requireAccess заявка из пути, к которой у пользователя есть доступ
func (h *Handler) requireAccess(w http.ResponseWriter, r *http.Request) (int64, bool) {
	bidID, ok := idParam(w, r, "bidId")
	if !ok {
		return 0, false
	}
	allowed, err := h.Store.HasAccess(r.Context(), bidID, identity(r))
	if err != nil {
		h.writeError(w, r, err)
		return 0, false
	}
	if !allowed {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return 0, false
	}
	return bidID, true
}

// writeError единое сопоставление ошибок хранилища и домена с HTTP-статусами
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *db.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, db.ErrDuplicate),
		errors.Is(err, db.ErrInvalidReference),
		errors.Is(err, workflow.ErrUnknownStatus):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, db.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, db.ErrVersionConflict),
		errors.Is(err, db.ErrRequestState):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, db.ErrLinkExpired):
		http.Error(w, err.Error(), http.StatusGone)
	default:
		logging.FromContext(r.Context()).Error("request failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// notify отправляет уведомление после фиксации изменений; ошибка только логируется
func (h *Handler) notify(ctx context.Context, ev notify.Event) {
	result := "sent"
	if err := h.Notifier.Notify(ctx, ev); err != nil {
		result = "failed"
		logging.FromContext(ctx).Warn("notification failed",
			zap.String("kind", string(ev.Kind)),
			zap.Int64("bid_id", ev.BidID),
			zap.Error(err))
	}
	h.Metrics.Notifications.WithLabelValues(string(ev.Kind), result).Inc()
}
