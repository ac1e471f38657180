package testutils

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bidtracker/internal/access"
	"bidtracker/models"
)

// WithChiURLParams подставляет параметры пути в контекст chi запроса для тестов.
func WithChiURLParams(req *http.Request, params map[string]string) *http.Request {
	chiCtx := chi.NewRouteContext()
	for k, v := range params {
		chiCtx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, chiCtx))
}

// WithIdentity кладёт пользователя в контекст, как это делает access.Middleware.
func WithIdentity(req *http.Request, id models.Identity) *http.Request {
	return req.WithContext(access.WithIdentity(req.Context(), id))
}
