package access

import (
	"context"
	"net/http"
	"strings"

	"bidtracker/models"
)

// Заголовки, которыми внешний auth-слой передаёт пользователя
const (
	HeaderUserID = "X-User-Id"
	HeaderTeam   = "X-User-Team"
	HeaderRole   = "X-User-Role"
	HeaderName   = "X-User-Name"
)

type identityKey struct{}

func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom пользователь текущего запроса
func IdentityFrom(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(models.Identity)
	return id, ok
}

// FromHeaders читает пользователя из заголовков запроса
func FromHeaders(h http.Header) models.Identity {
	return models.Identity{
		UserID: strings.TrimSpace(h.Get(HeaderUserID)),
		Team:   strings.TrimSpace(h.Get(HeaderTeam)),
		Role:   strings.TrimSpace(h.Get(HeaderRole)),
		Name:   strings.TrimSpace(h.Get(HeaderName)),
	}
}

// Middleware без X-User-Id запрос отклоняется с 401
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := FromHeaders(r.Header)
		if id.UserID == "" {
			http.Error(w, "Missing X-User-Id header", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}
