package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"telegram-intel/internal/pkg/response"
)

type contextKey string

const principalKey contextKey = "principal_id"

// Middleware пропускает только запросы с действительным Bearer-токеном
// и кладет ID принципала в контекст запроса.
func Middleware(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				response.Unauthorized(w, "Требуется заголовок Authorization")
				return
			}

			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				response.Unauthorized(w, "Неверный формат заголовка Authorization")
				return
			}

			id, err := v.Verify(strings.TrimSpace(token))
			if err != nil {
				response.Unauthorized(w, "Недействительный или просроченный токен")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), id)))
		})
	}
}

// WithPrincipal возвращает контекст с ID принципала.
func WithPrincipal(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, principalKey, id)
}

// PrincipalFromContext извлекает ID принципала, положенный Middleware.
func PrincipalFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(principalKey).(uuid.UUID)
	return id, ok
}
