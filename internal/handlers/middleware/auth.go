package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/nkiryanov/taledynamic/internal/handlers/render"
	"github.com/nkiryanov/taledynamic/internal/handlers/userctx"
	"github.com/nkiryanov/taledynamic/internal/models"
)

type authService interface {
	// Resolve active user from access token
	UserFromAccess(ctx context.Context, access string) (models.User, error)
}

// Get access token from 'Authorization: Bearer <token>' header
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}

func AuthMiddleware(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			access, ok := BearerToken(r)
			if !ok {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := as.UserFromAccess(r.Context(), access)
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := userctx.New(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
