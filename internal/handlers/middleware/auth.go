package middleware

import (
	"context"
	"net/http"

	"github.com/nkiryanov/tokenauth/internal/handlers/claimsctx"
	"github.com/nkiryanov/tokenauth/internal/handlers/render"
	"github.com/nkiryanov/tokenauth/internal/models"
)

type authService interface {
	Authenticate(ctx context.Context, r *http.Request) (models.TokenClaims, error)
}

func AuthMiddleware(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := as.Authenticate(r.Context(), r)
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := claimsctx.New(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
