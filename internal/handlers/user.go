package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/tokenauth/internal/apperrors"
	"github.com/nkiryanov/tokenauth/internal/handlers/claimsctx"
	"github.com/nkiryanov/tokenauth/internal/handlers/render"
	"github.com/nkiryanov/tokenauth/internal/logger"
	"github.com/nkiryanov/tokenauth/internal/models"
)

func handleUserMe(userService userService, logger logger.Logger) http.Handler {
	type MeResponse struct {
		User models.User `json:"user"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		u, err := userService.GetUserByID(r.Context(), claims.Subject)
		if errors.Is(err, apperrors.ErrUserNotFound) {
			// Token outlived its user
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if err != nil {
			renderServiceError(w, err, logger)
			return
		}

		render.JSON(w, MeResponse{User: u})
	})
}

func handleHealthz() http.Handler {
	type HealthResponse struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, HealthResponse{Status: "success", Message: "All good !"})
	})
}
