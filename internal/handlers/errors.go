package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/tokenauth/internal/apperrors"
	"github.com/nkiryanov/tokenauth/internal/handlers/render"
	"github.com/nkiryanov/tokenauth/internal/logger"
)

// Render service error with status matching the error kind
// Unknown errors are logged and hidden behind 500
func renderServiceError(w http.ResponseWriter, err error, logger logger.Logger) {
	switch {
	case errors.Is(err, apperrors.ErrUserAlreadyExists):
		render.ServiceError(w, "User already exists", http.StatusConflict)
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		render.ServiceError(w, "Invalid login attempt", http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrUserNotFound):
		render.ServiceError(w, "User not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrUnauthorized):
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrBadRequest):
		render.ServiceError(w, "Bad request", http.StatusBadRequest)
	default:
		logger.Error("request failed", "error", err.Error())
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}
