package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/tokenauth/internal/handlers/middleware"
	"github.com/nkiryanov/tokenauth/internal/logger"
	"github.com/nkiryanov/tokenauth/internal/models"
	"github.com/nkiryanov/tokenauth/internal/service/user"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	authService authService,
	userService userService,
	logger logger.Logger,
) http.Handler {
	withAuth := middleware.AuthMiddleware(authService)

	root := http.NewServeMux()

	root.Handle("POST /register", handleRegister(userService, logger))
	root.Handle("POST /login", handleLogin(userService, logger))
	root.Handle("POST /logout", withAuth(handleLogout(userService, logger)))
	root.Handle("GET /me", withAuth(handleUserMe(userService, logger)))
	root.Handle("GET /healthz", handleHealthz())

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type authService interface {
	// Validate access token of the request
	// Has to return apperrors.ErrUnauthorized on any failure
	Authenticate(ctx context.Context, r *http.Request) (models.TokenClaims, error)
}

type userService interface {
	// Has to return apperrors.ErrUserAlreadyExists if email is taken
	Register(ctx context.Context, params user.RegisterParams) (models.User, error)

	// Has to return apperrors.ErrUserNotFound if user not found
	// or apperrors.ErrInvalidCredentials if password doesn't match
	Login(ctx context.Context, creds models.Credentials) (models.AuthenticatedUser, error)

	// Revoke access token and refresh one if given
	Logout(ctx context.Context, access models.TokenClaims, refresh string) error

	GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error)
}
