package handlers

import (
	"net/http"

	"github.com/nkiryanov/tokenauth/internal/handlers/claimsctx"
	"github.com/nkiryanov/tokenauth/internal/handlers/render"
	"github.com/nkiryanov/tokenauth/internal/logger"
	"github.com/nkiryanov/tokenauth/internal/models"
	"github.com/nkiryanov/tokenauth/internal/service/user"
)

func handleRegister(userService userService, logger logger.Logger) http.Handler {
	type RegisterRequest struct {
		Name     string `json:"name" validate:"required,max=100"`
		Email    string `json:"email" validate:"required,email,max=255"`
		Password string `json:"password" validate:"required,min=8"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[RegisterRequest](w, r)
		if err != nil {
			return
		}

		u, err := userService.Register(r.Context(), user.RegisterParams{
			Name:     data.Name,
			Email:    data.Email,
			Password: data.Password,
		})
		if err != nil {
			renderServiceError(w, err, logger)
			return
		}

		render.JSON(w, u)
	})
}

func handleLogin(userService userService, logger logger.Logger) http.Handler {
	type LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	type LoginResponse struct {
		User         models.User `json:"user"`
		AccessToken  string      `json:"access_token"`
		RefreshToken string      `json:"refresh_token"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[LoginRequest](w, r)
		if err != nil {
			return
		}

		au, err := userService.Login(r.Context(), models.Credentials{Email: data.Email, Password: data.Password})
		if err != nil {
			renderServiceError(w, err, logger)
			return
		}

		render.JSON(w, LoginResponse{
			User:         au.User,
			AccessToken:  au.Tokens.Access.Value,
			RefreshToken: au.Tokens.Refresh.Value,
		})
	})
}

func handleLogout(userService userService, logger logger.Logger) http.Handler {
	type LogoutRequest struct {
		RefreshToken string `json:"refresh_token"`
	}
	type LogoutResponse struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		// Body is optional: logout with access token only is fine
		data, err := render.BindAndValidateOptional[LogoutRequest](w, r)
		if err != nil {
			return
		}

		err = userService.Logout(r.Context(), claims, data.RefreshToken)
		if err != nil {
			renderServiceError(w, err, logger)
			return
		}

		render.JSON(w, LogoutResponse{Message: "Logged out"})
	})
}
