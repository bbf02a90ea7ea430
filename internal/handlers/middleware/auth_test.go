package middleware

import (
	"context"
	"errors"
	"testing"

	"io"
	"net/http"
	"net/http/httptest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/tokenauth/internal/handlers/claimsctx"
	"github.com/nkiryanov/tokenauth/internal/models"
)

// Allow to use a function as auth service
type authFunc func(ctx context.Context, r *http.Request) (models.TokenClaims, error)

func (f authFunc) Authenticate(ctx context.Context, r *http.Request) (models.TokenClaims, error) {
	return f(ctx, r)
}

func TestAuthMiddleware_Auth(t *testing.T) {
	subject := uuid.New()

	// Simple handler that try to get claims from context
	// If ok write subject to response
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Must always be true cause middleware has to set claims or write error to response
		claims, ok := claimsctx.FromContext(r.Context())
		require.True(t, ok)

		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(claims.Subject.String()))
		require.NoError(t, err, "should write subject to response")
	})

	t.Run("auth ok", func(t *testing.T) {
		// Middleware that always return ok
		middleware := AuthMiddleware(authFunc(func(ctx context.Context, r *http.Request) (models.TokenClaims, error) {
			return models.TokenClaims{Subject: subject}, nil
		}))

		srv := httptest.NewServer(middleware(handler))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/test")
		require.NoError(t, err, "should make request to test server")
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err, "should read response body")
		defer resp.Body.Close() // nolint:errcheck

		require.Equalf(t, http.StatusOK, resp.StatusCode, "should return status OK. Resp: %s", string(body))
		require.Equal(t, subject.String(), string(body), "should return subject in response")
	})

	t.Run("auth fail", func(t *testing.T) {
		called := false
		// Middleware that always fails
		middleware := AuthMiddleware(authFunc(func(ctx context.Context, r *http.Request) (models.TokenClaims, error) {
			return models.TokenClaims{}, errors.New("token expired")
		}))

		srv := httptest.NewServer(middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		})))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/test")
		require.NoError(t, err, "should make request to test server")
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err, "should read response body")
		defer resp.Body.Close() // nolint:errcheck

		require.False(t, called, "next handler must not be called")
		require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "should return status Unauthorized. Resp: %s", string(body))
		require.JSONEq(t,
			`{
				"error": "service_error",
				"message": "Unauthorized"
			}`,
			string(body),
		)
	})
}
