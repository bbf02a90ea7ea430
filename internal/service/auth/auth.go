package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nkiryanov/tokenauth/internal/apperrors"
	"github.com/nkiryanov/tokenauth/internal/logger"
	"github.com/nkiryanov/tokenauth/internal/models"
)

const bearerScheme = "bearer"

type TokenManager interface {
	Verify(value string, role models.TokenRole) (models.TokenClaims, error)
	IsActive(ctx context.Context, claims models.TokenClaims) error
}

type Config struct {
	// Reject access tokens without record in revocation store
	// When off tokens are checked locally: signature and lifetime only
	EnforceRevocation bool
}

// Auth service validates credentials attached to inbound requests
type AuthService struct {
	tokens TokenManager
	cfg    Config
	logger logger.Logger
}

func NewService(cfg Config, tokens TokenManager, l logger.Logger) (*AuthService, error) {
	if tokens == nil {
		return nil, errors.New("token manager must not be nil")
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &AuthService{
		tokens: tokens,
		cfg:    cfg,
		logger: l.With("component", "auth"),
	}, nil
}

// Authenticate request by access token in 'Authorization: Bearer <token>' header
// Any failure is reported as apperrors.ErrUnauthorized, the cause is logged only
func (s *AuthService) Authenticate(ctx context.Context, r *http.Request) (models.TokenClaims, error) {
	claims, err := s.authenticate(ctx, r)
	if err != nil {
		s.logger.Debug("request not authenticated", "path", r.URL.Path, "reason", err.Error())
		return models.TokenClaims{}, apperrors.ErrUnauthorized
	}

	return claims, nil
}

func (s *AuthService) authenticate(ctx context.Context, r *http.Request) (models.TokenClaims, error) {
	token, err := BearerToken(r)
	if err != nil {
		return models.TokenClaims{}, err
	}

	claims, err := s.tokens.Verify(token, models.TokenRoleAccess)
	if err != nil {
		return models.TokenClaims{}, err
	}

	if s.cfg.EnforceRevocation {
		if err := s.tokens.IsActive(ctx, claims); err != nil {
			return models.TokenClaims{}, err
		}
	}

	return claims, nil
}

// Extract token from 'Authorization: Bearer <token>' header
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("%w: no authorization header", apperrors.ErrUnauthorized)
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, bearerScheme) {
		return "", fmt.Errorf("%w: not bearer scheme", apperrors.ErrUnauthorized)
	}

	if token == "" || strings.ContainsAny(token, " \t") {
		return "", fmt.Errorf("%w: malformed bearer token", apperrors.ErrUnauthorized)
	}

	return token, nil
}
