package tokenmanager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/tokenauth/internal/apperrors"
	"github.com/nkiryanov/tokenauth/internal/logger"
	"github.com/nkiryanov/tokenauth/internal/models"
	"github.com/nkiryanov/tokenauth/internal/repository"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Only HMAC SHA-256 is accepted, whatever token header says
var signingMethod = jwt.SigningMethodHS256

// Token payload on the wire: {exp, iat, nbf, sub, token_uuid}
type Claims struct {
	jwt.RegisteredClaims
	TokenUUID string `json:"token_uuid"`
}

// Token manager with sensible default
type Config struct {
	// Secret keys to sign access and refresh tokens
	// Required to be set and to be different
	AccessSecret  []byte
	RefreshSecret []byte

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenManager struct {
	keys map[models.TokenRole][]byte
	ttls map[models.TokenRole]time.Duration

	// Every issued token is registered here
	store repository.RevocationStore

	logger logger.Logger

	// Clock, time.Now unless replaced in tests
	now func() time.Time
}

func New(cfg Config, store repository.RevocationStore, l logger.Logger) (*TokenManager, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("access and refresh secrets must not be empty")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must be different")
	}
	if store == nil {
		return nil, errors.New("revocation store must not be nil")
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field <= 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	return &TokenManager{
		keys: map[models.TokenRole][]byte{
			models.TokenRoleAccess:  cfg.AccessSecret,
			models.TokenRoleRefresh: cfg.RefreshSecret,
		},
		ttls: map[models.TokenRole]time.Duration{
			models.TokenRoleAccess:  cfg.AccessTTL,
			models.TokenRoleRefresh: cfg.RefreshTTL,
		},
		store:  store,
		logger: l.With("component", "tokenmanager"),
		now:    time.Now,
	}, nil
}

// Issue signed token of the role for the subject and register it in revocation store
// Failure to register is logged only: token is still returned
func (m *TokenManager) Issue(ctx context.Context, subject uuid.UUID, role models.TokenRole) (models.IssuedToken, error) {
	key, ok := m.keys[role]
	if !ok {
		return models.IssuedToken{}, fmt.Errorf("%w: unknown token role %q", apperrors.ErrSigning, role)
	}

	now := m.now()
	issuedAt := now.Truncate(time.Second)
	expiresAt := issuedAt.Add(m.ttls[role])
	tokenID := uuid.New()

	token := jwt.NewWithClaims(signingMethod, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenUUID: tokenID.String(),
	})

	value, err := token.SignedString(key)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("%w: error while signing %s token. Err: %w", apperrors.ErrSigning, role, err)
	}

	err = m.store.Save(ctx, tokenID, subject, expiresAt.Sub(now))
	if err != nil {
		m.logger.Warn("token is not registered in revocation store", "role", role, "token_id", tokenID, "error", err)
	}

	return models.IssuedToken{
		Value:     value,
		TokenID:   tokenID,
		Subject:   subject,
		ExpiresAt: expiresAt,
	}, nil
}

// Issue access and refresh tokens for the subject
func (m *TokenManager) IssuePair(ctx context.Context, subject uuid.UUID) (models.TokenPair, error) {
	access, err := m.Issue(ctx, subject, models.TokenRoleAccess)
	if err != nil {
		return models.TokenPair{}, err
	}

	refresh, err := m.Issue(ctx, subject, models.TokenRoleRefresh)
	if err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

// Parse and validate token of the role. Revocation store is not consulted
func (m *TokenManager) Verify(value string, role models.TokenRole) (models.TokenClaims, error) {
	key, ok := m.keys[role]
	if !ok {
		return models.TokenClaims{}, fmt.Errorf("%w: unknown token role %q", apperrors.ErrInvalidSignature, role)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		value,
		claims,
		func(t *jwt.Token) (any, error) {
			return key, nil
		},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		// Non canonical base64 (e.g. nonzero trailing bits) is malformed, not the same token
		jwt.WithStrictDecoding(),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return models.TokenClaims{}, fmt.Errorf("error while parsing or validating token. Err: %w", mapJWTError(err))
	}

	subject, err := uuid.Parse(claims.Subject)
	if err != nil {
		return models.TokenClaims{}, fmt.Errorf("%w: sub is not uuid", apperrors.ErrMalformedClaims)
	}
	tokenID, err := uuid.Parse(claims.TokenUUID)
	if err != nil {
		return models.TokenClaims{}, fmt.Errorf("%w: token_uuid is not uuid", apperrors.ErrMalformedClaims)
	}

	result := models.TokenClaims{
		Subject:   subject,
		TokenID:   tokenID,
		Role:      role,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time
	}
	if claims.NotBefore != nil {
		result.NotBefore = claims.NotBefore.Time
	}

	return result, nil
}

// Check token record still exists and belongs to the same subject
func (m *TokenManager) IsActive(ctx context.Context, claims models.TokenClaims) error {
	subject, err := m.store.Get(ctx, claims.TokenID)
	if err != nil {
		return fmt.Errorf("error while checking token state. Err: %w", err)
	}

	if subject != claims.Subject {
		return fmt.Errorf("%w: token belongs to other subject", apperrors.ErrTokenRevoked)
	}

	return nil
}

// Revoke tokens by their ids
func (m *TokenManager) Revoke(ctx context.Context, tokenIDs ...uuid.UUID) error {
	err := m.store.Delete(ctx, tokenIDs...)
	if err != nil {
		return fmt.Errorf("error while revoking tokens. Err: %w", err)
	}
	return nil
}

// Map jwt library errors to application ones
// Signature and format failures are checked first: claims of such tokens can't be trusted
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return apperrors.ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperrors.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return apperrors.ErrTokenNotYetValid
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing), errors.Is(err, jwt.ErrTokenInvalidClaims):
		return apperrors.ErrMalformedClaims
	default:
		return apperrors.ErrInvalidSignature
	}
}
