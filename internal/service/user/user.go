package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/tokenauth/internal/apperrors"
	"github.com/nkiryanov/tokenauth/internal/logger"
	"github.com/nkiryanov/tokenauth/internal/models"
	"github.com/nkiryanov/tokenauth/internal/repository"
	"github.com/nkiryanov/tokenauth/internal/service/auth"
)

type TokenManager interface {
	IssuePair(ctx context.Context, subject uuid.UUID) (models.TokenPair, error)
	Verify(value string, role models.TokenRole) (models.TokenClaims, error)
	Revoke(ctx context.Context, tokenIDs ...uuid.UUID) error
}

type Config struct {
	// Report unknown email on login as invalid credentials, so login can't be used to probe emails
	HideUserExistence bool
}

type RegisterParams struct {
	Name     string
	Email    string
	Password string
}

type UserService struct {
	hasher   auth.PasswordHasher
	userRepo repository.UserRepo
	tokens   TokenManager
	cfg      Config
	logger   logger.Logger
}

func NewService(cfg Config, hasher auth.PasswordHasher, userRepo repository.UserRepo, tokens TokenManager, l logger.Logger) (*UserService, error) {
	if userRepo == nil || tokens == nil {
		return nil, errors.New("user repo and token manager must not be nil")
	}
	if hasher == nil {
		hasher = auth.DefaultHasher
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &UserService{
		hasher:   hasher,
		userRepo: userRepo,
		tokens:   tokens,
		cfg:      cfg,
		logger:   l.With("component", "user"),
	}, nil
}

// Register new user
// Returns apperrors.ErrUserAlreadyExists if email is taken
func (s *UserService) Register(ctx context.Context, params RegisterParams) (models.User, error) {
	_, err := s.userRepo.GetUserByEmail(ctx, params.Email)
	switch {
	case err == nil:
		return models.User{}, apperrors.ErrUserAlreadyExists
	case errors.Is(err, apperrors.ErrUserNotFound):
	default:
		return models.User{}, fmt.Errorf("can't check user existence. Err: %w", err)
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("can't use this as password. Err: %w", err)
	}

	// Email may be taken between check and insert: repo reports it as ErrUserAlreadyExists too
	user, err := s.userRepo.CreateUser(ctx, params.Name, params.Email, hash)
	if err != nil {
		return models.User{}, fmt.Errorf("can't create user. Err: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return user.WithoutPassword(), nil
}

// Login user by email and password and issue access and refresh tokens
func (s *UserService) Login(ctx context.Context, creds models.Credentials) (models.AuthenticatedUser, error) {
	user, err := s.userRepo.GetUserByEmail(ctx, creds.Email)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrUserNotFound) && s.cfg.HideUserExistence:
		return models.AuthenticatedUser{}, apperrors.ErrInvalidCredentials
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.AuthenticatedUser{}, apperrors.ErrUserNotFound
	default:
		return models.AuthenticatedUser{}, fmt.Errorf("can't get user. Err: %w", err)
	}

	ok, err := s.hasher.Verify(user.HashedPassword, creds.Password)
	if err != nil {
		s.logger.Error("stored password hash can't be verified", "user_id", user.ID, "error", err)
		return models.AuthenticatedUser{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidCredentials, err)
	}
	if !ok {
		return models.AuthenticatedUser{}, apperrors.ErrInvalidCredentials
	}

	pair, err := s.tokens.IssuePair(ctx, user.ID)
	if err != nil {
		return models.AuthenticatedUser{}, fmt.Errorf("token could not be issued. Err: %w", err)
	}

	return models.AuthenticatedUser{User: user.WithoutPassword(), Tokens: pair}, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}

	return user.WithoutPassword(), nil
}

// Revoke access token and, if given and issued to the same user, refresh token
// Refresh token which fails verification is ignored: it can't be used anyway
func (s *UserService) Logout(ctx context.Context, access models.TokenClaims, refresh string) error {
	ids := []uuid.UUID{access.TokenID}

	if refresh != "" {
		claims, err := s.tokens.Verify(refresh, models.TokenRoleRefresh)
		switch {
		case err != nil:
			s.logger.Debug("refresh token is not revoked on logout", "user_id", access.Subject, "reason", err.Error())
		case claims.Subject != access.Subject:
			s.logger.Warn("refresh token of other user on logout", "user_id", access.Subject)
		default:
			ids = append(ids, claims.TokenID)
		}
	}

	if err := s.tokens.Revoke(ctx, ids...); err != nil {
		return fmt.Errorf("can't logout. Err: %w", err)
	}

	return nil
}
