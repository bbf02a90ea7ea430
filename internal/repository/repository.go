package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nkiryanov/tokenauth/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user
	// If user with the email exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, name string, email string, hashedPassword string) (models.User, error)

	// Get user by it's id or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
}

// Revocation store: a token is active while its record exists
type RevocationStore interface {
	// Save record tokenID -> subject which expires after ttl
	Save(ctx context.Context, tokenID uuid.UUID, subject uuid.UUID, ttl time.Duration) error

	// Get subject the token was issued to
	// If record not found must return apperrors.ErrTokenRevoked
	Get(ctx context.Context, tokenID uuid.UUID) (uuid.UUID, error)

	// Delete records. Missing records are ignored
	Delete(ctx context.Context, tokenIDs ...uuid.UUID) error
}
