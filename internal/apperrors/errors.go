package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid login attempt")

	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")

	ErrHashing           = errors.New("password hashing failed")
	ErrInvalidHashFormat = errors.New("invalid password hash format")

	ErrSigning          = errors.New("token signing failed")
	ErrInvalidSignature = errors.New("token signature is invalid")
	ErrTokenExpired     = errors.New("token is expired")
	ErrTokenNotYetValid = errors.New("token is not valid yet")
	ErrMalformedClaims  = errors.New("token claims are malformed")
	ErrTokenRevoked     = errors.New("token is revoked")
)
