package models

import (
	"time"

	"github.com/google/uuid"
)

type TokenRole string

const (
	TokenRoleAccess  TokenRole = "access"
	TokenRoleRefresh TokenRole = "refresh"
)

// Verified token payload
type TokenClaims struct {
	Subject   uuid.UUID
	TokenID   uuid.UUID
	Role      TokenRole
	IssuedAt  time.Time
	NotBefore time.Time
	ExpiresAt time.Time
}

type IssuedToken struct {
	Value     string
	TokenID   uuid.UUID
	Subject   uuid.UUID
	ExpiresAt time.Time
}

// Token pair issued on login
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
