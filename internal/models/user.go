package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Copy of the user safe to hand out of the service layer
func (u User) WithoutPassword() User {
	u.HashedPassword = ""
	return u
}

// Login credentials. Transient: never stored or logged
type Credentials struct {
	Email    string
	Password string
}

// User with freshly issued tokens, result of successful login
type AuthenticatedUser struct {
	User   User
	Tokens TokenPair
}
