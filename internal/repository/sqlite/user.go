package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	driver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/nkiryanov/tokenauth/internal/apperrors"
	"github.com/nkiryanov/tokenauth/internal/models"
)

// User repository on top of sqlite
// Timestamps are stored as unix microseconds
type UserRepo struct {
	DB *sqlx.DB

	// Defaults to time.Now
	Now func() time.Time
}

func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{DB: db, Now: time.Now}
}

type userRow struct {
	ID           uuid.UUID `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    int64     `db:"created_at"`
	UpdatedAt    int64     `db:"updated_at"`
}

func (r userRow) toModel() models.User {
	return models.User{
		ID:             r.ID,
		Name:           r.Name,
		Email:          r.Email,
		HashedPassword: r.PasswordHash,
		CreatedAt:      time.UnixMicro(r.CreatedAt).UTC(),
		UpdatedAt:      time.UnixMicro(r.UpdatedAt).UTC(),
	}
}

const createUser = `
INSERT INTO users (id, name, email, password_hash, created_at, updated_at)
VALUES (:id, :name, :email, :password_hash, :created_at, :updated_at)
`

func (r *UserRepo) CreateUser(ctx context.Context, name string, email string, hashedPassword string) (models.User, error) {
	now := r.now().UnixMicro()
	row := userRow{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: hashedPassword,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := r.DB.NamedExecContext(ctx, createUser, row)
	if err != nil {
		var sqliteErr *driver.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return models.User{}, apperrors.ErrUserAlreadyExists
		}

		return models.User{}, fmt.Errorf("db error: %w", err)
	}

	return row.toModel(), nil
}

const getUserByID = `
SELECT id, name, email, password_hash, created_at, updated_at FROM users
WHERE id = ?
`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	return r.getUser(ctx, getUserByID, id)
}

const getUserByEmail = `
SELECT id, name, email, password_hash, created_at, updated_at FROM users
WHERE email = ?
`

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return r.getUser(ctx, getUserByEmail, email)
}

func (r *UserRepo) getUser(ctx context.Context, query string, arg any) (models.User, error) {
	var row userRow
	err := r.DB.GetContext(ctx, &row, query, arg)

	switch {
	case err == nil:
		return row.toModel(), nil
	case errors.Is(err, sql.ErrNoRows):
		return models.User{}, apperrors.ErrUserNotFound
	default:
		return models.User{}, fmt.Errorf("db error: %w", err)
	}
}

func (r *UserRepo) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}
