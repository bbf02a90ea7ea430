package user

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/tokenauth/internal/apperrors"
	"github.com/nkiryanov/tokenauth/internal/logger"
	"github.com/nkiryanov/tokenauth/internal/models"
	"github.com/nkiryanov/tokenauth/internal/repository/redis"
	"github.com/nkiryanov/tokenauth/internal/repository/sqlite"
	"github.com/nkiryanov/tokenauth/internal/service/auth"
	"github.com/nkiryanov/tokenauth/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/tokenauth/internal/testutil"
)

var testHasher = auth.Argon2Hasher{Time: 1, Memory: 64, Threads: 1}

// Repo which fails on every call
type brokenRepo struct{}

func (brokenRepo) CreateUser(context.Context, string, string, string) (models.User, error) {
	return models.User{}, errors.New("db is down")
}

func (brokenRepo) GetUserByID(context.Context, uuid.UUID) (models.User, error) {
	return models.User{}, errors.New("db is down")
}

func (brokenRepo) GetUserByEmail(context.Context, string) (models.User, error) {
	return models.User{}, errors.New("db is down")
}

type env struct {
	service *UserService
	repo    *sqlite.UserRepo
	tokens  *tokenmanager.TokenManager
	redis   *miniredis.Miniredis
}

func newEnv(t *testing.T, cfg Config) env {
	t.Helper()

	repo := sqlite.NewUserRepo(testutil.OpenSQLite(t))
	mr, client := testutil.NewMiniRedis(t)

	tokens, err := tokenmanager.New(tokenmanager.Config{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
	}, redis.NewRevocationStore(client), logger.NewNoOpLogger())
	require.NoError(t, err)

	s, err := NewService(cfg, testHasher, repo, tokens, logger.NewNoOpLogger())
	require.NoError(t, err)

	return env{service: s, repo: repo, tokens: tokens, redis: mr}
}

var alice = RegisterParams{Name: "Alice", Email: "alice@example.com", Password: "password123"}

func TestUser(t *testing.T) {
	t.Parallel()

	t.Run("NewService", func(t *testing.T) {
		_, err := NewService(Config{}, nil, nil, nil, nil)
		require.Error(t, err, "repo and token manager are required")
	})

	t.Run("Register", func(t *testing.T) {
		t.Run("register ok", func(t *testing.T) {
			e := newEnv(t, Config{})

			user, err := e.service.Register(t.Context(), alice)

			require.NoError(t, err, "registering new user should be ok")
			require.NotEqual(t, uuid.Nil, user.ID, "user ID should not be empty")
			require.Equal(t, "Alice", user.Name)
			require.Equal(t, "alice@example.com", user.Email)
			require.Empty(t, user.HashedPassword, "password hash must not leave the service")
			require.NotZero(t, user.CreatedAt, "created at should be set")

			stored, err := e.repo.GetUserByID(t.Context(), user.ID)
			require.NoError(t, err)
			require.NotEqual(t, "password123", stored.HashedPassword, "password should be hashed")
			ok, err := testHasher.Verify(stored.HashedPassword, "password123")
			require.NoError(t, err)
			require.True(t, ok, "stored hash should match password")
		})

		t.Run("duplicate email fail", func(t *testing.T) {
			e := newEnv(t, Config{})
			_, err := e.service.Register(t.Context(), alice)
			require.NoError(t, err, "first registration should succeed")

			_, err = e.service.Register(t.Context(), RegisterParams{Name: "Other", Email: alice.Email, Password: "different"})

			require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
		})

		t.Run("hashing failure", func(t *testing.T) {
			e := newEnv(t, Config{})
			e.service.hasher = auth.Argon2Hasher{Memory: 1, Threads: 8}

			_, err := e.service.Register(t.Context(), alice)

			require.ErrorIs(t, err, apperrors.ErrHashing)
			_, err = e.repo.GetUserByEmail(t.Context(), alice.Email)
			require.ErrorIs(t, err, apperrors.ErrUserNotFound, "user should not be created")
		})

		t.Run("directory failure", func(t *testing.T) {
			e := newEnv(t, Config{})
			e.service.userRepo = brokenRepo{}

			_, err := e.service.Register(t.Context(), alice)

			require.Error(t, err)
			require.NotErrorIs(t, err, apperrors.ErrUserAlreadyExists)
		})
	})

	t.Run("Login", func(t *testing.T) {
		t.Run("login ok", func(t *testing.T) {
			e := newEnv(t, Config{})
			registered, err := e.service.Register(t.Context(), alice)
			require.NoError(t, err)

			got, err := e.service.Login(t.Context(), models.Credentials{Email: alice.Email, Password: alice.Password})

			require.NoError(t, err)
			assert.Equal(t, registered, got.User)
			assert.Empty(t, got.User.HashedPassword)

			access, err := e.tokens.Verify(got.Tokens.Access.Value, models.TokenRoleAccess)
			require.NoError(t, err, "access token should verify")
			assert.Equal(t, registered.ID, access.Subject)

			refresh, err := e.tokens.Verify(got.Tokens.Refresh.Value, models.TokenRoleRefresh)
			require.NoError(t, err, "refresh token should verify")
			assert.Equal(t, registered.ID, refresh.Subject)

			assert.True(t, e.redis.Exists(access.TokenID.String()), "access token should be registered")
			assert.True(t, e.redis.Exists(refresh.TokenID.String()), "refresh token should be registered")
		})

		t.Run("unknown email", func(t *testing.T) {
			e := newEnv(t, Config{})

			_, err := e.service.Login(t.Context(), models.Credentials{Email: "nobody@example.com", Password: "x"})

			require.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})

		t.Run("unknown email hidden", func(t *testing.T) {
			e := newEnv(t, Config{HideUserExistence: true})

			_, err := e.service.Login(t.Context(), models.Credentials{Email: "nobody@example.com", Password: "x"})

			require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
			require.NotErrorIs(t, err, apperrors.ErrUserNotFound)
		})

		t.Run("wrong password", func(t *testing.T) {
			e := newEnv(t, Config{})
			_, err := e.service.Register(t.Context(), alice)
			require.NoError(t, err)

			_, err = e.service.Login(t.Context(), models.Credentials{Email: alice.Email, Password: "wrong"})

			require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
			assert.Empty(t, e.redis.Keys(), "no tokens should be issued")
		})

		t.Run("malformed stored hash", func(t *testing.T) {
			e := newEnv(t, Config{})
			_, err := e.repo.CreateUser(t.Context(), "Legacy", "legacy@example.com", "plain-text")
			require.NoError(t, err)

			_, err = e.service.Login(t.Context(), models.Credentials{Email: "legacy@example.com", Password: "plain-text"})

			require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
			require.ErrorIs(t, err, apperrors.ErrInvalidHashFormat)
		})
	})

	t.Run("GetUserByID", func(t *testing.T) {
		e := newEnv(t, Config{})
		registered, err := e.service.Register(t.Context(), alice)
		require.NoError(t, err)

		got, err := e.service.GetUserByID(t.Context(), registered.ID)
		require.NoError(t, err)
		assert.Equal(t, registered, got)

		_, err = e.service.GetUserByID(t.Context(), uuid.New())
		require.ErrorIs(t, err, apperrors.ErrUserNotFound)
	})

	t.Run("Logout", func(t *testing.T) {
		login := func(t *testing.T, e env) (models.AuthenticatedUser, models.TokenClaims) {
			_, err := e.service.Register(t.Context(), alice)
			require.NoError(t, err)
			au, err := e.service.Login(t.Context(), models.Credentials{Email: alice.Email, Password: alice.Password})
			require.NoError(t, err)
			claims, err := e.tokens.Verify(au.Tokens.Access.Value, models.TokenRoleAccess)
			require.NoError(t, err)
			return au, claims
		}

		t.Run("revoke both tokens", func(t *testing.T) {
			e := newEnv(t, Config{})
			au, claims := login(t, e)

			err := e.service.Logout(t.Context(), claims, au.Tokens.Refresh.Value)

			require.NoError(t, err)
			assert.False(t, e.redis.Exists(au.Tokens.Access.TokenID.String()))
			assert.False(t, e.redis.Exists(au.Tokens.Refresh.TokenID.String()))
		})

		t.Run("access token only", func(t *testing.T) {
			e := newEnv(t, Config{})
			au, claims := login(t, e)

			err := e.service.Logout(t.Context(), claims, "")

			require.NoError(t, err)
			assert.False(t, e.redis.Exists(au.Tokens.Access.TokenID.String()))
			assert.True(t, e.redis.Exists(au.Tokens.Refresh.TokenID.String()))
		})

		t.Run("invalid refresh token is ignored", func(t *testing.T) {
			e := newEnv(t, Config{})
			au, claims := login(t, e)

			err := e.service.Logout(t.Context(), claims, au.Tokens.Access.Value)

			require.NoError(t, err, "access token passed as refresh is ignored")
			assert.False(t, e.redis.Exists(au.Tokens.Access.TokenID.String()))
			assert.True(t, e.redis.Exists(au.Tokens.Refresh.TokenID.String()))
		})

		t.Run("refresh token of other user is ignored", func(t *testing.T) {
			e := newEnv(t, Config{})
			au, claims := login(t, e)
			foreign, err := e.tokens.IssuePair(t.Context(), uuid.New())
			require.NoError(t, err)

			err = e.service.Logout(t.Context(), claims, foreign.Refresh.Value)

			require.NoError(t, err)
			assert.False(t, e.redis.Exists(au.Tokens.Access.TokenID.String()))
			assert.True(t, e.redis.Exists(foreign.Refresh.TokenID.String()), "foreign token must stay active")
		})
	})
}
