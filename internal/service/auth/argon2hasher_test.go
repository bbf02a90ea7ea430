package auth

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/tokenauth/internal/apperrors"
)

// Cheap parameters, tests don't need production strength
var testHasher = Argon2Hasher{Time: 1, Memory: 64, Threads: 1}

func Test_Argon2Hasher(t *testing.T) {
	t.Parallel()

	h := testHasher

	t.Run("hash password", func(t *testing.T) {
		got, err := h.Hash("password")
		require.NoError(t, err)

		require.True(t, strings.HasPrefix(got, "$argon2id$v=19$m=64,t=1,p=1$"), "hash should be PHC string with parameters. Got: %s", got)
		require.Len(t, strings.Split(got, "$"), 6)
	})

	t.Run("default parameters", func(t *testing.T) {
		got, err := DefaultHasher.Hash("password")
		require.NoError(t, err)

		require.True(t, strings.HasPrefix(got, "$argon2id$v=19$m=65536,t=1,p=4$"), "default parameters should be used. Got: %s", got)
	})

	t.Run("same password different hashes", func(t *testing.T) {
		first, err := h.Hash("password")
		require.NoError(t, err)
		second, err := h.Hash("password")
		require.NoError(t, err)

		require.NotEqual(t, first, second, "salt has to be random per hash")
	})

	t.Run("verify password ok", func(t *testing.T) {
		hash, err := h.Hash("password")
		require.NoError(t, err)

		ok, err := h.Verify(hash, "password")

		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("verify with other parameters ok", func(t *testing.T) {
		hash, err := Argon2Hasher{Time: 2, Memory: 128, Threads: 2, KeyLen: 16, SaltLen: 8}.Hash("password")
		require.NoError(t, err)

		ok, err := h.Verify(hash, "password")

		require.NoError(t, err)
		require.True(t, ok, "parameters are taken from stored hash")
	})

	t.Run("fail verify if wrong password", func(t *testing.T) {
		hash, err := h.Hash("password")
		require.NoError(t, err)

		ok, err := h.Verify(hash, "wrong")

		require.NoError(t, err, "mismatch is not an error")
		require.False(t, ok)
	})

	t.Run("empty password", func(t *testing.T) {
		hash, err := h.Hash("")
		require.NoError(t, err)

		ok, err := h.Verify(hash, "")
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = h.Verify(hash, "x")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("invalid parameters", func(t *testing.T) {
		_, err := Argon2Hasher{Memory: 1, Threads: 4}.Hash("password")

		require.ErrorIs(t, err, apperrors.ErrHashing)
	})

	t.Run("malformed hash", func(t *testing.T) {
		tests := []struct {
			name string
			hash string
		}{
			{"empty", ""},
			{"bcrypt", "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"},
			{"wrong version", "$argon2id$v=16$m=64,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5"},
			{"no params", "$argon2id$v=19$$c2FsdHNhbHQ$a2V5a2V5"},
			{"zero threads", "$argon2id$v=19$m=64,t=1,p=0$c2FsdHNhbHQ$a2V5a2V5"},
			{"broken salt", "$argon2id$v=19$m=64,t=1,p=1$!!!$a2V5a2V5"},
			{"empty key", "$argon2id$v=19$m=64,t=1,p=1$c2FsdHNhbHQ$"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				ok, err := h.Verify(tt.hash, "password")

				require.ErrorIs(t, err, apperrors.ErrInvalidHashFormat)
				require.False(t, ok)
			})
		}
	})

	t.Run("non canonical segments", func(t *testing.T) {
		valid, err := h.Hash("password")
		require.NoError(t, err)
		ok, err := h.Verify(valid, "password")
		require.NoError(t, err)
		require.True(t, ok, "untouched hash should verify")

		// "", "argon2id", version, params, salt, key
		parts := strings.Split(valid, "$")
		withSegment := func(i int, value string) string {
			changed := slices.Clone(parts)
			changed[i] = value
			return strings.Join(changed, "$")
		}
		lastCharBump := func(s string) string {
			// Next char shares the high bits, so only unused trailing bits differ
			b := []byte(s)
			b[len(b)-1]++
			return string(b)
		}

		tests := []struct {
			name string
			hash string
		}{
			{"junk after version", withSegment(2, parts[2]+"junk")},
			{"signed version", withSegment(2, "v=+19")},
			{"junk after params", withSegment(3, parts[3]+"junk")},
			{"junk after params separator", withSegment(3, parts[3]+",x=1")},
			{"leading zero in params", withSegment(3, strings.Replace(parts[3], "t=", "t=0", 1))},
			{"trailing bits in salt", withSegment(4, lastCharBump(parts[4]))},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				ok, err := h.Verify(tt.hash, "password")

				require.ErrorIs(t, err, apperrors.ErrInvalidHashFormat, "hash: %s", tt.hash)
				require.False(t, ok)
			})
		}
	})
}
