package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/nkiryanov/tokenauth/internal/apperrors"
)

const (
	DefaultArgon2Time    uint32 = 1
	DefaultArgon2Memory  uint32 = 64 * 1024 // KiB
	DefaultArgon2Threads uint8  = 4
	DefaultArgon2KeyLen  uint32 = 32
	DefaultArgon2SaltLen uint32 = 16
)

// Interface to create or verify user password hashes
type PasswordHasher interface {
	// Generate hash from password
	Hash(password string) (string, error)

	// Verify user provided password against known hash
	// Must be protected against timing attacks
	Verify(hashedPassword string, password string) (bool, error)
}

// Argon2id password hasher
// Produces PHC strings: $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
// Zero fields are replaced with defaults
type Argon2Hasher struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

var DefaultHasher = Argon2Hasher{}

func (h Argon2Hasher) withDefaults() Argon2Hasher {
	if h.Time == 0 {
		h.Time = DefaultArgon2Time
	}
	if h.Memory == 0 {
		h.Memory = DefaultArgon2Memory
	}
	if h.Threads == 0 {
		h.Threads = DefaultArgon2Threads
	}
	if h.KeyLen == 0 {
		h.KeyLen = DefaultArgon2KeyLen
	}
	if h.SaltLen == 0 {
		h.SaltLen = DefaultArgon2SaltLen
	}
	return h
}

func (h Argon2Hasher) Hash(password string) (string, error) {
	h = h.withDefaults()

	// argon2 panics on memory lower than 8*threads
	if h.Memory < 8*uint32(h.Threads) {
		return "", fmt.Errorf("%w: memory must be at least %d KiB", apperrors.ErrHashing, 8*uint32(h.Threads))
	}

	salt := make([]byte, h.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("%w: can't generate salt: %w", apperrors.ErrHashing, err)
	}

	key := argon2.IDKey([]byte(password), salt, h.Time, h.Memory, h.Threads, h.KeyLen)

	return fmt.Sprintf(
		"$argon2id$%s$%s$%s$%s",
		versionSegment(argon2.Version),
		h.paramsSegment(),
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	), nil
}

// Salt and key encoding. Strict: one hash has exactly one valid string form
var b64 = base64.RawStdEncoding.Strict()

func versionSegment(version int) string {
	return fmt.Sprintf("v=%d", version)
}

func (h Argon2Hasher) paramsSegment() string {
	return fmt.Sprintf("m=%d,t=%d,p=%d", h.Memory, h.Time, h.Threads)
}

func (h Argon2Hasher) Verify(hashedPassword string, password string) (bool, error) {
	p, salt, key, err := decodeArgon2Hash(hashedPassword)
	if err != nil {
		return false, err
	}

	other := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, uint32(len(key)))

	return subtle.ConstantTimeCompare(key, other) == 1, nil
}

func decodeArgon2Hash(encoded string) (p Argon2Hasher, salt []byte, key []byte, err error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, nil, nil, apperrors.ErrInvalidHashFormat
	}

	// Sscanf stops at the last verb and ignores the rest of input,
	// so segments are accepted only when they read back exactly as written
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || versionSegment(version) != parts[2] || version != argon2.Version {
		return p, nil, nil, apperrors.ErrInvalidHashFormat
	}

	_, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads)
	if err != nil || p.paramsSegment() != parts[3] {
		return p, nil, nil, apperrors.ErrInvalidHashFormat
	}
	if p.Time == 0 || p.Threads == 0 || p.Memory < 8*uint32(p.Threads) {
		return p, nil, nil, apperrors.ErrInvalidHashFormat
	}

	salt, err = b64.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, apperrors.ErrInvalidHashFormat
	}

	key, err = b64.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, apperrors.ErrInvalidHashFormat
	}

	return p, salt, key, nil
}
