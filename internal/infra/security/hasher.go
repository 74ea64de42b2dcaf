package security

import (
	"fmt"
	"strings"

	"github.com/arklim/library-staff-auth/internal/core/port"
)

// Supported hashing algorithms.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// MultiHasher hashes with one algorithm and verifies hashes produced by any supported one,
// so switching algorithms does not invalidate existing credentials.
type MultiHasher struct {
	primary port.PasswordHasher
	bcrypt  *BcryptHasher
	argon2  *Argon2Hasher
}

// NewPasswordHasher builds a MultiHasher whose new hashes use algorithm.
func NewPasswordHasher(algorithm string, bcryptCost int, argon2Cfg Argon2Config) (*MultiHasher, error) {
	argon2Hasher, err := NewArgon2Hasher(argon2Cfg)
	if err != nil {
		return nil, err
	}
	h := &MultiHasher{
		bcrypt: NewBcryptHasher(bcryptCost),
		argon2: argon2Hasher,
	}

	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", AlgorithmBcrypt:
		h.primary = h.bcrypt
	case AlgorithmArgon2id:
		h.primary = h.argon2
	default:
		return nil, fmt.Errorf("unsupported password hash algorithm %q", algorithm)
	}
	return h, nil
}

// Hash delegates to the primary algorithm.
func (h *MultiHasher) Hash(password string) (string, error) {
	return h.primary.Hash(password)
}

// Verify picks the algorithm from the hash prefix.
func (h *MultiHasher) Verify(password, encoded string) (bool, error) {
	switch {
	case strings.HasPrefix(encoded, argon2Variant+"$"):
		return h.argon2.Verify(password, encoded)
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		return h.bcrypt.Verify(password, encoded)
	default:
		return false, errInvalidHashFormat
	}
}

var _ port.PasswordHasher = (*MultiHasher)(nil)
