package security

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/arklim/library-staff-auth/internal/core/port"
)

const (
	upperAlphabet  = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	lowerAlphabet  = "abcdefghijkmnpqrstuvwxyz"
	digitAlphabet  = "23456789"
	symbolAlphabet = "!@#$%^&*()-_=+[]{}?"

	// DefaultTemporaryPasswordLength is used for admin-issued passwords.
	DefaultTemporaryPasswordLength = 16
)

// SecurePasswordGenerator issues temporary passwords from crypto/rand that always
// include every character class. Look-alike characters are excluded.
type SecurePasswordGenerator struct{}

// NewSecurePasswordGenerator returns a generator.
func NewSecurePasswordGenerator() *SecurePasswordGenerator {
	return &SecurePasswordGenerator{}
}

// Generate returns a password of the requested length.
func (g *SecurePasswordGenerator) Generate(length int) (string, error) {
	classes := []string{upperAlphabet, lowerAlphabet, digitAlphabet, symbolAlphabet}
	if length < len(classes) {
		return "", fmt.Errorf("password length must be at least %d", len(classes))
	}

	all := upperAlphabet + lowerAlphabet + digitAlphabet + symbolAlphabet
	out := make([]byte, 0, length)
	for _, class := range classes {
		c, err := randomChar(class)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	for len(out) < length {
		c, err := randomChar(all)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	// Fisher-Yates so the guaranteed characters are not always first.
	for i := len(out) - 1; i > 0; i-- {
		j, err := randomIndex(i + 1)
		if err != nil {
			return "", err
		}
		out[i], out[j] = out[j], out[i]
	}
	return string(out), nil
}

func randomChar(alphabet string) (byte, error) {
	idx, err := randomIndex(len(alphabet))
	if err != nil {
		return 0, err
	}
	return alphabet[idx], nil
}

func randomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("generate password: %w", err)
	}
	return int(v.Int64()), nil
}

var _ port.PasswordGenerator = (*SecurePasswordGenerator)(nil)
