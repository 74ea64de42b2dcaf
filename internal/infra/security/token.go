package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// SessionTokenBytes is the entropy of a session token.
const SessionTokenBytes = 32

// GenerateSecureToken returns a base64 URL-safe random string using the specified number of random bytes.
func GenerateSecureToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken calculates a SHA-256 hash of the provided value.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// SessionTokens issues session tokens and derives their storage identifiers.
type SessionTokens struct{}

// NewSessionTokens returns the default session token source.
func NewSessionTokens() SessionTokens {
	return SessionTokens{}
}

// Issue returns a fresh client token and the session ID under which it is stored.
func (SessionTokens) Issue() (token string, sessionID string, err error) {
	token, err = GenerateSecureToken(SessionTokenBytes)
	if err != nil {
		return "", "", err
	}
	return token, HashToken(token), nil
}

// SessionID derives the storage identifier of a client token.
func (SessionTokens) SessionID(token string) string {
	return HashToken(token)
}
