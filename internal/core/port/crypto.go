package port

import (
	"context"

	"github.com/arklim/library-staff-auth/internal/core/domain"
)

// PasswordHasher hashes and verifies secrets using the configured algorithm.
type PasswordHasher = domain.PasswordHasher

// PasswordPolicyValidator enforces password strength requirements.
// Violations are reported as *domain.PasswordPolicyError.
type PasswordPolicyValidator interface {
	Validate(password string, userInputs ...string) error
}

// PasswordGenerator produces random temporary passwords.
type PasswordGenerator interface {
	Generate(length int) (string, error)
}

// BreachChecker reports whether a password appears in a public breach corpus.
type BreachChecker interface {
	IsBreached(ctx context.Context, password string) (bool, error)
}

// IDGenerator issues sortable unique identifiers.
type IDGenerator interface {
	NewID() string
}

// SessionTokenIssuer mints client session tokens and maps them to stored session IDs.
type SessionTokenIssuer interface {
	Issue() (token string, sessionID string, err error)
	SessionID(token string) string
}
