package domain

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	// MaxEmailLength bounds the stored email column.
	MaxEmailLength = 255
	// MinPasswordLength is the construction-time floor; the change policy is stricter.
	MinPasswordLength = 8
	// MaxPasswordBytes matches the bcrypt input limit.
	MaxPasswordBytes = 72
	// MaxStaffNameLength bounds display names in characters.
	MaxStaffNameLength = 100
)

// PasswordHasher is the one-way hashing primitive behind Password.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
}

// Email is a trimmed, lower-cased, RFC-shaped address.
type Email struct {
	value string
}

// NewEmail normalises and validates raw input.
func NewEmail(raw string) (Email, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return Email{}, newValidationError(ErrInvalidEmail, "email", ReasonEmpty)
	}
	if len(normalized) > MaxEmailLength {
		return Email{}, newValidationError(ErrInvalidEmail, "email", ReasonTooLong)
	}
	addr, err := mail.ParseAddress(normalized)
	if err != nil || addr.Address != normalized || addr.Name != "" {
		return Email{}, newValidationError(ErrInvalidEmail, "email", ReasonBadFormat)
	}
	at := strings.LastIndexByte(normalized, '@')
	if at <= 0 || at == len(normalized)-1 {
		return Email{}, newValidationError(ErrInvalidEmail, "email", ReasonBadFormat)
	}
	return Email{value: normalized}, nil
}

// String returns the normalised address.
func (e Email) String() string { return e.value }

// Equal reports value equality.
func (e Email) Equal(other Email) bool { return e.value == other.value }

// IsZero reports whether the email was never constructed.
func (e Email) IsZero() bool { return e.value == "" }

// Password holds only the one-way hash of a staff credential.
type Password struct {
	hash string
}

// NewPasswordFromPlainText validates the raw password and hashes it.
// The plaintext is not retained.
func NewPasswordFromPlainText(raw string, hasher PasswordHasher) (Password, error) {
	if raw == "" {
		return Password{}, newValidationError(ErrInvalidPassword, "password", ReasonEmpty)
	}
	if utf8.RuneCountInString(raw) < MinPasswordLength {
		return Password{}, newValidationError(ErrInvalidPassword, "password", ReasonTooShort)
	}
	if len(raw) > MaxPasswordBytes {
		return Password{}, newValidationError(ErrInvalidPassword, "password", ReasonTooLong)
	}
	encoded, err := hasher.Hash(raw)
	if err != nil {
		return Password{}, err
	}
	return Password{hash: encoded}, nil
}

// PasswordFromHash wraps a hash loaded from storage.
func PasswordFromHash(hash string) Password {
	return Password{hash: hash}
}

// Hash returns the encoded hash.
func (p Password) Hash() string { return p.hash }

// Verify compares candidate against the stored hash. Hasher errors count as a mismatch.
func (p Password) Verify(candidate string, hasher PasswordHasher) bool {
	if p.hash == "" || candidate == "" {
		return false
	}
	ok, err := hasher.Verify(candidate, p.hash)
	return err == nil && ok
}

// Equal reports whether both values carry the same hash.
func (p Password) Equal(other Password) bool { return p.hash == other.hash }

// StaffName is a display name with control characters removed.
type StaffName struct {
	value string
}

// NewStaffName strips C0 and DEL control characters, trims, and bounds the length.
func NewStaffName(raw string) (StaffName, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, raw)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return StaffName{}, newValidationError(ErrInvalidStaffName, "name", ReasonEmpty)
	}
	if utf8.RuneCountInString(cleaned) > MaxStaffNameLength {
		return StaffName{}, newValidationError(ErrInvalidStaffName, "name", ReasonTooLong)
	}
	return StaffName{value: cleaned}, nil
}

func (n StaffName) String() string { return n.value }

// Equal reports value equality.
func (n StaffName) Equal(other StaffName) bool { return n.value == other.value }
