package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidEmail indicates the supplied email failed normalisation or format checks.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidPassword indicates the supplied password failed length checks.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrInvalidStaffName indicates the supplied display name is empty or too long.
	ErrInvalidStaffName = errors.New("invalid staff name")
	// ErrAuthenticationFailed is returned for unknown emails and wrong passwords alike.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrAccountLocked indicates the account is locked and rejects every login attempt.
	ErrAccountLocked = errors.New("account locked")
	// ErrStaffNotFound indicates the referenced staff member does not exist.
	ErrStaffNotFound = errors.New("staff not found")
	// ErrDuplicateEmail indicates another staff member already holds the email.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrOptimisticLockConflict indicates the record changed since the caller last read it.
	ErrOptimisticLockConflict = errors.New("staff record was modified by another request")
	// ErrSelfRoleChangeForbidden indicates an operator attempted to change their own role.
	ErrSelfRoleChangeForbidden = errors.New("operators cannot change their own role")
	// ErrLastAdminProtected indicates the change would leave the system without an admin.
	ErrLastAdminProtected = errors.New("at least one admin must remain")
	// ErrPasswordReused indicates the candidate matches one of the recent passwords.
	ErrPasswordReused = errors.New("password was used recently")
	// ErrPasswordPolicy indicates the candidate violates the staff password policy.
	ErrPasswordPolicy = errors.New("password does not meet policy")
	// ErrCurrentPasswordMismatch indicates re-verification of the current password failed.
	ErrCurrentPasswordMismatch = errors.New("current password is incorrect")
	// ErrPasswordConfirmationMismatch indicates the new password and its confirmation differ.
	ErrPasswordConfirmationMismatch = errors.New("password confirmation does not match")
	// ErrPasswordBreached indicates the candidate appears in a public breach corpus.
	ErrPasswordBreached = errors.New("password appears in a known data breach")
	// ErrBreachCheckUnavailable indicates the breach list could not be consulted under a strict policy.
	ErrBreachCheckUnavailable = errors.New("breach check unavailable")
	// ErrSessionNotFound indicates the session token does not map to a live session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates the session exceeded its idle or absolute lifetime.
	ErrSessionExpired = errors.New("session expired")
)

// ValidationError describes why a value object rejected its input.
type ValidationError struct {
	Kind   error
	Field  string
	Reason string
}

// Validation failure reasons shared by the value objects.
const (
	ReasonEmpty     = "empty"
	ReasonTooLong   = "too_long"
	ReasonTooShort  = "too_short"
	ReasonBadFormat = "bad_format"
)

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s %s", e.Kind, e.Field, strings.ReplaceAll(e.Reason, "_", " "))
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Kind
}

func newValidationError(kind error, field, reason string) error {
	return &ValidationError{Kind: kind, Field: field, Reason: reason}
}

// AccountLockedError carries the advisory retry delay returned to locked-out callers.
type AccountLockedError struct {
	RetryAfter time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("%s: retry after %d seconds", ErrAccountLocked, e.RetryAfterSeconds())
}

func (e *AccountLockedError) Unwrap() error {
	return ErrAccountLocked
}

// RetryAfterSeconds rounds the retry delay to whole seconds.
func (e *AccountLockedError) RetryAfterSeconds() int {
	if e == nil {
		return 0
	}
	return int(e.RetryAfter / time.Second)
}

// PasswordPolicyViolation names one failed password rule.
type PasswordPolicyViolation struct {
	Code    string
	Message string
}

// PasswordPolicyError aggregates every rule the candidate password failed.
type PasswordPolicyError struct {
	Violations []PasswordPolicyViolation
}

func (e *PasswordPolicyError) Error() string {
	if e == nil || len(e.Violations) == 0 {
		return ErrPasswordPolicy.Error()
	}
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Message)
	}
	return fmt.Sprintf("%s: %s", ErrPasswordPolicy, strings.Join(msgs, "; "))
}

func (e *PasswordPolicyError) Unwrap() error {
	return ErrPasswordPolicy
}

// SessionRejectedError reports a token whose session was removed for a known reason.
// Timeouts unwrap to ErrSessionExpired, every other reason to ErrSessionNotFound.
type SessionRejectedError struct {
	Reason SessionTerminationReason
}

func (e *SessionRejectedError) Error() string {
	return "session rejected: " + string(e.Reason)
}

func (e *SessionRejectedError) Unwrap() error {
	if e.Reason.IsTimeout() {
		return ErrSessionExpired
	}
	return ErrSessionNotFound
}
