package domain

import "time"

// Role names the two staff roles.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// RoleFromAdminFlag maps the persisted boolean onto a Role.
func RoleFromAdminFlag(isAdmin bool) Role {
	if isAdmin {
		return RoleAdmin
	}
	return RoleStaff
}

const (
	// MaxFailedLoginAttempts is the failure count that locks an account.
	MaxFailedLoginAttempts = 5
	// LockoutRetryAfter is the advisory delay returned to locked callers. It does not unlock.
	LockoutRetryAfter = 1800 * time.Second
)

// StaffSnapshot is the flat persisted form of a Staff aggregate.
type StaffSnapshot struct {
	ID                  string
	Email               string
	PasswordHash        string
	Name                string
	IsAdmin             bool
	IsLocked            bool
	FailedLoginAttempts int
	LockedAt            *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Staff is a library employee principal. State changes go through its methods.
type Staff struct {
	id                  string
	email               Email
	password            Password
	name                StaffName
	isAdmin             bool
	isLocked            bool
	failedLoginAttempts int
	lockedAt            *time.Time
	createdAt           time.Time
	updatedAt           time.Time
}

// NewStaff creates an unlocked account with no failed attempts.
func NewStaff(id string, email Email, name StaffName, password Password, isAdmin bool, now time.Time) *Staff {
	return &Staff{
		id:        id,
		email:     email,
		password:  password,
		name:      name,
		isAdmin:   isAdmin,
		createdAt: now,
		updatedAt: now,
	}
}

// ReconstructStaff rebuilds an aggregate from persisted fields without re-validating them.
func ReconstructStaff(s StaffSnapshot) *Staff {
	staff := &Staff{
		id:                  s.ID,
		email:               Email{value: s.Email},
		password:            PasswordFromHash(s.PasswordHash),
		name:                StaffName{value: s.Name},
		isAdmin:             s.IsAdmin,
		isLocked:            s.IsLocked,
		failedLoginAttempts: s.FailedLoginAttempts,
		createdAt:           s.CreatedAt,
		updatedAt:           s.UpdatedAt,
	}
	if s.LockedAt != nil {
		lockedAt := *s.LockedAt
		staff.lockedAt = &lockedAt
	}
	return staff
}

// Snapshot exports the aggregate for persistence.
func (s *Staff) Snapshot() StaffSnapshot {
	snap := StaffSnapshot{
		ID:                  s.id,
		Email:               s.email.String(),
		PasswordHash:        s.password.Hash(),
		Name:                s.name.String(),
		IsAdmin:             s.isAdmin,
		IsLocked:            s.isLocked,
		FailedLoginAttempts: s.failedLoginAttempts,
		CreatedAt:           s.createdAt,
		UpdatedAt:           s.updatedAt,
	}
	if s.lockedAt != nil {
		lockedAt := *s.lockedAt
		snap.LockedAt = &lockedAt
	}
	return snap
}

func (s *Staff) ID() string { return s.id }
func (s *Staff) Email() Email { return s.email }
func (s *Staff) Password() Password { return s.password }
func (s *Staff) Name() StaffName { return s.name }
func (s *Staff) IsAdmin() bool { return s.isAdmin }
func (s *Staff) Role() Role { return RoleFromAdminFlag(s.isAdmin) }
func (s *Staff) IsLocked() bool { return s.isLocked }
func (s *Staff) FailedLoginAttempts() int { return s.failedLoginAttempts }
func (s *Staff) CreatedAt() time.Time { return s.createdAt }
func (s *Staff) UpdatedAt() time.Time { return s.updatedAt }

// LockedAt returns a copy of the lock timestamp, nil while unlocked.
func (s *Staff) LockedAt() *time.Time {
	if s.lockedAt == nil {
		return nil
	}
	lockedAt := *s.lockedAt
	return &lockedAt
}

// EnsureCanAuthenticate rejects every attempt while the account is locked.
func (s *Staff) EnsureCanAuthenticate() error {
	if s.isLocked {
		return &AccountLockedError{RetryAfter: LockoutRetryAfter}
	}
	return nil
}

// RecordFailedLogin increments the counter and locks the account when the
// threshold is reached. It reports whether this call locked the account.
func (s *Staff) RecordFailedLogin(now time.Time) bool {
	if s.isLocked {
		return false
	}
	s.failedLoginAttempts++
	s.updatedAt = now
	if s.failedLoginAttempts >= MaxFailedLoginAttempts {
		s.Lock(now)
		return true
	}
	return false
}

// ResetFailedAttempts zeroes the counter. It reports whether anything changed.
func (s *Staff) ResetFailedAttempts(now time.Time) bool {
	if s.failedLoginAttempts == 0 {
		return false
	}
	s.failedLoginAttempts = 0
	s.updatedAt = now
	return true
}

// Lock moves the account into the locked state.
func (s *Staff) Lock(now time.Time) {
	if s.isLocked {
		return
	}
	lockedAt := now
	s.isLocked = true
	s.lockedAt = &lockedAt
	s.updatedAt = now
}

// Unlock clears the lock and the failure counter.
func (s *Staff) Unlock(now time.Time) {
	s.isLocked = false
	s.lockedAt = nil
	s.failedLoginAttempts = 0
	s.updatedAt = now
}

// Rename replaces the display name.
func (s *Staff) Rename(name StaffName, now time.Time) {
	s.name = name
	s.updatedAt = now
}

// ChangeEmail replaces the login email.
func (s *Staff) ChangeEmail(email Email, now time.Time) {
	s.email = email
	s.updatedAt = now
}

// SetAdmin changes the role flag.
func (s *Staff) SetAdmin(isAdmin bool, now time.Time) {
	s.isAdmin = isAdmin
	s.updatedAt = now
}

// ChangePassword replaces the active credential hash.
func (s *Staff) ChangePassword(password Password, now time.Time) {
	s.password = password
	s.updatedAt = now
}

// MatchesObservedVersion compares updatedAt with the caller's copy at second granularity.
func (s *Staff) MatchesObservedVersion(observed time.Time) bool {
	return s.updatedAt.UTC().Truncate(time.Second).Equal(observed.UTC().Truncate(time.Second))
}
