package domain

import (
	"errors"
	"testing"
	"time"
)

func newTestStaff(t *testing.T, isAdmin bool) *Staff {
	t.Helper()
	email, err := NewEmail("alice@example.com")
	if err != nil {
		t.Fatalf("email: %v", err)
	}
	name, err := NewStaffName("Alice")
	if err != nil {
		t.Fatalf("name: %v", err)
	}
	pw, err := NewPasswordFromPlainText("Correct#Horse9", plainHasher{})
	if err != nil {
		t.Fatalf("password: %v", err)
	}
	return NewStaff("01HZX3Q6J9W8K7M5N4P3R2S1T0", email, name, pw, isAdmin, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
}

func TestNewStaffStartsUnlocked(t *testing.T) {
	staff := newTestStaff(t, false)
	if staff.IsLocked() || staff.FailedLoginAttempts() != 0 || staff.LockedAt() != nil {
		t.Fatalf("new staff must start unlocked with zero attempts")
	}
	if staff.Role() != RoleStaff {
		t.Fatalf("expected staff role, got %s", staff.Role())
	}
}

func TestRecordFailedLoginLocksOnFifthFailure(t *testing.T) {
	staff := newTestStaff(t, true)
	now := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)

	for i := 1; i < MaxFailedLoginAttempts; i++ {
		if locked := staff.RecordFailedLogin(now); locked {
			t.Fatalf("attempt %d should not lock", i)
		}
		if staff.FailedLoginAttempts() != i {
			t.Fatalf("expected %d attempts, got %d", i, staff.FailedLoginAttempts())
		}
	}
	if err := staff.EnsureCanAuthenticate(); err != nil {
		t.Fatalf("four failures must not lock: %v", err)
	}

	if locked := staff.RecordFailedLogin(now); !locked {
		t.Fatalf("fifth failure must lock")
	}
	if !staff.IsLocked() || staff.LockedAt() == nil || !staff.LockedAt().Equal(now) {
		t.Fatalf("expected locked state with lockedAt=%v", now)
	}

	err := staff.EnsureCanAuthenticate()
	var lockedErr *AccountLockedError
	if !errors.As(err, &lockedErr) || lockedErr.RetryAfterSeconds() != 1800 {
		t.Fatalf("expected AccountLockedError with 1800s, got %v", err)
	}
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked sentinel")
	}

	if staff.RecordFailedLogin(now.Add(time.Minute)) {
		t.Fatalf("locked accounts must not re-lock")
	}
	if staff.FailedLoginAttempts() != MaxFailedLoginAttempts {
		t.Fatalf("counter must not move while locked")
	}
}

func TestResetAndUnlock(t *testing.T) {
	staff := newTestStaff(t, false)
	now := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)

	if staff.ResetFailedAttempts(now) {
		t.Fatalf("reset with zero attempts should be a no-op")
	}
	staff.RecordFailedLogin(now)
	staff.RecordFailedLogin(now)
	if !staff.ResetFailedAttempts(now) || staff.FailedLoginAttempts() != 0 {
		t.Fatalf("expected reset to zero")
	}

	for i := 0; i < MaxFailedLoginAttempts; i++ {
		staff.RecordFailedLogin(now)
	}
	staff.Unlock(now.Add(time.Hour))
	if staff.IsLocked() || staff.LockedAt() != nil || staff.FailedLoginAttempts() != 0 {
		t.Fatalf("unlock must clear lock state and counter")
	}
}

func TestReconstructStaffRoundTrip(t *testing.T) {
	lockedAt := time.Date(2024, 1, 5, 8, 30, 15, 0, time.UTC)
	snap := StaffSnapshot{
		ID:                  "01HZX3Q6J9W8K7M5N4P3R2S1T0",
		Email:               "bob@example.com",
		PasswordHash:        "h:secret",
		Name:                "Bob",
		IsAdmin:             true,
		IsLocked:            true,
		FailedLoginAttempts: 5,
		LockedAt:            &lockedAt,
		CreatedAt:           time.Date(2023, 12, 1, 7, 0, 0, 0, time.UTC),
		UpdatedAt:           time.Date(2024, 1, 5, 8, 30, 15, 0, time.UTC),
	}

	staff := ReconstructStaff(snap)
	if staff.ID() != snap.ID || staff.Email().String() != snap.Email || staff.Name().String() != snap.Name {
		t.Fatalf("identity fields differ after reconstruct")
	}
	if staff.IsAdmin() != snap.IsAdmin || staff.IsLocked() != snap.IsLocked || staff.FailedLoginAttempts() != snap.FailedLoginAttempts {
		t.Fatalf("state fields differ after reconstruct")
	}
	if !staff.LockedAt().Equal(lockedAt) || !staff.CreatedAt().Equal(snap.CreatedAt) || !staff.UpdatedAt().Equal(snap.UpdatedAt) {
		t.Fatalf("timestamps differ after reconstruct")
	}

	back := staff.Snapshot()
	if back.PasswordHash != snap.PasswordHash || back.LockedAt == nil || !back.LockedAt.Equal(lockedAt) {
		t.Fatalf("snapshot lost data: %+v", back)
	}
	lockedAt = lockedAt.Add(time.Hour)
	if staff.LockedAt().Equal(lockedAt) {
		t.Fatalf("reconstruct must copy the lock timestamp")
	}
}

func TestMatchesObservedVersionIgnoresSubSecondDrift(t *testing.T) {
	staff := ReconstructStaff(StaffSnapshot{
		ID:        "01HZX3Q6J9W8K7M5N4P3R2S1T0",
		UpdatedAt: time.Date(2024, 2, 1, 12, 0, 0, 750_000_000, time.UTC),
	})
	if !staff.MatchesObservedVersion(time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("sub-second drift should match")
	}
	if staff.MatchesObservedVersion(time.Date(2024, 2, 1, 12, 0, 1, 0, time.UTC)) {
		t.Fatalf("different second must not match")
	}
	tokyo := time.FixedZone("JST", 9*3600)
	if !staff.MatchesObservedVersion(time.Date(2024, 2, 1, 21, 0, 0, 0, tokyo)) {
		t.Fatalf("comparison must be zone independent")
	}
}

func TestDiffStaffOmitsPassword(t *testing.T) {
	before := StaffSnapshot{Name: "Alice", Email: "a@example.com", PasswordHash: "x", IsAdmin: true}
	after := StaffSnapshot{Name: "Alicia", Email: "a@example.com", PasswordHash: "y", IsAdmin: false}

	changes := DiffStaff(before, after)
	if len(changes) != 2 {
		t.Fatalf("expected name and role changes, got %+v", changes)
	}
	if changes[0].Field != "name" || changes[1].Field != "role" || changes[1].Before != "admin" || changes[1].After != "staff" {
		t.Fatalf("unexpected diff %+v", changes)
	}
}
