package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/arklim/library-staff-auth/internal/core/domain"
	"github.com/arklim/library-staff-auth/internal/core/port"
	"github.com/arklim/library-staff-auth/internal/infra/security"
)

func changeInput(staffID, current, next string) PasswordChangeInput {
	return PasswordChangeInput{
		StaffID:         staffID,
		CurrentPassword: current,
		NewPassword:     next,
		Confirmation:    next,
	}
}

func TestPasswordHistoryWindowAfterSixChanges(t *testing.T) {
	f := newFixture()
	f.seedStaff("gus", "gus@example.com", "Initial-Pass-00", false)
	ctx := context.Background()

	current := "Initial-Pass-00"
	for i := 1; i <= 6; i++ {
		next := fmt.Sprintf("Change-Pass-%02d", i)
		f.clock.advance(time.Second)
		if _, err := f.change.ChangePassword(ctx, changeInput("gus", current, next)); err != nil {
			t.Fatalf("change #%d: %v", i, err)
		}
		current = next
	}

	for i := 2; i <= 6; i++ {
		reused := fmt.Sprintf("Change-Pass-%02d", i)
		_, err := f.change.ChangePassword(ctx, changeInput("gus", current, reused))
		if !errors.Is(err, domain.ErrPasswordReused) {
			t.Fatalf("password from change #%d: expected ErrPasswordReused, got %v", i, err)
		}
	}

	f.clock.advance(time.Second)
	if _, err := f.change.ChangePassword(ctx, changeInput("gus", current, "Change-Pass-01")); err != nil {
		t.Fatalf("password from change #1 is outside the window and must be accepted, got %v", err)
	}
}

func TestAddToHistoryPrunesToDepth(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		f.clock.advance(time.Second)
		if err := f.history.AddToHistory(ctx, "hana", fmt.Sprintf("h:pw-%d", i)); err != nil {
			t.Fatalf("AddToHistory returned error: %v", err)
		}
	}

	entries, _ := f.store.PasswordHistory().ListRecent(ctx, "hana", 100)
	if len(entries) != domain.PasswordHistoryDepth {
		t.Fatalf("expected %d entries retained, got %d", domain.PasswordHistoryDepth, len(entries))
	}
	if entries[0].PasswordHash != "h:pw-7" || entries[4].PasswordHash != "h:pw-3" {
		t.Fatalf("expected newest five retained, got %s..%s", entries[0].PasswordHash, entries[4].PasswordHash)
	}

	reused, err := f.history.IsReused(ctx, "hana", "pw-2")
	if err != nil || reused {
		t.Fatalf("pruned password must not count as reused, got %v, %v", reused, err)
	}
	reused, err = f.history.IsReused(ctx, "hana", "pw-5")
	if err != nil || !reused {
		t.Fatalf("retained password must count as reused, got %v, %v", reused, err)
	}
}

type pruneFailingHistory struct{ port.PasswordHistoryRepository }

func (pruneFailingHistory) Prune(context.Context, string, int) (int64, error) {
	return 0, errors.New("statement timeout")
}

type pruneFailingRepos struct{ port.Repositories }

func (r pruneFailingRepos) PasswordHistory() port.PasswordHistoryRepository {
	return pruneFailingHistory{r.Repositories.PasswordHistory()}
}

func TestAddToHistoryPruneFailureRollsBack(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	err := f.store.WithinTransaction(ctx, func(ctx context.Context, repos port.Repositories) error {
		return f.history.Within(pruneFailingRepos{repos}).AddToHistory(ctx, "hana", "h:pw-1")
	})
	if err == nil {
		t.Fatalf("expected prune failure to surface")
	}
	if f.store.Rollbacks() != 1 {
		t.Fatalf("expected the transaction to roll back, got %d rollbacks", f.store.Rollbacks())
	}
	if entries, _ := f.store.PasswordHistory().ListRecent(ctx, "hana", 10); len(entries) != 0 {
		t.Fatalf("inserted history must be discarded with the transaction, got %d entries", len(entries))
	}
}

func TestChangePasswordValidation(t *testing.T) {
	f := newFixture()
	f.seedStaff("ivan", "ivan@example.com", "Ivans-Password-1", false)
	ctx := context.Background()

	cases := []struct {
		name  string
		input PasswordChangeInput
		want  error
	}{
		{
			name:  "confirmation mismatch",
			input: PasswordChangeInput{StaffID: "ivan", CurrentPassword: "Ivans-Password-1", NewPassword: "Brand-New-Pass-1", Confirmation: "Brand-New-Pass-2"},
			want:  domain.ErrPasswordConfirmationMismatch,
		},
		{
			name:  "wrong current password",
			input: changeInput("ivan", "not-it", "Brand-New-Pass-1"),
			want:  domain.ErrCurrentPasswordMismatch,
		},
		{
			name:  "unknown staff",
			input: changeInput("ghost", "x", "Brand-New-Pass-1"),
			want:  domain.ErrStaffNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.change.ChangePassword(ctx, tc.input)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestChangePasswordRejectsPolicyViolation(t *testing.T) {
	f := newFixture()
	f.seedStaff("jo", "jo@example.com", "Jos-Password-11", false)
	policyErr := &domain.PasswordPolicyError{Violations: []domain.PasswordPolicyViolation{{Code: "min_length", Message: "too short"}}}
	f.change.policy = acceptAllPolicy{err: policyErr}

	_, err := f.change.ChangePassword(context.Background(), changeInput("jo", "Jos-Password-11", "short"))
	if !errors.Is(err, domain.ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
	if f.breach.calls != 0 {
		t.Fatalf("breach list must not be consulted for a policy violation")
	}
}

func TestChangePasswordAcceptsMinimalPolicyPasswordWithDefaultPolicy(t *testing.T) {
	f := newFixture()
	f.seedStaff("lena", "lena@library.example", "Lenas-Password-1", false)
	f.change.policy = security.NewPasswordPolicy(nil)

	if _, err := f.change.ChangePassword(context.Background(), changeInput("lena", "Lenas-Password-1", "Library2024!")); err != nil {
		t.Fatalf("expected a 12 character four-class password to be accepted, got %v", err)
	}

	_, err := f.change.ChangePassword(context.Background(), changeInput("lena", "Library2024!", "library2024!"))
	if !errors.Is(err, domain.ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy without an uppercase letter, got %v", err)
	}
}

func TestChangePasswordTerminatesOtherSessions(t *testing.T) {
	f := newFixture()
	f.seedStaff("kim", "kim@example.com", "Kims-Password-22", false)
	f.seedSession("laptop", "kim", time.Minute)
	f.seedSession("phone", "kim", 2*time.Minute)
	f.seedSession("current", "kim", 0)

	input := changeInput("kim", "Kims-Password-22", "Kims-New-Pass-33")
	input.CurrentSessionID = "current"
	result, err := f.change.ChangePassword(context.Background(), input)
	if err != nil {
		t.Fatalf("ChangePassword returned error: %v", err)
	}
	if result.SessionsTerminated != 2 {
		t.Fatalf("expected 2 sessions terminated, got %d", result.SessionsTerminated)
	}
	if ids := f.store.SessionIDs("kim"); len(ids) != 1 || ids[0] != "current" {
		t.Fatalf("expected only the current session, got %v", ids)
	}
	if f.terminations.reasons["phone"] != domain.SessionTerminatedOnChange {
		t.Fatalf("expected password_changed marker")
	}
	if !f.store.LoadStaff("kim").Password().Verify("Kims-New-Pass-33", prefixHasher{}) {
		t.Fatalf("new password not stored")
	}
	if _, ok := f.audit.last(domain.AuditPasswordChanged); !ok {
		t.Fatalf("expected password_changed audit")
	}
}

func TestChangePasswordBreachHandling(t *testing.T) {
	t.Run("breached password rejected", func(t *testing.T) {
		f := newFixture()
		f.seedStaff("lee", "lee@example.com", "Lees-Password-44", false)
		f.breach.breached = true

		_, err := f.change.ChangePassword(context.Background(), changeInput("lee", "Lees-Password-44", "Password123!"))
		if !errors.Is(err, domain.ErrPasswordBreached) {
			t.Fatalf("expected ErrPasswordBreached, got %v", err)
		}
		if !f.store.LoadStaff("lee").Password().Verify("Lees-Password-44", prefixHasher{}) {
			t.Fatalf("password must be unchanged")
		}
	})

	t.Run("unreachable checker fails open when lenient", func(t *testing.T) {
		f := newFixture()
		f.seedStaff("lee", "lee@example.com", "Lees-Password-44", false)
		f.breach.err = context.DeadlineExceeded

		result, err := f.change.ChangePassword(context.Background(), changeInput("lee", "Lees-Password-44", "Lees-New-Pass-55"))
		if err != nil {
			t.Fatalf("expected fail-open, got %v", err)
		}
		if !result.BreachCheckSkipped {
			t.Fatalf("expected skipped flag")
		}
		entry, ok := f.audit.last(domain.AuditBreachCheckSkipped)
		if !ok || entry.Details["reason"] != string(domain.DegradationReasonBreachCheckTimeout) {
			t.Fatalf("expected breach_check_skipped audit with timeout reason, got %+v", entry)
		}
	})

	t.Run("unreachable checker rejects when strict", func(t *testing.T) {
		f := newFixture()
		f.seedStaff("lee", "lee@example.com", "Lees-Password-44", false)
		f.breach.err = errors.New("connection refused")
		f.change.opts.Degradation = domain.NewDegradationPolicy(domain.DegradationPolicyModeStrict)

		_, err := f.change.ChangePassword(context.Background(), changeInput("lee", "Lees-Password-44", "Lees-New-Pass-55"))
		if !errors.Is(err, domain.ErrBreachCheckUnavailable) {
			t.Fatalf("expected ErrBreachCheckUnavailable, got %v", err)
		}
	})
}
