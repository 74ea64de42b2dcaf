package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/arklim/library-staff-auth/internal/core/domain"
)

func strPtr(v string) *string { return &v }

func boolPtr(v bool) *bool { return &v }

func TestCreateStaffIssuesTemporaryPassword(t *testing.T) {
	f := newFixture()
	f.generator.values = []string{"Tmp-Generated-01"}

	created, err := f.accounts.Create(context.Background(), "root", CreateStaffInput{
		Email: " New.Hire@Example.com ",
		Name:  "New Hire",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.TemporaryPassword != "Tmp-Generated-01" {
		t.Fatalf("unexpected temporary password %q", created.TemporaryPassword)
	}
	staff := created.Staff
	if staff.Email().String() != "new.hire@example.com" || staff.IsAdmin() || staff.IsLocked() {
		t.Fatalf("unexpected staff state %+v", staff.Snapshot())
	}
	if !f.store.LoadStaff(staff.ID()).Password().Verify("Tmp-Generated-01", prefixHasher{}) {
		t.Fatalf("temporary password must authenticate")
	}

	history, _ := f.store.PasswordHistory().ListRecent(context.Background(), staff.ID(), 10)
	if len(history) != 1 || history[0].PasswordHash != "h:Tmp-Generated-01" {
		t.Fatalf("expected initial password in history, got %+v", history)
	}

	entry, ok := f.audit.last(domain.AuditStaffCreated)
	if !ok || entry.ActorID != "root" || entry.TargetID != staff.ID() {
		t.Fatalf("expected staff.created audit, got %+v", entry)
	}
	if entry.Details["email"] == "new.hire@example.com" {
		t.Fatalf("audit must carry a masked email")
	}
}

func TestCreateStaffRejectsDuplicateEmail(t *testing.T) {
	f := newFixture()
	f.seedStaff("mia", "mia@example.com", "Mias-Password-1", false)

	_, err := f.accounts.Create(context.Background(), "root", CreateStaffInput{Email: "MIA@example.com", Name: "Mia Two"})
	if !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	if f.store.StaffCount() != 1 {
		t.Fatalf("no account may be created")
	}
}

func TestCreateStaffValidatesInput(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.accounts.Create(ctx, "root", CreateStaffInput{Email: "broken", Name: "Someone"}); !errors.Is(err, domain.ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := f.accounts.Create(ctx, "root", CreateStaffInput{Email: "ok@example.com", Name: "   "}); !errors.Is(err, domain.ErrInvalidStaffName) {
		t.Fatalf("expected ErrInvalidStaffName, got %v", err)
	}
}

func TestUpdateStaffOptimisticLock(t *testing.T) {
	f := newFixture()
	seeded := f.seedStaff("nora", "nora@example.com", "Noras-Password-1", false)
	observed := seeded.UpdatedAt()
	ctx := context.Background()

	f.clock.advance(2 * time.Second)
	first, err := f.accounts.Update(ctx, "root", UpdateStaffInput{
		StaffID:           "nora",
		Name:              strPtr("Nora A"),
		ObservedUpdatedAt: observed,
	})
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	if first.Name().String() != "Nora A" {
		t.Fatalf("expected rename applied")
	}

	f.clock.advance(2 * time.Second)
	_, err = f.accounts.Update(ctx, "other-root", UpdateStaffInput{
		StaffID:           "nora",
		Name:              strPtr("Nora B"),
		ObservedUpdatedAt: observed,
	})
	if !errors.Is(err, domain.ErrOptimisticLockConflict) {
		t.Fatalf("expected ErrOptimisticLockConflict, got %v", err)
	}
	if got := f.store.LoadStaff("nora").Name().String(); got != "Nora A" {
		t.Fatalf("stale write must not apply, name is %q", got)
	}

	entry, ok := f.audit.last(domain.AuditStaffUpdated)
	if !ok {
		t.Fatalf("expected staff.updated audit")
	}
	changes, _ := entry.Details["changes"].([]domain.FieldChange)
	if len(changes) != 1 || changes[0].Field != "name" || changes[0].Before != "Staff nora" || changes[0].After != "Nora A" {
		t.Fatalf("unexpected diff %+v", changes)
	}
}

func TestUpdateStaffLastAdminProtection(t *testing.T) {
	t.Run("single admin cannot be demoted", func(t *testing.T) {
		f := newFixture()
		solo := f.seedStaff("owen", "owen@example.com", "Owens-Password-1", true)
		f.seedStaff("staffer", "staffer@example.com", "Staffer-Pass-01", false)

		_, err := f.accounts.Update(context.Background(), "staffer", UpdateStaffInput{
			StaffID:           "owen",
			IsAdmin:           boolPtr(false),
			ObservedUpdatedAt: solo.UpdatedAt(),
		})
		if !errors.Is(err, domain.ErrLastAdminProtected) {
			t.Fatalf("expected ErrLastAdminProtected, got %v", err)
		}
		if !f.store.LoadStaff("owen").IsAdmin() {
			t.Fatalf("admin flag must be unchanged")
		}
	})

	t.Run("one of two admins can be demoted", func(t *testing.T) {
		f := newFixture()
		target := f.seedStaff("owen", "owen@example.com", "Owens-Password-1", true)
		f.seedStaff("pia", "pia@example.com", "Pias-Password-01", true)

		updated, err := f.accounts.Update(context.Background(), "pia", UpdateStaffInput{
			StaffID:           "owen",
			IsAdmin:           boolPtr(false),
			ObservedUpdatedAt: target.UpdatedAt(),
		})
		if err != nil {
			t.Fatalf("Update returned error: %v", err)
		}
		if updated.IsAdmin() {
			t.Fatalf("expected demotion")
		}
		if f.store.AdminCountCalls() != 1 {
			t.Fatalf("expected admin rows locked once, got %d", f.store.AdminCountCalls())
		}
	})
}

func TestUpdateStaffRoleRules(t *testing.T) {
	f := newFixture()
	self := f.seedStaff("quinn", "quinn@example.com", "Quinns-Password-1", true)
	f.seedStaff("rae", "rae@example.com", "Raes-Password-01", true)
	ctx := context.Background()

	_, err := f.accounts.Update(ctx, "quinn", UpdateStaffInput{
		StaffID:           "quinn",
		IsAdmin:           boolPtr(false),
		ObservedUpdatedAt: self.UpdatedAt(),
	})
	if !errors.Is(err, domain.ErrSelfRoleChangeForbidden) {
		t.Fatalf("expected ErrSelfRoleChangeForbidden, got %v", err)
	}

	updated, err := f.accounts.Update(ctx, "quinn", UpdateStaffInput{
		StaffID:           "quinn",
		Name:              strPtr("Quinn Q"),
		IsAdmin:           boolPtr(true),
		ObservedUpdatedAt: self.UpdatedAt(),
	})
	if err != nil {
		t.Fatalf("resubmitting the unchanged role must be allowed, got %v", err)
	}
	if updated.Name().String() != "Quinn Q" || !updated.IsAdmin() {
		t.Fatalf("unexpected result %+v", updated.Snapshot())
	}
}

func TestUpdateStaffEmailUniqueness(t *testing.T) {
	f := newFixture()
	target := f.seedStaff("sam", "sam@example.com", "Sams-Password-01", false)
	f.seedStaff("tess", "tess@example.com", "Tess-Password-01", false)
	ctx := context.Background()

	_, err := f.accounts.Update(ctx, "root", UpdateStaffInput{
		StaffID:           "sam",
		Email:             strPtr("TESS@example.com"),
		ObservedUpdatedAt: target.UpdatedAt(),
	})
	if !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	_, err = f.accounts.Update(ctx, "root", UpdateStaffInput{
		StaffID:           "sam",
		Email:             strPtr("sam@example.com"),
		ObservedUpdatedAt: target.UpdatedAt(),
	})
	if err != nil {
		t.Fatalf("keeping the own email must not conflict, got %v", err)
	}
	if _, ok := f.audit.last(domain.AuditStaffUpdated); ok {
		t.Fatalf("a no-op update must not be audited")
	}
}

func TestUpdateStaffNotFound(t *testing.T) {
	f := newFixture()
	_, err := f.accounts.Update(context.Background(), "root", UpdateStaffInput{StaffID: "ghost", Name: strPtr("Ghost")})
	if !errors.Is(err, domain.ErrStaffNotFound) {
		t.Fatalf("expected ErrStaffNotFound, got %v", err)
	}
	if _, err := f.accounts.Get(context.Background(), "ghost"); !errors.Is(err, domain.ErrStaffNotFound) {
		t.Fatalf("expected ErrStaffNotFound from Get, got %v", err)
	}
}

func TestResetPasswordTerminatesAllSessions(t *testing.T) {
	f := newFixture()
	f.seedStaff("uma", "uma@example.com", "Umas-Password-01", false)
	f.seedSession("desk", "uma", time.Minute)
	f.seedSession("tablet", "uma", 2*time.Minute)
	f.generator.values = []string{"Reset-Temp-0001"}

	temporary, err := f.accounts.ResetPassword(context.Background(), "root", "uma")
	if err != nil {
		t.Fatalf("ResetPassword returned error: %v", err)
	}
	if temporary != "Reset-Temp-0001" {
		t.Fatalf("unexpected temporary password %q", temporary)
	}
	if len(f.store.SessionIDs("uma")) != 0 {
		t.Fatalf("every session must be removed")
	}
	if f.terminations.reasons["desk"] != domain.SessionTerminatedOnReset {
		t.Fatalf("expected password_reset marker")
	}
	uma := f.store.LoadStaff("uma")
	if !uma.Password().Verify("Reset-Temp-0001", prefixHasher{}) || uma.Password().Verify("Umas-Password-01", prefixHasher{}) {
		t.Fatalf("password must be replaced")
	}
	entry, ok := f.audit.last(domain.AuditPasswordReset)
	if !ok || entry.Details["sessions_terminated"] != 2 {
		t.Fatalf("expected password_reset audit with 2 sessions, got %+v", entry)
	}

	if _, err := f.accounts.ResetPassword(context.Background(), "root", "ghost"); !errors.Is(err, domain.ErrStaffNotFound) {
		t.Fatalf("expected ErrStaffNotFound, got %v", err)
	}
}

func TestUnlockClearsLockout(t *testing.T) {
	f := newFixture()
	f.seedStaff("vic", "vic@example.com", "Vics-Password-01", false)
	ctx := context.Background()

	for i := 0; i < domain.MaxFailedLoginAttempts; i++ {
		_, _ = f.login.Login(ctx, LoginInput{Email: "vic@example.com", Password: "wrong"})
	}
	if !f.store.LoadStaff("vic").IsLocked() {
		t.Fatalf("precondition: account should be locked")
	}

	unlocked, err := f.accounts.Unlock(ctx, "root", "vic")
	if err != nil {
		t.Fatalf("Unlock returned error: %v", err)
	}
	if unlocked.IsLocked() || unlocked.FailedLoginAttempts() != 0 || unlocked.LockedAt() != nil {
		t.Fatalf("expected clean lockout state, got %+v", unlocked.Snapshot())
	}
	if _, err := f.login.Login(ctx, LoginInput{Email: "vic@example.com", Password: "Vics-Password-01"}); err != nil {
		t.Fatalf("login after unlock: %v", err)
	}

	before := len(f.audit.events())
	if _, err := f.accounts.Unlock(ctx, "root", "vic"); err != nil {
		t.Fatalf("second unlock: %v", err)
	}
	if len(f.audit.events()) != before {
		t.Fatalf("unlocking an unlocked account must not be audited")
	}
}

func TestListStaffClampsLimit(t *testing.T) {
	f := newFixture()
	for i := 0; i < 3; i++ {
		f.seedStaff(fmt.Sprintf("w%d", i), fmt.Sprintf("w%d@example.com", i), "Some-Password-01", false)
		f.clock.advance(time.Second)
	}
	ctx := context.Background()

	page, err := f.accounts.List(ctx, 0, -5)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if page.Limit != 20 || page.Offset != 0 || page.Total != 3 || len(page.Items) != 3 {
		t.Fatalf("unexpected default page %+v", page)
	}
	if page.Items[0].ID() != "w0" {
		t.Fatalf("expected creation order, got %s first", page.Items[0].ID())
	}

	page, err = f.accounts.List(ctx, 1000, 2)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if page.Limit != 100 || len(page.Items) != 1 || page.Items[0].ID() != "w2" {
		t.Fatalf("unexpected clamped page %+v", page)
	}
}
