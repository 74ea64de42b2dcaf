package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/library-staff-auth/internal/core/domain"
	"github.com/arklim/library-staff-auth/internal/core/port"
	"github.com/arklim/library-staff-auth/internal/infra/logger"
	"github.com/arklim/library-staff-auth/internal/repository"
)

const (
	defaultTemporaryPasswordLength = 16
	defaultListLimit               = 20
	maxListLimit                   = 100
)

// CreateStaffInput describes a new account. The initial password is generated.
type CreateStaffInput struct {
	Email   string
	Name    string
	IsAdmin bool
}

// UpdateStaffInput carries an administrative edit. Nil fields are left unchanged.
// ObservedUpdatedAt is the updated_at value the operator last saw.
type UpdateStaffInput struct {
	StaffID           string
	Name              *string
	Email             *string
	IsAdmin           *bool
	ObservedUpdatedAt time.Time
}

// CreatedStaff pairs a new account with its one-time temporary password.
type CreatedStaff struct {
	Staff             *domain.Staff
	TemporaryPassword string
}

// StaffPage is one page of the account listing.
type StaffPage struct {
	Items  []*domain.Staff
	Total  int
	Limit  int
	Offset int
}

// StaffAccountService performs administrative account mutations inside one transaction each.
type StaffAccountService struct {
	tx         port.Transactor
	staff      port.StaffRepository
	hasher     port.PasswordHasher
	generator  port.PasswordGenerator
	ids        port.IDGenerator
	history    *PasswordHistoryService
	sessions   *SessionService
	audit      port.AuditSink
	tempLength int
	logger     *zap.Logger
	now        func() time.Time
}

// NewStaffAccountService constructs a StaffAccountService. A non-positive tempLength uses 16.
func NewStaffAccountService(
	tx port.Transactor,
	staff port.StaffRepository,
	hasher port.PasswordHasher,
	generator port.PasswordGenerator,
	ids port.IDGenerator,
	history *PasswordHistoryService,
	sessions *SessionService,
	audit port.AuditSink,
	tempLength int,
	logger *zap.Logger,
) *StaffAccountService {
	if tempLength <= 0 {
		tempLength = defaultTemporaryPasswordLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaffAccountService{
		tx:         tx,
		staff:      staff,
		hasher:     hasher,
		generator:  generator,
		ids:        ids,
		history:    history,
		sessions:   sessions,
		audit:      audit,
		tempLength: tempLength,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *StaffAccountService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Get loads one account.
func (s *StaffAccountService) Get(ctx context.Context, staffID string) (*domain.Staff, error) {
	staff, err := s.staff.GetByID(ctx, staffID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrStaffNotFound
		}
		return nil, fmt.Errorf("load staff: %w", err)
	}
	return staff, nil
}

// List returns accounts ordered by creation. Limits outside 1..100 are clamped.
func (s *StaffAccountService) List(ctx context.Context, limit, offset int) (*StaffPage, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	items, total, err := s.staff.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	return &StaffPage{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// Create registers a new unlocked account with a generated temporary password.
func (s *StaffAccountService) Create(ctx context.Context, operatorID string, input CreateStaffInput) (*CreatedStaff, error) {
	email, err := domain.NewEmail(input.Email)
	if err != nil {
		return nil, err
	}
	name, err := domain.NewStaffName(input.Name)
	if err != nil {
		return nil, err
	}

	temporary, password, err := s.temporaryPassword()
	if err != nil {
		return nil, err
	}

	staff := domain.NewStaff(s.ids.NewID(), email, name, password, input.IsAdmin, s.now())

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context, repos port.Repositories) error {
		taken, err := repos.Staff().EmailTakenByOther(ctx, email.String(), "")
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if taken {
			return domain.ErrDuplicateEmail
		}
		if err := repos.Staff().Create(ctx, staff); err != nil {
			return err
		}
		return s.history.Within(repos).AddToHistory(ctx, staff.ID(), password.Hash())
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, domain.AuditEntry{
		Event:    domain.AuditStaffCreated,
		ActorID:  operatorID,
		TargetID: staff.ID(),
		Details: map[string]any{
			"email": logger.MaskEmail(email.String()),
			"role":  string(staff.Role()),
		},
	})

	return &CreatedStaff{Staff: staff, TemporaryPassword: temporary}, nil
}

// Update applies an administrative edit. Checks run in order: existence, optimistic lock,
// self role change, last admin, email uniqueness.
func (s *StaffAccountService) Update(ctx context.Context, operatorID string, input UpdateStaffInput) (*domain.Staff, error) {
	var (
		name  *domain.StaffName
		email *domain.Email
	)
	if input.Name != nil {
		parsed, err := domain.NewStaffName(*input.Name)
		if err != nil {
			return nil, err
		}
		name = &parsed
	}
	if input.Email != nil {
		parsed, err := domain.NewEmail(*input.Email)
		if err != nil {
			return nil, err
		}
		email = &parsed
	}

	var (
		updated *domain.Staff
		changes []domain.FieldChange
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context, repos port.Repositories) error {
		staffRepo := repos.Staff()

		// Admin rows are locked before the target row so concurrent demotions acquire locks in one order.
		adminCount := -1
		if input.IsAdmin != nil && !*input.IsAdmin {
			count, err := staffRepo.CountAdminsForUpdate(ctx)
			if err != nil {
				return fmt.Errorf("count admins: %w", err)
			}
			adminCount = count
		}

		staff, err := staffRepo.GetByIDForUpdate(ctx, input.StaffID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.ErrStaffNotFound
			}
			return fmt.Errorf("load staff: %w", err)
		}

		if !staff.MatchesObservedVersion(input.ObservedUpdatedAt) {
			return domain.ErrOptimisticLockConflict
		}

		roleChanging := input.IsAdmin != nil && *input.IsAdmin != staff.IsAdmin()
		if roleChanging {
			if staff.ID() == operatorID {
				return domain.ErrSelfRoleChangeForbidden
			}
			if staff.IsAdmin() && adminCount-1 <= 0 {
				return domain.ErrLastAdminProtected
			}
		}

		if email != nil && !email.Equal(staff.Email()) {
			taken, err := staffRepo.EmailTakenByOther(ctx, email.String(), staff.ID())
			if err != nil {
				return fmt.Errorf("check email: %w", err)
			}
			if taken {
				return domain.ErrDuplicateEmail
			}
		}

		before := staff.Snapshot()
		now := s.now()
		if name != nil && !name.Equal(staff.Name()) {
			staff.Rename(*name, now)
		}
		if email != nil && !email.Equal(staff.Email()) {
			staff.ChangeEmail(*email, now)
		}
		if roleChanging {
			staff.SetAdmin(*input.IsAdmin, now)
		}

		changes = domain.DiffStaff(before, staff.Snapshot())
		if len(changes) > 0 {
			if err := staffRepo.Update(ctx, staff); err != nil {
				return err
			}
		}
		updated = staff
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(changes) > 0 {
		s.audit.Record(ctx, domain.AuditEntry{
			Event:    domain.AuditStaffUpdated,
			ActorID:  operatorID,
			TargetID: updated.ID(),
			Details:  map[string]any{"changes": changes},
		})
	}
	return updated, nil
}

// ResetPassword replaces the account's password with a generated one and signs out all its sessions.
// The temporary password is returned once and is not stored anywhere in clear text.
func (s *StaffAccountService) ResetPassword(ctx context.Context, operatorID, staffID string) (string, error) {
	temporary, password, err := s.temporaryPassword()
	if err != nil {
		return "", err
	}

	var terminated []string
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context, repos port.Repositories) error {
		staff, err := repos.Staff().GetByIDForUpdate(ctx, staffID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.ErrStaffNotFound
			}
			return fmt.Errorf("load staff: %w", err)
		}

		staff.ChangePassword(password, s.now())
		if err := repos.Staff().Update(ctx, staff); err != nil {
			return fmt.Errorf("persist password: %w", err)
		}
		if err := s.history.Within(repos).AddToHistory(ctx, staff.ID(), password.Hash()); err != nil {
			return err
		}

		terminated, err = repos.Sessions().DeleteAllExcept(ctx, staff.ID(), "")
		if err != nil {
			return fmt.Errorf("terminate sessions: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.sessions.markTerminated(ctx, terminated, domain.SessionTerminatedOnReset)
	s.audit.Record(ctx, domain.AuditEntry{
		Event:    domain.AuditPasswordReset,
		ActorID:  operatorID,
		TargetID: staffID,
		Details:  map[string]any{"sessions_terminated": len(terminated)},
	})
	return temporary, nil
}

// Unlock clears the lockout state. Unlocking an unlocked account is a no-op.
func (s *StaffAccountService) Unlock(ctx context.Context, operatorID, staffID string) (*domain.Staff, error) {
	var (
		unlocked *domain.Staff
		changed  bool
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context, repos port.Repositories) error {
		staff, err := repos.Staff().GetByIDForUpdate(ctx, staffID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.ErrStaffNotFound
			}
			return fmt.Errorf("load staff: %w", err)
		}
		unlocked = staff

		if !staff.IsLocked() && staff.FailedLoginAttempts() == 0 {
			return nil
		}
		staff.Unlock(s.now())
		changed = true
		return repos.Staff().Update(ctx, staff)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.audit.Record(ctx, domain.AuditEntry{
			Event:    domain.AuditStaffUnlocked,
			ActorID:  operatorID,
			TargetID: staffID,
		})
	}
	return unlocked, nil
}

func (s *StaffAccountService) temporaryPassword() (string, domain.Password, error) {
	temporary, err := s.generator.Generate(s.tempLength)
	if err != nil {
		return "", domain.Password{}, fmt.Errorf("generate temporary password: %w", err)
	}
	password, err := domain.NewPasswordFromPlainText(temporary, s.hasher)
	if err != nil {
		return "", domain.Password{}, err
	}
	return temporary, password, nil
}
