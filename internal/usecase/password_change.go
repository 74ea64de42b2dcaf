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

const defaultBreachTimeout = 5 * time.Second

// BreachObserver is notified of every completed breach lookup.
type BreachObserver interface {
	ObserveBreachCheck(breached bool)
}

// PasswordChangeInput is a self-service password change request.
type PasswordChangeInput struct {
	StaffID          string
	CurrentSessionID string
	CurrentPassword  string
	NewPassword      string
	Confirmation     string
}

// PasswordChangeResult reports the side effects of a successful change.
type PasswordChangeResult struct {
	ChangedAt          time.Time
	SessionsTerminated int
	BreachCheckSkipped bool
}

// PasswordChangeOptions configures the optional breach lookup.
type PasswordChangeOptions struct {
	Breach        port.BreachChecker
	BreachTimeout time.Duration
	Degradation   domain.DegradationPolicy
	Observer      BreachObserver
}

// PasswordChangeService lets an authenticated staff member replace their own password.
type PasswordChangeService struct {
	tx       port.Transactor
	staff    port.StaffRepository
	hasher   port.PasswordHasher
	policy   port.PasswordPolicyValidator
	history  *PasswordHistoryService
	sessions *SessionService
	audit    port.AuditSink
	opts     PasswordChangeOptions
	logger   *zap.Logger
	now      func() time.Time
}

// NewPasswordChangeService constructs a PasswordChangeService.
func NewPasswordChangeService(
	tx port.Transactor,
	staff port.StaffRepository,
	hasher port.PasswordHasher,
	policy port.PasswordPolicyValidator,
	history *PasswordHistoryService,
	sessions *SessionService,
	audit port.AuditSink,
	opts PasswordChangeOptions,
	logger *zap.Logger,
) *PasswordChangeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BreachTimeout <= 0 {
		opts.BreachTimeout = defaultBreachTimeout
	}
	return &PasswordChangeService{
		tx:       tx,
		staff:    staff,
		hasher:   hasher,
		policy:   policy,
		history:  history,
		sessions: sessions,
		audit:    audit,
		opts:     opts,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *PasswordChangeService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// ChangePassword re-verifies the current password, applies policy, history and breach checks,
// then stores the new hash and signs out the caller's other sessions.
func (s *PasswordChangeService) ChangePassword(ctx context.Context, input PasswordChangeInput) (*PasswordChangeResult, error) {
	if input.NewPassword != input.Confirmation {
		return nil, domain.ErrPasswordConfirmationMismatch
	}

	staff, err := s.staff.GetByID(ctx, input.StaffID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrStaffNotFound
		}
		return nil, fmt.Errorf("load staff: %w", err)
	}

	if !staff.Password().Verify(input.CurrentPassword, s.hasher) {
		return nil, domain.ErrCurrentPasswordMismatch
	}

	if err := s.policy.Validate(input.NewPassword, staff.Email().String(), staff.Name().String()); err != nil {
		return nil, err
	}

	newPassword, err := domain.NewPasswordFromPlainText(input.NewPassword, s.hasher)
	if err != nil {
		return nil, err
	}

	skipped, err := s.checkBreach(ctx, staff.ID(), input.NewPassword)
	if err != nil {
		return nil, err
	}

	var (
		changedAt  time.Time
		terminated []string
	)
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context, repos port.Repositories) error {
		locked, err := repos.Staff().GetByIDForUpdate(ctx, staff.ID())
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.ErrStaffNotFound
			}
			return fmt.Errorf("lock staff: %w", err)
		}

		history := s.history.Within(repos)
		reused, err := history.IsReused(ctx, locked.ID(), input.NewPassword)
		if err != nil {
			return err
		}
		if reused {
			return domain.ErrPasswordReused
		}

		changedAt = s.now()
		locked.ChangePassword(newPassword, changedAt)
		if err := repos.Staff().Update(ctx, locked); err != nil {
			return fmt.Errorf("persist password: %w", err)
		}
		if err := history.AddToHistory(ctx, locked.ID(), newPassword.Hash()); err != nil {
			return err
		}

		terminated, err = repos.Sessions().DeleteAllExcept(ctx, locked.ID(), input.CurrentSessionID)
		if err != nil {
			return fmt.Errorf("terminate other sessions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.sessions.markTerminated(ctx, terminated, domain.SessionTerminatedOnChange)
	s.audit.Record(ctx, domain.AuditEntry{
		Event:      domain.AuditPasswordChanged,
		ActorID:    staff.ID(),
		TargetID:   staff.ID(),
		OccurredAt: changedAt,
		Details: map[string]any{
			"sessions_terminated":  len(terminated),
			"breach_check_skipped": skipped,
		},
	})

	return &PasswordChangeResult{
		ChangedAt:          changedAt,
		SessionsTerminated: len(terminated),
		BreachCheckSkipped: skipped,
	}, nil
}

// checkBreach consults the breach list within the configured timeout. It reports whether the
// check was skipped because the list could not answer and the degradation policy allowed it.
func (s *PasswordChangeService) checkBreach(ctx context.Context, staffID, password string) (bool, error) {
	if s.opts.Breach == nil {
		return false, nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, s.opts.BreachTimeout)
	defer cancel()

	breached, err := s.opts.Breach.IsBreached(checkCtx, password)
	if err == nil {
		if s.opts.Observer != nil {
			s.opts.Observer.ObserveBreachCheck(breached)
		}
		if breached {
			return false, domain.ErrPasswordBreached
		}
		return false, nil
	}

	reason := domain.DegradationReasonBreachCheckUnavailable
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(checkCtx.Err(), context.DeadlineExceeded) {
		reason = domain.DegradationReasonBreachCheckTimeout
	}

	if !s.opts.Degradation.AllowsFallback(reason) {
		logger.WithContext(ctx).Error("breach check unavailable, rejecting password change",
			zap.String("staff_id", staffID),
			zap.String("reason", string(reason)),
			zap.Error(err),
		)
		return false, domain.ErrBreachCheckUnavailable
	}

	logger.WithContext(ctx).Warn("breach check skipped",
		zap.String("staff_id", staffID),
		zap.String("reason", string(reason)),
		zap.Error(err),
	)
	s.audit.Record(ctx, domain.AuditEntry{
		Event:    domain.AuditBreachCheckSkipped,
		ActorID:  staffID,
		TargetID: staffID,
		Details:  map[string]any{"reason": string(reason)},
	})
	return true, nil
}
