package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/library-staff-auth/internal/core/domain"
	"github.com/arklim/library-staff-auth/internal/core/port"
	"github.com/arklim/library-staff-auth/internal/infra/logger"
	"github.com/arklim/library-staff-auth/internal/repository"
)

// dummyPassword is verified against when the email is unknown so both failure paths cost one hash comparison.
const dummyPassword = "library-staff-auth-timing-equaliser"

// LoginInput carries the credentials and client metadata of a login attempt.
type LoginInput struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// LoginResult is returned after a successful login. Token is handed to the client exactly once.
type LoginResult struct {
	Staff   *domain.Staff
	Session domain.Session
	Token   string
	Evicted int
}

// AuthenticatedSession is the identity resolved from a valid session token.
type AuthenticatedSession struct {
	Staff   *domain.Staff
	Session *domain.Session
}

// LoginService authenticates staff, drives the lockout state machine and establishes sessions.
type LoginService struct {
	tx       port.Transactor
	staff    port.StaffRepository
	hasher   port.PasswordHasher
	tokens   port.SessionTokenIssuer
	sessions *SessionService
	audit    port.AuditSink
	logger   *zap.Logger
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash domain.Password
}

// NewLoginService constructs a LoginService.
func NewLoginService(tx port.Transactor, staff port.StaffRepository, hasher port.PasswordHasher, tokens port.SessionTokenIssuer, sessions *SessionService, audit port.AuditSink, logger *zap.Logger) *LoginService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoginService{
		tx:       tx,
		staff:    staff,
		hasher:   hasher,
		tokens:   tokens,
		sessions: sessions,
		audit:    audit,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *LoginService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// loginAttempt collects what happened inside the transaction so it can be audited after commit.
type loginAttempt struct {
	staff      *domain.Staff
	session    domain.Session
	token      string
	evicted    []string
	failure    error
	lockedNow  bool
	knownStaff bool
}

// Login verifies credentials and opens a session. Failed attempts and lock transitions are
// committed before the error is returned, so they survive the failed request.
func (s *LoginService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	email, err := domain.NewEmail(input.Email)
	if err != nil || input.Password == "" {
		s.equaliseTiming(input.Password)
		s.recordFailure(ctx, "", input, "invalid_input")
		return nil, domain.ErrAuthenticationFailed
	}

	var attempt loginAttempt
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context, repos port.Repositories) error {
		attempt = loginAttempt{}
		return s.attempt(ctx, repos, email, input, &attempt)
	})
	if err != nil {
		var locked *domain.AccountLockedError
		if errors.As(err, &locked) {
			s.audit.Record(ctx, domain.AuditEntry{
				Event:    domain.AuditLoginRejectedLocked,
				TargetID: attempt.staff.ID(),
				Details:  clientDetails(input),
			})
		}
		return nil, err
	}

	if attempt.failure != nil {
		targetID := ""
		reason := "unknown_email"
		if attempt.knownStaff {
			targetID = attempt.staff.ID()
			reason = "bad_password"
		}
		s.recordFailure(ctx, targetID, input, reason)
		if attempt.lockedNow {
			s.audit.Record(ctx, domain.AuditEntry{
				Event:    domain.AuditAccountLocked,
				TargetID: targetID,
				Details:  map[string]any{"failed_attempts": attempt.staff.FailedLoginAttempts()},
			})
			logger.WithContext(ctx).Warn("staff account locked",
				zap.String("staff_id", targetID),
				zap.String("email", logger.MaskEmail(email.String())),
			)
		}
		return nil, attempt.failure
	}

	details := clientDetails(input)
	details["session_id"] = attempt.session.ID
	details["evicted"] = len(attempt.evicted)
	s.audit.Record(ctx, domain.AuditEntry{
		Event:    domain.AuditLoginSucceeded,
		ActorID:  attempt.staff.ID(),
		TargetID: attempt.staff.ID(),
		Details:  details,
	})
	s.sessions.recordEvictions(ctx, attempt.staff.ID(), attempt.evicted)

	return &LoginResult{
		Staff:   attempt.staff,
		Session: attempt.session,
		Token:   attempt.token,
		Evicted: len(attempt.evicted),
	}, nil
}

func (s *LoginService) attempt(ctx context.Context, repos port.Repositories, email domain.Email, input LoginInput, out *loginAttempt) error {
	found, err := repos.Staff().GetByEmail(ctx, email.String())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.equaliseTiming(input.Password)
			out.failure = domain.ErrAuthenticationFailed
			return nil
		}
		return fmt.Errorf("lookup staff: %w", err)
	}

	// Serialises concurrent logins of one account so counters and session limits stay exact.
	staff, err := repos.Staff().GetByIDForUpdate(ctx, found.ID())
	if err != nil {
		return fmt.Errorf("lock staff: %w", err)
	}
	out.staff = staff
	out.knownStaff = true

	if err := staff.EnsureCanAuthenticate(); err != nil {
		return err
	}

	now := s.now()
	if !staff.Password().Verify(input.Password, s.hasher) {
		out.lockedNow = staff.RecordFailedLogin(now)
		if err := repos.Staff().Update(ctx, staff); err != nil {
			return fmt.Errorf("persist failed attempt: %w", err)
		}
		out.failure = domain.ErrAuthenticationFailed
		return nil
	}

	if staff.ResetFailedAttempts(now) {
		if err := repos.Staff().Update(ctx, staff); err != nil {
			return fmt.Errorf("reset failed attempts: %w", err)
		}
	}

	token, sessionID, err := s.tokens.Issue()
	if err != nil {
		return fmt.Errorf("issue session token: %w", err)
	}
	session := domain.Session{
		ID:           sessionID,
		StaffID:      staff.ID(),
		IPAddress:    strings.TrimSpace(input.IPAddress),
		UserAgent:    truncate(strings.TrimSpace(input.UserAgent), maxUserAgentLength),
		LastActivity: now,
		CreatedAt:    now,
	}
	if err := repos.Sessions().Create(ctx, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	evicted, err := s.sessions.evictSurplus(ctx, repos.Sessions(), staff.ID(), staff.IsAdmin(), session.ID)
	if err != nil {
		return err
	}

	out.session = session
	out.token = token
	out.evicted = evicted
	return nil
}

// Logout ends the caller's current session.
func (s *LoginService) Logout(ctx context.Context, staffID, sessionID string) error {
	return s.sessions.Logout(ctx, staffID, sessionID)
}

// CurrentStaff re-reads the authenticated staff member. Nothing is cached across requests.
func (s *LoginService) CurrentStaff(ctx context.Context, staffID string) (*domain.Staff, error) {
	staff, err := s.staff.GetByID(ctx, staffID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrStaffNotFound
		}
		return nil, fmt.Errorf("load staff: %w", err)
	}
	return staff, nil
}

// ResolveSession validates the session and loads its owner. Sessions of locked or vanished
// accounts are revoked on the spot.
func (s *LoginService) ResolveSession(ctx context.Context, sessionID string) (*AuthenticatedSession, error) {
	session, err := s.sessions.Validate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	staff, err := s.staff.GetByID(ctx, session.StaffID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if revokeErr := s.sessions.Revoke(ctx, session.ID, domain.SessionTerminatedByOwner); revokeErr != nil {
				s.logger.Warn("revoke orphaned session failed", zap.Error(revokeErr))
			}
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session owner: %w", err)
	}

	if staff.IsLocked() {
		if revokeErr := s.sessions.Revoke(ctx, session.ID, domain.SessionTerminatedOnLock); revokeErr != nil {
			s.logger.Warn("revoke session of locked staff failed", zap.Error(revokeErr))
		}
		return nil, &domain.SessionRejectedError{Reason: domain.SessionTerminatedOnLock}
	}

	return &AuthenticatedSession{Staff: staff, Session: session}, nil
}

func (s *LoginService) recordFailure(ctx context.Context, targetID string, input LoginInput, reason string) {
	details := clientDetails(input)
	details["reason"] = reason
	details["email"] = logger.MaskEmail(strings.ToLower(strings.TrimSpace(input.Email)))
	s.audit.Record(ctx, domain.AuditEntry{
		Event:    domain.AuditLoginFailed,
		TargetID: targetID,
		Details:  details,
	})
}

func (s *LoginService) equaliseTiming(candidate string) {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			s.logger.Warn("prepare timing equaliser failed", zap.Error(err))
			return
		}
		s.dummyHash = domain.PasswordFromHash(hash)
	})
	if s.dummyHash.Hash() != "" {
		s.dummyHash.Verify(candidate, s.hasher)
	}
}

const maxUserAgentLength = 512

func clientDetails(input LoginInput) map[string]any {
	return map[string]any{
		"ip_address": logger.MaskIP(strings.TrimSpace(input.IPAddress)),
		"user_agent": truncate(strings.TrimSpace(input.UserAgent), maxUserAgentLength),
	}
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max])
}
