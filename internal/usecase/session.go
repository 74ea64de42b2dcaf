package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/library-staff-auth/internal/core/domain"
	"github.com/arklim/library-staff-auth/internal/core/port"
	"github.com/arklim/library-staff-auth/internal/infra/logger"
	"github.com/arklim/library-staff-auth/internal/repository"
)

const (
	defaultAdminSessionLimit = 1
	defaultStaffSessionLimit = 3
	defaultIdleTimeout       = 30 * time.Minute
	defaultAbsoluteTimeout   = 8 * time.Hour
	defaultTerminationTTL    = 24 * time.Hour
)

// SessionPolicy holds the concurrency limits and lifetimes applied to staff sessions.
type SessionPolicy struct {
	AdminLimit      int
	StaffLimit      int
	IdleTimeout     time.Duration
	AbsoluteTimeout time.Duration
	// TerminationTTL bounds how long the reason for a removed session is remembered.
	TerminationTTL time.Duration
}

func (p SessionPolicy) withDefaults() SessionPolicy {
	if p.AdminLimit <= 0 {
		p.AdminLimit = defaultAdminSessionLimit
	}
	if p.StaffLimit <= 0 {
		p.StaffLimit = defaultStaffSessionLimit
	}
	if p.IdleTimeout <= 0 {
		p.IdleTimeout = defaultIdleTimeout
	}
	if p.AbsoluteTimeout <= 0 {
		p.AbsoluteTimeout = defaultAbsoluteTimeout
	}
	if p.TerminationTTL <= 0 {
		p.TerminationTTL = defaultTerminationTTL
	}
	return p
}

// SessionService lists, limits, validates and terminates staff sessions.
type SessionService struct {
	sessions     port.SessionRepository
	tx           port.Transactor
	audit        port.AuditSink
	terminations port.SessionTerminationStore
	policy       SessionPolicy
	logger       *zap.Logger
	now          func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(sessions port.SessionRepository, tx port.Transactor, audit port.AuditSink, policy SessionPolicy, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		sessions: sessions,
		tx:       tx,
		audit:    audit,
		policy:   policy.withDefaults(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *SessionService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithTerminationStore remembers why sessions were removed so later requests get a precise error.
func (s *SessionService) WithTerminationStore(store port.SessionTerminationStore) *SessionService {
	s.terminations = store
	return s
}

// Policy returns the effective session policy.
func (s *SessionService) Policy() SessionPolicy {
	return s.policy
}

// GetActiveSessions returns the staff member's sessions, most recently active first, flagging the caller's own.
func (s *SessionService) GetActiveSessions(ctx context.Context, staffID, currentSessionID string) ([]domain.SessionView, error) {
	if strings.TrimSpace(staffID) == "" {
		return nil, fmt.Errorf("staff id is required")
	}

	sessions, err := s.sessions.ListByStaff(ctx, staffID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	views := make([]domain.SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, domain.SessionView{
			Session:   session,
			IsCurrent: session.ID == currentSessionID,
		})
	}
	return views, nil
}

// TerminateSession deletes the session only when staffID owns it. Foreign or missing sessions report false.
func (s *SessionService) TerminateSession(ctx context.Context, staffID, sessionID string) (bool, error) {
	if strings.TrimSpace(staffID) == "" || strings.TrimSpace(sessionID) == "" {
		return false, nil
	}

	deleted, err := s.sessions.DeleteOwned(ctx, staffID, sessionID)
	if err != nil {
		return false, fmt.Errorf("terminate session: %w", err)
	}
	if !deleted {
		return false, nil
	}

	s.markTerminated(ctx, []string{sessionID}, domain.SessionTerminatedByOwner)
	s.audit.Record(ctx, domain.AuditEntry{
		Event:    domain.AuditSessionTerminated,
		ActorID:  staffID,
		TargetID: staffID,
		Details:  map[string]any{"session_id": sessionID},
	})
	return true, nil
}

// TerminateOtherSessions deletes every session of the staff member except the current one.
func (s *SessionService) TerminateOtherSessions(ctx context.Context, staffID, currentSessionID string) (int, error) {
	if strings.TrimSpace(staffID) == "" {
		return 0, fmt.Errorf("staff id is required")
	}

	removed, err := s.sessions.DeleteAllExcept(ctx, staffID, currentSessionID)
	if err != nil {
		return 0, fmt.Errorf("terminate other sessions: %w", err)
	}
	if len(removed) == 0 {
		return 0, nil
	}

	s.markTerminated(ctx, removed, domain.SessionTerminatedByOwner)
	s.audit.Record(ctx, domain.AuditEntry{
		Event:    domain.AuditOtherSessionsTerminated,
		ActorID:  staffID,
		TargetID: staffID,
		Details:  map[string]any{"terminated": len(removed)},
	})
	return len(removed), nil
}

// EnforceSessionLimit evicts the oldest sessions beyond the role's limit, keeping currentSessionID.
func (s *SessionService) EnforceSessionLimit(ctx context.Context, staffID string, isAdmin bool, currentSessionID string) (int, error) {
	var evicted []string
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context, repos port.Repositories) error {
		var err error
		evicted, err = s.evictSurplus(ctx, repos.Sessions(), staffID, isAdmin, currentSessionID)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.recordEvictions(ctx, staffID, evicted)
	return len(evicted), nil
}

// evictSurplus runs inside the caller's transaction so the limit check and the new session commit together.
func (s *SessionService) evictSurplus(ctx context.Context, sessions port.SessionRepository, staffID string, isAdmin bool, currentSessionID string) ([]string, error) {
	limit := domain.SessionLimitFor(isAdmin, s.policy.AdminLimit, s.policy.StaffLimit)

	others, err := sessions.ListOthersForUpdate(ctx, staffID, currentSessionID)
	if err != nil {
		return nil, fmt.Errorf("list sessions for limit: %w", err)
	}

	allowed := limit - 1
	if len(others) <= allowed {
		return nil, nil
	}

	surplus := others[:len(others)-allowed]
	ids := make([]string, 0, len(surplus))
	for _, session := range surplus {
		ids = append(ids, session.ID)
	}

	if _, err := sessions.DeleteByIDs(ctx, ids); err != nil {
		return nil, fmt.Errorf("evict sessions: %w", err)
	}
	return ids, nil
}

func (s *SessionService) recordEvictions(ctx context.Context, staffID string, evicted []string) {
	if len(evicted) == 0 {
		return
	}
	s.markTerminated(ctx, evicted, domain.SessionEvicted)
	s.audit.Record(ctx, domain.AuditEntry{
		Event:    domain.AuditSessionEvicted,
		TargetID: staffID,
		Details:  map[string]any{"evicted": len(evicted)},
	})
}

// Validate re-checks the session's recency on every request, removing it once idle or absolute lifetime is exceeded.
func (s *SessionService) Validate(ctx context.Context, sessionID string) (*domain.Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, domain.ErrSessionNotFound
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, s.missingSessionError(ctx, sessionID)
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	now := s.now()
	switch {
	case session.Age(now) >= s.policy.AbsoluteTimeout:
		return nil, s.expire(ctx, session, domain.SessionAbsoluteTimeout, domain.AuditSessionAbsoluteTimeout, now)
	case session.IdleFor(now) >= s.policy.IdleTimeout:
		return nil, s.expire(ctx, session, domain.SessionIdleTimeout, domain.AuditSessionIdleTimeout, now)
	}

	if err := s.sessions.TouchActivity(ctx, session.ID, now); err != nil {
		return nil, fmt.Errorf("touch session: %w", err)
	}
	session.LastActivity = now
	return session, nil
}

func (s *SessionService) expire(ctx context.Context, session *domain.Session, reason domain.SessionTerminationReason, event domain.AuditEvent, now time.Time) error {
	if _, err := s.sessions.Delete(ctx, session.ID); err != nil {
		return fmt.Errorf("delete expired session: %w", err)
	}

	s.markTerminated(ctx, []string{session.ID}, reason)
	s.audit.Record(ctx, domain.AuditEntry{
		Event:    event,
		TargetID: session.StaffID,
		Details: map[string]any{
			"session_id":    session.ID,
			"idle_seconds":  int(session.IdleFor(now).Seconds()),
			"age_seconds":   int(session.Age(now).Seconds()),
			"last_activity": session.LastActivity.UTC(),
		},
	})
	return &domain.SessionRejectedError{Reason: reason}
}

// missingSessionError refines an unknown session into the reason it was removed, when remembered.
func (s *SessionService) missingSessionError(ctx context.Context, sessionID string) error {
	if s.terminations == nil {
		return domain.ErrSessionNotFound
	}
	reason, found, err := s.terminations.TerminationReason(ctx, sessionID)
	if err != nil {
		logger.WithContext(ctx).Warn("termination reason lookup failed",
			zap.String("session_id", logger.MaskSessionID(sessionID)),
			zap.String("degradation", string(domain.DegradationReasonTerminationCacheUnavailable)),
			zap.Error(err),
		)
		return domain.ErrSessionNotFound
	}
	if !found {
		return domain.ErrSessionNotFound
	}
	return &domain.SessionRejectedError{Reason: reason}
}

// Logout removes the caller's own session.
func (s *SessionService) Logout(ctx context.Context, staffID, sessionID string) error {
	deleted, err := s.sessions.DeleteOwned(ctx, staffID, sessionID)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if deleted {
		s.markTerminated(ctx, []string{sessionID}, domain.SessionTerminatedByLogout)
	}
	s.audit.Record(ctx, domain.AuditEntry{
		Event:    domain.AuditLogout,
		ActorID:  staffID,
		TargetID: staffID,
	})
	return nil
}

// Revoke removes a session the caller has already decided is no longer valid.
func (s *SessionService) Revoke(ctx context.Context, sessionID string, reason domain.SessionTerminationReason) error {
	if _, err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	s.markTerminated(ctx, []string{sessionID}, reason)
	return nil
}

func (s *SessionService) markTerminated(ctx context.Context, sessionIDs []string, reason domain.SessionTerminationReason) {
	if s.terminations == nil {
		return
	}
	for _, id := range sessionIDs {
		if err := s.terminations.MarkTerminated(ctx, id, reason, s.policy.TerminationTTL); err != nil {
			s.logger.Warn("record session termination failed",
				zap.String("session_id", logger.MaskSessionID(id)),
				zap.String("reason", string(reason)),
				zap.Error(err),
			)
		}
	}
}
