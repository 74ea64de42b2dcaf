package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/library-staff-auth/internal/core/domain"
	"github.com/arklim/library-staff-auth/internal/core/port"
)

// PasswordHistoryService blocks reuse of a staff member's most recent passwords.
type PasswordHistoryService struct {
	history port.PasswordHistoryRepository
	hasher  port.PasswordHasher
	ids     port.IDGenerator
	depth   int
	logger  *zap.Logger
	now     func() time.Time
}

// NewPasswordHistoryService constructs the service. A non-positive depth uses domain.PasswordHistoryDepth.
func NewPasswordHistoryService(history port.PasswordHistoryRepository, hasher port.PasswordHasher, ids port.IDGenerator, depth int, logger *zap.Logger) *PasswordHistoryService {
	if depth <= 0 {
		depth = domain.PasswordHistoryDepth
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PasswordHistoryService{
		history: history,
		hasher:  hasher,
		ids:     ids,
		depth:   depth,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *PasswordHistoryService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Within returns a copy bound to the transaction's history repository.
func (s *PasswordHistoryService) Within(repos port.Repositories) *PasswordHistoryService {
	bound := *s
	bound.history = repos.PasswordHistory()
	return &bound
}

// IsReused reports whether candidate matches any of the retained hashes, newest first.
func (s *PasswordHistoryService) IsReused(ctx context.Context, staffID, candidate string) (bool, error) {
	entries, err := s.history.ListRecent(ctx, staffID, s.depth)
	if err != nil {
		return false, fmt.Errorf("load password history: %w", err)
	}

	for _, entry := range entries {
		if domain.PasswordFromHash(entry.PasswordHash).Verify(candidate, s.hasher) {
			return true, nil
		}
	}
	return false, nil
}

// AddToHistory appends newHash and prunes everything beyond the retention depth.
// Both statements share the caller's transaction, so a failed prune fails the write.
func (s *PasswordHistoryService) AddToHistory(ctx context.Context, staffID, newHash string) error {
	entry := domain.NewPasswordHistory(s.ids.NewID(), staffID, newHash, s.now())
	if err := s.history.Add(ctx, entry); err != nil {
		return fmt.Errorf("append password history: %w", err)
	}

	removed, err := s.history.Prune(ctx, staffID, s.depth)
	if err != nil {
		s.logger.Warn("prune password history failed", zap.String("staff_id", staffID), zap.Error(err))
		return fmt.Errorf("prune password history: %w", err)
	}
	if removed == 0 {
		s.logger.Debug("password history below retention depth", zap.String("staff_id", staffID), zap.Int("depth", s.depth))
	}
	return nil
}
