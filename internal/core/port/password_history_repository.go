package port

import (
	"context"

	"github.com/arklim/library-staff-auth/internal/core/domain"
)

// PasswordHistoryRepository stores previous password hashes.
type PasswordHistoryRepository interface {
	// ListRecent returns up to limit entries, newest first.
	ListRecent(ctx context.Context, staffID string, limit int) ([]domain.PasswordHistory, error)
	Add(ctx context.Context, entry domain.PasswordHistory) error
	// Prune deletes everything but the newest keep entries and returns the number removed.
	Prune(ctx context.Context, staffID string, keep int) (int64, error)
}
