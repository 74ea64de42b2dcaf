package port

import (
	"context"
	"time"

	"github.com/arklim/library-staff-auth/internal/core/domain"
)

// SessionRepository deals with session storage.
type SessionRepository interface {
	Create(ctx context.Context, session domain.Session) error
	GetByID(ctx context.Context, sessionID string) (*domain.Session, error)
	// ListByStaff returns every session of the staff member, most recently active first.
	ListByStaff(ctx context.Context, staffID string) ([]domain.Session, error)
	// ListOthersForUpdate locks and returns the staff member's sessions except excludeID, oldest activity first.
	ListOthersForUpdate(ctx context.Context, staffID string, excludeID string) ([]domain.Session, error)
	TouchActivity(ctx context.Context, sessionID string, at time.Time) error
	Delete(ctx context.Context, sessionID string) (bool, error)
	DeleteOwned(ctx context.Context, staffID string, sessionID string) (bool, error)
	DeleteByIDs(ctx context.Context, sessionIDs []string) (int64, error)
	// DeleteAllExcept removes the staff member's sessions other than keepID and returns the removed IDs.
	DeleteAllExcept(ctx context.Context, staffID string, keepID string) ([]string, error)
}
