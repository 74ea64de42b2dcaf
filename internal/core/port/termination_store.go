package port

import (
	"context"
	"time"

	"github.com/arklim/library-staff-auth/internal/core/domain"
)

// SessionTerminationStore remembers why a session was removed so later requests can be told.
type SessionTerminationStore interface {
	MarkTerminated(ctx context.Context, sessionID string, reason domain.SessionTerminationReason, ttl time.Duration) error
	TerminationReason(ctx context.Context, sessionID string) (domain.SessionTerminationReason, bool, error)
}
