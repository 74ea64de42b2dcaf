package port

import (
	"context"

	"github.com/arklim/library-staff-auth/internal/core/domain"
)

// EventPublisher publishes security events to the message bus.
type EventPublisher interface {
	PublishSecurityEvent(ctx context.Context, entry domain.AuditEntry) error
}
