package port

import (
	"context"

	"github.com/arklim/library-staff-auth/internal/core/domain"
)

// AuditSink receives append-only audit records. Implementations must absorb their own failures.
type AuditSink interface {
	Record(ctx context.Context, entry domain.AuditEntry)
}

// AuditLogRepository appends audit records to durable storage.
type AuditLogRepository interface {
	Append(ctx context.Context, entry domain.AuditEntry) error
}
