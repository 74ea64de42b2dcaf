package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/arklim/library-staff-auth/internal/core/domain"
	"github.com/arklim/library-staff-auth/internal/core/port"
)

// AuditLogRepository appends audit entries to library.audit_logs.
type AuditLogRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAuditLogRepository constructs an append-only audit writer.
func NewAuditLogRepository(exec pgExecutor) *AuditLogRepository {
	return &AuditLogRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Append inserts one audit entry.
func (r *AuditLogRepository) Append(ctx context.Context, entry domain.AuditEntry) error {
	details, err := marshalAuditDetails(entry.Details)
	if err != nil {
		return err
	}

	stmt, args, err := r.builder.Insert(auditLogsTable).
		Columns("id", "event", "actor_id", "target_id", "occurred_at", "details").
		Values(
			entry.ID,
			string(entry.Event),
			optionalString(entry.ActorID),
			optionalString(entry.TargetID),
			entry.OccurredAt.UTC(),
			details,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert audit log sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func marshalAuditDetails(details map[string]any) (any, error) {
	if len(details) == 0 {
		return nil, nil
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal audit details: %w", err)
	}
	return payload, nil
}

var _ port.AuditLogRepository = (*AuditLogRepository)(nil)
