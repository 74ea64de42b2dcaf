package postgres

import (
	"context"
	"fmt"
	"strings"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/library-staff-auth/internal/core/domain"
	"github.com/arklim/library-staff-auth/internal/core/port"
)

// PasswordHistoryRepository implements port.PasswordHistoryRepository for PostgreSQL.
type PasswordHistoryRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPasswordHistoryRepository constructs a repository backed by exec.
func NewPasswordHistoryRepository(exec pgExecutor) *PasswordHistoryRepository {
	return &PasswordHistoryRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *PasswordHistoryRepository) WithTx(tx pgx.Tx) *PasswordHistoryRepository {
	if tx == nil {
		return r
	}
	return &PasswordHistoryRepository{exec: tx, builder: r.builder}
}

// ListRecent returns the newest entries first.
func (r *PasswordHistoryRepository) ListRecent(ctx context.Context, staffID string, limit int) ([]domain.PasswordHistory, error) {
	trimmedID := strings.TrimSpace(staffID)
	if trimmedID == "" {
		return nil, fmt.Errorf("staff id is required")
	}

	builder := r.builder.Select("id", "staff_id", "password_hash", "created_at").
		From(passwordHistoryTable).
		Where(squirrel.Eq{"staff_id": trimmedID}).
		OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	stmt, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select password history sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query password history: %w", err)
	}
	defer rows.Close()

	history := make([]domain.PasswordHistory, 0)
	for rows.Next() {
		var record domain.PasswordHistory
		if err := rows.Scan(&record.ID, &record.StaffID, &record.PasswordHash, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan password history: %w", err)
		}
		history = append(history, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate password history: %w", err)
	}
	return history, nil
}

// Add appends a history entry.
func (r *PasswordHistoryRepository) Add(ctx context.Context, entry domain.PasswordHistory) error {
	if strings.TrimSpace(entry.StaffID) == "" {
		return fmt.Errorf("staff id is required")
	}
	if strings.TrimSpace(entry.PasswordHash) == "" {
		return fmt.Errorf("password hash is required")
	}

	stmt, args, err := r.builder.Insert(passwordHistoryTable).
		Columns("id", "staff_id", "password_hash", "created_at").
		Values(entry.ID, entry.StaffID, entry.PasswordHash, entry.CreatedAt.UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert password history sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert password history: %w", err)
	}
	return nil
}

// Prune keeps only the newest keep entries for the staff member.
func (r *PasswordHistoryRepository) Prune(ctx context.Context, staffID string, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	trimmedID := strings.TrimSpace(staffID)
	if trimmedID == "" {
		return 0, fmt.Errorf("staff id is required")
	}

	stmt := `
		DELETE FROM library.password_histories
		 WHERE staff_id = $1
		   AND id NOT IN (
				SELECT id
				  FROM library.password_histories
				 WHERE staff_id = $1
				 ORDER BY created_at DESC, id DESC
				 LIMIT $2
		   )
	`

	tag, err := r.exec.Exec(ctx, stmt, trimmedID, keep)
	if err != nil {
		return 0, fmt.Errorf("prune password history: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ port.PasswordHistoryRepository = (*PasswordHistoryRepository)(nil)
