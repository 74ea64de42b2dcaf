package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/library-staff-auth/internal/core/domain"
	"github.com/arklim/library-staff-auth/internal/core/port"
	"github.com/arklim/library-staff-auth/internal/repository"
)

var staffColumns = []string{
	"id",
	"email",
	"password_hash",
	"name",
	"is_admin",
	"is_locked",
	"failed_login_attempts",
	"locked_at",
	"created_at",
	"updated_at",
}

// StaffRepository implements port.StaffRepository backed by PostgreSQL.
type StaffRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewStaffRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewStaffRepository(exec pgExecutor) *StaffRepository {
	return &StaffRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *StaffRepository) WithTx(tx pgx.Tx) *StaffRepository {
	if tx == nil {
		return r
	}
	return &StaffRepository{exec: tx, builder: r.builder}
}

// Create inserts a new staff row. A clash on the email index surfaces as domain.ErrDuplicateEmail.
func (r *StaffRepository) Create(ctx context.Context, staff *domain.Staff) error {
	snap := staff.Snapshot()
	stmt, args, err := r.builder.Insert(staffTable).
		Columns(staffColumns...).
		Values(
			snap.ID,
			snap.Email,
			snap.PasswordHash,
			snap.Name,
			snap.IsAdmin,
			snap.IsLocked,
			snap.FailedLoginAttempts,
			optionalTime(snap.LockedAt),
			snap.CreatedAt.UTC(),
			snap.UpdatedAt.UTC(),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert staff sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err, staffEmailIndex) {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("insert staff: %w", err)
	}
	return nil
}

// Update writes every mutable column of the aggregate.
func (r *StaffRepository) Update(ctx context.Context, staff *domain.Staff) error {
	snap := staff.Snapshot()
	stmt, args, err := r.builder.Update(staffTable).
		SetMap(map[string]any{
			"email":                 snap.Email,
			"password_hash":         snap.PasswordHash,
			"name":                  snap.Name,
			"is_admin":              snap.IsAdmin,
			"is_locked":             snap.IsLocked,
			"failed_login_attempts": snap.FailedLoginAttempts,
			"locked_at":             optionalTime(snap.LockedAt),
			"updated_at":            snap.UpdatedAt.UTC(),
		}).
		Where(squirrel.Eq{"id": snap.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update staff sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		if isUniqueViolation(err, staffEmailIndex) {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("update staff: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// GetByID loads a staff member by identifier.
func (r *StaffRepository) GetByID(ctx context.Context, id string) (*domain.Staff, error) {
	return r.getOne(ctx, squirrel.Eq{"id": strings.TrimSpace(id)}, false)
}

// GetByIDForUpdate loads a staff member and locks the row for the rest of the transaction.
func (r *StaffRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Staff, error) {
	return r.getOne(ctx, squirrel.Eq{"id": strings.TrimSpace(id)}, true)
}

// GetByEmail loads a staff member by normalised email.
func (r *StaffRepository) GetByEmail(ctx context.Context, email string) (*domain.Staff, error) {
	return r.getOne(ctx, squirrel.Eq{"email": strings.ToLower(strings.TrimSpace(email))}, false)
}

func (r *StaffRepository) getOne(ctx context.Context, where squirrel.Eq, forUpdate bool) (*domain.Staff, error) {
	builder := r.builder.Select(staffColumns...).
		From(staffTable).
		Where(where).
		Limit(1)
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}
	stmt, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select staff sql: %w", err)
	}

	staff, err := scanStaff(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select staff: %w", err)
	}
	return staff, nil
}

// EmailTakenByOther reports whether a different staff member already holds email.
func (r *StaffRepository) EmailTakenByOther(ctx context.Context, email string, excludeID string) (bool, error) {
	builder := r.builder.Select("1").
		From(staffTable).
		Where(squirrel.Eq{"email": strings.ToLower(strings.TrimSpace(email))}).
		Limit(1)
	if excludeID != "" {
		builder = builder.Where(squirrel.NotEq{"id": excludeID})
	}
	stmt, args, err := builder.ToSql()
	if err != nil {
		return false, fmt.Errorf("build email lookup sql: %w", err)
	}

	var one int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&one); err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("lookup email: %w", err)
	}
	return true, nil
}

// CountAdminsForUpdate locks every admin row and returns how many there are.
// Postgres rejects FOR UPDATE with aggregates, so rows are counted client side.
func (r *StaffRepository) CountAdminsForUpdate(ctx context.Context) (int, error) {
	stmt, args, err := r.builder.Select("id").
		From(staffTable).
		Where(squirrel.Eq{"is_admin": true}).
		OrderBy("id").
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build admin count sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("query admins: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("scan admin id: %w", err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate admins: %w", err)
	}
	return count, nil
}

// List returns one page of staff ordered by creation and the total row count.
func (r *StaffRepository) List(ctx context.Context, limit, offset int) ([]*domain.Staff, int, error) {
	countStmt, countArgs, err := r.builder.Select("COUNT(*)").From(staffTable).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count staff sql: %w", err)
	}
	var total int
	if err := r.exec.QueryRow(ctx, countStmt, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count staff: %w", err)
	}

	builder := r.builder.Select(staffColumns...).
		From(staffTable).
		OrderBy("created_at ASC", "id ASC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	if offset > 0 {
		builder = builder.Offset(uint64(offset))
	}
	stmt, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list staff sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query staff: %w", err)
	}
	defer rows.Close()

	result := make([]*domain.Staff, 0)
	for rows.Next() {
		staff, err := scanStaff(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan staff: %w", err)
		}
		result = append(result, staff)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate staff: %w", err)
	}
	return result, total, nil
}

func scanStaff(row pgx.Row) (*domain.Staff, error) {
	var (
		snap     domain.StaffSnapshot
		lockedAt sql.NullTime
	)
	if err := row.Scan(
		&snap.ID,
		&snap.Email,
		&snap.PasswordHash,
		&snap.Name,
		&snap.IsAdmin,
		&snap.IsLocked,
		&snap.FailedLoginAttempts,
		&lockedAt,
		&snap.CreatedAt,
		&snap.UpdatedAt,
	); err != nil {
		return nil, err
	}
	snap.LockedAt = nullableTimePtr(lockedAt)
	snap.CreatedAt = snap.CreatedAt.UTC()
	snap.UpdatedAt = snap.UpdatedAt.UTC()
	return domain.ReconstructStaff(snap), nil
}

var _ port.StaffRepository = (*StaffRepository)(nil)
