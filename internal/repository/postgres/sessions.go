package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/library-staff-auth/internal/core/domain"
	"github.com/arklim/library-staff-auth/internal/core/port"
	"github.com/arklim/library-staff-auth/internal/repository"
)

var sessionColumns = []string{"id", "staff_id", "ip_address", "user_agent", "last_activity", "created_at"}

// SessionRepository implements port.SessionRepository backed by PostgreSQL.
type SessionRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSessionRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewSessionRepository(exec pgExecutor) *SessionRepository {
	return &SessionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *SessionRepository) WithTx(tx pgx.Tx) *SessionRepository {
	if tx == nil {
		return r
	}
	return &SessionRepository{exec: tx, builder: r.builder}
}

// Create persists a new session.
func (r *SessionRepository) Create(ctx context.Context, session domain.Session) error {
	stmt, args, err := r.builder.Insert(sessionsTable).
		Columns(sessionColumns...).
		Values(
			session.ID,
			session.StaffID,
			optionalString(session.IPAddress),
			optionalString(session.UserAgent),
			session.LastActivity.UTC(),
			session.CreatedAt.UTC(),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetByID fetches a session by its identifier.
func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	stmt, args, err := r.builder.Select(sessionColumns...).
		From(sessionsTable).
		Where(squirrel.Eq{"id": strings.TrimSpace(sessionID)}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	session, err := scanSession(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select session: %w", err)
	}
	return session, nil
}

// ListByStaff returns all sessions for the staff member, most recently active first.
func (r *SessionRepository) ListByStaff(ctx context.Context, staffID string) ([]domain.Session, error) {
	stmt, args, err := r.builder.Select(sessionColumns...).
		From(sessionsTable).
		Where(squirrel.Eq{"staff_id": staffID}).
		OrderBy("last_activity DESC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sessions sql: %w", err)
	}
	return r.querySessions(ctx, stmt, args...)
}

// ListOthersForUpdate locks the staff member's other sessions, oldest activity first.
func (r *SessionRepository) ListOthersForUpdate(ctx context.Context, staffID string, excludeID string) ([]domain.Session, error) {
	stmt, args, err := r.builder.Select(sessionColumns...).
		From(sessionsTable).
		Where(squirrel.Eq{"staff_id": staffID}).
		Where(squirrel.NotEq{"id": excludeID}).
		OrderBy("last_activity ASC", "id ASC").
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list other sessions sql: %w", err)
	}
	return r.querySessions(ctx, stmt, args...)
}

func (r *SessionRepository) querySessions(ctx context.Context, stmt string, args ...any) ([]domain.Session, error) {
	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]domain.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// TouchActivity records activity on a session.
func (r *SessionRepository) TouchActivity(ctx context.Context, sessionID string, at time.Time) error {
	stmt, args, err := r.builder.Update(sessionsTable).
		Set("last_activity", at.UTC()).
		Where(squirrel.Eq{"id": sessionID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch session sql: %w", err)
	}
	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// Delete removes a session and reports whether a row existed.
func (r *SessionRepository) Delete(ctx context.Context, sessionID string) (bool, error) {
	affected, err := r.delete(ctx, squirrel.Eq{"id": sessionID})
	return affected > 0, err
}

// DeleteOwned removes the session only if staffID owns it.
func (r *SessionRepository) DeleteOwned(ctx context.Context, staffID string, sessionID string) (bool, error) {
	affected, err := r.delete(ctx, squirrel.Eq{"id": sessionID, "staff_id": staffID})
	return affected > 0, err
}

// DeleteByIDs removes the listed sessions.
func (r *SessionRepository) DeleteByIDs(ctx context.Context, sessionIDs []string) (int64, error) {
	if len(sessionIDs) == 0 {
		return 0, nil
	}
	return r.delete(ctx, squirrel.Eq{"id": sessionIDs})
}

// DeleteAllExcept removes every other session of the staff member and returns their IDs.
func (r *SessionRepository) DeleteAllExcept(ctx context.Context, staffID string, keepID string) ([]string, error) {
	builder := r.builder.Delete(sessionsTable).
		Where(squirrel.Eq{"staff_id": staffID})
	if keepID != "" {
		builder = builder.Where(squirrel.NotEq{"id": keepID})
	}
	stmt, args, err := builder.Suffix("RETURNING id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build delete sessions sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("delete sessions: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan deleted session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deleted sessions: %w", err)
	}
	return ids, nil
}

func (r *SessionRepository) delete(ctx context.Context, where squirrel.Eq) (int64, error) {
	stmt, args, err := r.builder.Delete(sessionsTable).Where(where).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete session sql: %w", err)
	}
	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete session: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var (
		session   domain.Session
		ipAddress sql.NullString
		userAgent sql.NullString
	)
	if err := row.Scan(
		&session.ID,
		&session.StaffID,
		&ipAddress,
		&userAgent,
		&session.LastActivity,
		&session.CreatedAt,
	); err != nil {
		return nil, err
	}
	session.IPAddress = nullableString(ipAddress)
	session.UserAgent = nullableString(userAgent)
	session.LastActivity = session.LastActivity.UTC()
	session.CreatedAt = session.CreatedAt.UTC()
	return &session, nil
}

var _ port.SessionRepository = (*SessionRepository)(nil)
