package domain

import "time"

// AuditEvent names a security-relevant operation.
type AuditEvent string

const (
	AuditLoginSucceeded          AuditEvent = "auth.login_succeeded"
	AuditLoginFailed             AuditEvent = "auth.login_failed"
	AuditLoginRejectedLocked     AuditEvent = "auth.login_rejected_locked"
	AuditAccountLocked           AuditEvent = "auth.account_locked"
	AuditLogout                  AuditEvent = "auth.logout"
	AuditSessionTerminated       AuditEvent = "session.terminated"
	AuditOtherSessionsTerminated AuditEvent = "session.others_terminated"
	AuditSessionEvicted          AuditEvent = "session.evicted"
	AuditSessionIdleTimeout      AuditEvent = "session.idle_timeout"
	AuditSessionAbsoluteTimeout  AuditEvent = "session.absolute_timeout"
	AuditStaffCreated            AuditEvent = "staff.created"
	AuditStaffUpdated            AuditEvent = "staff.updated"
	AuditStaffUnlocked           AuditEvent = "staff.unlocked"
	AuditPasswordChanged         AuditEvent = "staff.password_changed"
	AuditPasswordReset           AuditEvent = "staff.password_reset"
	AuditBreachCheckSkipped      AuditEvent = "staff.breach_check_skipped"
)

// AuditEntry is one append-only audit record.
type AuditEntry struct {
	ID         string
	Event      AuditEvent
	ActorID    string
	TargetID   string
	OccurredAt time.Time
	Details    map[string]any
}

// FieldChange is one before/after pair in an account update diff.
type FieldChange struct {
	Field  string `json:"field"`
	Before any    `json:"before"`
	After  any    `json:"after"`
}

// DiffStaff compares the audited fields of two snapshots. Password hashes are never included.
func DiffStaff(before, after StaffSnapshot) []FieldChange {
	var changes []FieldChange
	if before.Name != after.Name {
		changes = append(changes, FieldChange{Field: "name", Before: before.Name, After: after.Name})
	}
	if before.Email != after.Email {
		changes = append(changes, FieldChange{Field: "email", Before: before.Email, After: after.Email})
	}
	if before.IsAdmin != after.IsAdmin {
		changes = append(changes, FieldChange{
			Field:  "role",
			Before: string(RoleFromAdminFlag(before.IsAdmin)),
			After:  string(RoleFromAdminFlag(after.IsAdmin)),
		})
	}
	return changes
}
