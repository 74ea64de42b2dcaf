package domain

import "time"

// Session is a persisted login bound to one browser or device.
// ID is the SHA-256 digest of the token held by the client.
type Session struct {
	ID           string
	StaffID      string
	IPAddress    string
	UserAgent    string
	LastActivity time.Time
	CreatedAt    time.Time
}

// IdleFor reports how long the session has been inactive at the supplied moment.
func (s Session) IdleFor(at time.Time) time.Duration {
	return at.Sub(s.LastActivity)
}

// Age reports how long ago the session was established.
func (s Session) Age(at time.Time) time.Duration {
	return at.Sub(s.CreatedAt)
}

// SessionView is a session as presented to its owner.
type SessionView struct {
	Session
	IsCurrent bool
}

// SessionLimitFor returns the number of concurrent sessions allowed for a role.
func SessionLimitFor(isAdmin bool, adminLimit, staffLimit int) int {
	if isAdmin {
		return adminLimit
	}
	return staffLimit
}

// SessionTerminationReason records why a session row disappeared.
type SessionTerminationReason string

const (
	SessionTerminatedByOwner  SessionTerminationReason = "terminated"
	SessionTerminatedByLogout SessionTerminationReason = "logout"
	SessionEvicted            SessionTerminationReason = "evicted"
	SessionIdleTimeout        SessionTerminationReason = "idle_timeout"
	SessionAbsoluteTimeout    SessionTerminationReason = "absolute_timeout"
	SessionTerminatedOnLock   SessionTerminationReason = "account_locked"
	SessionTerminatedOnReset  SessionTerminationReason = "password_reset"
	SessionTerminatedOnChange SessionTerminationReason = "password_changed"
)

// IsTimeout reports whether the session ended because it outlived a timeout.
func (r SessionTerminationReason) IsTimeout() bool {
	return r == SessionIdleTimeout || r == SessionAbsoluteTimeout
}
