package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/library-staff-auth/internal/core/domain"
	"github.com/arklim/library-staff-auth/internal/transport/http/middleware"
)

// ErrorDetail names one offending field or rule.
type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// ErrorBody is the taxonomy code and client-safe message of a failure.
type ErrorBody struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorResponse is the standard error envelope with trace ID for debugging.
type ErrorResponse struct {
	Error      ErrorBody `json:"error"`
	TraceID    string    `json:"trace_id,omitempty"`
	RetryAfter *int      `json:"retry_after,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, code, message string) ErrorResponse {
	return ErrorResponse{
		Error:   ErrorBody{Code: code, Message: message},
		TraceID: middleware.GetTraceID(c),
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// StaffPayload describes a staff account returned by the API. The password hash is never exposed.
type StaffPayload struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	Name                string     `json:"name"`
	Role                string     `json:"role"`
	IsAdmin             bool       `json:"is_admin"`
	IsLocked            bool       `json:"is_locked"`
	FailedLoginAttempts int        `json:"failed_login_attempts"`
	LockedAt            *time.Time `json:"locked_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse describes the response returned for a successful login.
type LoginResponse struct {
	Staff           StaffPayload   `json:"staff"`
	Session         SessionPayload `json:"session"`
	SessionToken    string         `json:"session_token"`
	EvictedSessions int            `json:"evicted_sessions"`
}

// CurrentStaffResponse wraps the authenticated staff member.
type CurrentStaffResponse struct {
	Staff StaffPayload `json:"staff"`
}

// SessionPayload describes a session view in API responses.
type SessionPayload struct {
	ID           string    `json:"id"`
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
	IsCurrent    bool      `json:"is_current"`
}

// SessionListResponse wraps the caller's active sessions.
type SessionListResponse struct {
	Sessions []SessionPayload `json:"sessions"`
	Total    int              `json:"total"`
}

// SessionTerminateResponse indicates whether the session was terminated.
type SessionTerminateResponse struct {
	Terminated bool `json:"terminated"`
}

// SessionBulkTerminateResponse reports how many other sessions were terminated.
type SessionBulkTerminateResponse struct {
	Terminated int `json:"terminated"`
}

// PasswordChangeRequest captures a self-service password change.
type PasswordChangeRequest struct {
	CurrentPassword      string `json:"current_password" binding:"required"`
	NewPassword          string `json:"new_password" binding:"required"`
	PasswordConfirmation string `json:"password_confirmation" binding:"required"`
}

// PasswordChangeResponse conveys the result of a password change.
type PasswordChangeResponse struct {
	Message            string    `json:"message"`
	ChangedAt          time.Time `json:"changed_at"`
	SessionsTerminated int       `json:"sessions_terminated"`
	BreachCheckSkipped bool      `json:"breach_check_skipped,omitempty"`
}

// StaffCreateRequest defines the payload for creating an account.
type StaffCreateRequest struct {
	Email   string `json:"email" binding:"required"`
	Name    string `json:"name" binding:"required"`
	IsAdmin bool   `json:"is_admin"`
}

// StaffCreateResponse returns the new account and its one-time temporary password.
type StaffCreateResponse struct {
	Staff             StaffPayload `json:"staff"`
	TemporaryPassword string       `json:"temporary_password"`
}

// StaffUpdateRequest defines an administrative edit. UpdatedAt is the version the operator last saw.
type StaffUpdateRequest struct {
	Name      *string   `json:"name,omitempty"`
	Email     *string   `json:"email,omitempty"`
	IsAdmin   *bool     `json:"is_admin,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StaffListResponse is one page of the account listing.
type StaffListResponse struct {
	Items  []StaffPayload `json:"items"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// PasswordResetResponse returns the generated temporary password.
type PasswordResetResponse struct {
	TemporaryPassword string `json:"temporary_password"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports the result of each dependency check.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func newStaffPayload(staff *domain.Staff) StaffPayload {
	return StaffPayload{
		ID:                  staff.ID(),
		Email:               staff.Email().String(),
		Name:                staff.Name().String(),
		Role:                string(staff.Role()),
		IsAdmin:             staff.IsAdmin(),
		IsLocked:            staff.IsLocked(),
		FailedLoginAttempts: staff.FailedLoginAttempts(),
		LockedAt:            staff.LockedAt(),
		CreatedAt:           staff.CreatedAt(),
		UpdatedAt:           staff.UpdatedAt(),
	}
}

func newSessionPayload(session domain.Session, isCurrent bool) SessionPayload {
	return SessionPayload{
		ID:           session.ID,
		IPAddress:    session.IPAddress,
		UserAgent:    session.UserAgent,
		LastActivity: session.LastActivity,
		CreatedAt:    session.CreatedAt,
		IsCurrent:    isCurrent,
	}
}
