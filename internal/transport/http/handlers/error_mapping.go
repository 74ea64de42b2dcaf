package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/library-staff-auth/internal/core/domain"
	"github.com/arklim/library-staff-auth/internal/infra/logger"
)

// ErrorCase maps a sentinel error to an HTTP status, taxonomy code and client message.
type ErrorCase struct {
	Err     error
	Status  int
	Code    string
	Message string
}

// domainErrorCases is consulted in order; the first errors.Is match wins.
var domainErrorCases = []ErrorCase{
	{Err: domain.ErrInvalidEmail, Status: http.StatusUnprocessableEntity, Code: "INVALID_EMAIL", Message: "email is invalid"},
	{Err: domain.ErrInvalidPassword, Status: http.StatusUnprocessableEntity, Code: "INVALID_PASSWORD", Message: "password is invalid"},
	{Err: domain.ErrInvalidStaffName, Status: http.StatusUnprocessableEntity, Code: "INVALID_STAFF_NAME", Message: "name is invalid"},
	{Err: domain.ErrAuthenticationFailed, Status: http.StatusUnauthorized, Code: "AUTHENTICATION_FAILED", Message: "invalid email or password"},
	{Err: domain.ErrAccountLocked, Status: http.StatusLocked, Code: "ACCOUNT_LOCKED", Message: "account is locked"},
	{Err: domain.ErrStaffNotFound, Status: http.StatusNotFound, Code: "STAFF_NOT_FOUND", Message: "staff member not found"},
	{Err: domain.ErrDuplicateEmail, Status: http.StatusUnprocessableEntity, Code: "DUPLICATE_EMAIL", Message: "email is already registered"},
	{Err: domain.ErrOptimisticLockConflict, Status: http.StatusConflict, Code: "OPTIMISTIC_LOCK_CONFLICT", Message: "record was modified by another request; reload and retry"},
	{Err: domain.ErrSelfRoleChangeForbidden, Status: http.StatusUnprocessableEntity, Code: "SELF_ROLE_CHANGE_FORBIDDEN", Message: "you cannot change your own role"},
	{Err: domain.ErrLastAdminProtected, Status: http.StatusUnprocessableEntity, Code: "LAST_ADMIN_PROTECTED", Message: "at least one administrator must remain"},
	{Err: domain.ErrPasswordReused, Status: http.StatusUnprocessableEntity, Code: "PASSWORD_REUSED", Message: "password was used recently"},
	{Err: domain.ErrPasswordPolicy, Status: http.StatusUnprocessableEntity, Code: "PASSWORD_POLICY_VIOLATION", Message: "password does not meet requirements"},
	{Err: domain.ErrPasswordBreached, Status: http.StatusUnprocessableEntity, Code: "PASSWORD_BREACHED", Message: "password appears in a known data breach"},
	{Err: domain.ErrCurrentPasswordMismatch, Status: http.StatusUnprocessableEntity, Code: "CURRENT_PASSWORD_MISMATCH", Message: "current password is incorrect"},
	{Err: domain.ErrPasswordConfirmationMismatch, Status: http.StatusUnprocessableEntity, Code: "PASSWORD_CONFIRMATION_MISMATCH", Message: "password confirmation does not match"},
	{Err: domain.ErrBreachCheckUnavailable, Status: http.StatusServiceUnavailable, Code: "BREACH_CHECK_UNAVAILABLE", Message: "password could not be checked right now; try again later"},
	{Err: domain.ErrSessionExpired, Status: http.StatusUnauthorized, Code: "SESSION_EXPIRED", Message: "session expired"},
	{Err: domain.ErrSessionNotFound, Status: http.StatusUnauthorized, Code: "UNAUTHENTICATED", Message: "authentication required"},
}

// RespondError translates err into the standard envelope using the domain taxonomy.
func RespondError(c *gin.Context, err error) {
	RespondWithMappedError(c, err, domainErrorCases)
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic
// internal error. Unmapped errors are logged and never echoed to the client.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil || !errors.Is(err, cs.Err) {
			continue
		}

		resp := NewErrorResponse(c, cs.Code, cs.Message)
		resp.Error.Details = errorDetails(err)

		var locked *domain.AccountLockedError
		if errors.As(err, &locked) {
			seconds := locked.RetryAfterSeconds()
			resp.RetryAfter = &seconds
			c.Header("Retry-After", strconv.Itoa(seconds))
		}

		c.JSON(cs.Status, resp)
		return
	}

	_ = c.Error(err)
	logger.WithContext(c.Request.Context()).Error("unhandled request error",
		zap.String("route", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "INTERNAL_ERROR", "internal server error"))
}

// RespondValidationError reports a malformed request body.
func RespondValidationError(c *gin.Context, message string) {
	c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(c, "VALIDATION_ERROR", message))
}

func errorDetails(err error) []ErrorDetail {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		return []ErrorDetail{{Field: validation.Field, Code: validation.Reason}}
	}

	var policy *domain.PasswordPolicyError
	if errors.As(err, &policy) && len(policy.Violations) > 0 {
		details := make([]ErrorDetail, 0, len(policy.Violations))
		for _, v := range policy.Violations {
			details = append(details, ErrorDetail{Field: "new_password", Code: v.Code, Message: v.Message})
		}
		return details
	}

	return nil
}
