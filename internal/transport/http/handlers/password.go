package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/library-staff-auth/internal/usecase"
)

// PasswordHandler exposes the self-service password change endpoint.
type PasswordHandler struct {
	change *usecase.PasswordChangeService
}

// NewPasswordHandler constructs a password handler.
func NewPasswordHandler(change *usecase.PasswordChangeService) *PasswordHandler {
	return &PasswordHandler{change: change}
}

// ChangePassword godoc
// @Summary Change the caller's password
// @Description Re-verifies the current password, applies the policy, history and breach checks,
// @Description then terminates every other session of the caller.
// @Tags Password
// @Accept json
// @Produce json
// @Param request body PasswordChangeRequest true "Password change request"
// @Success 200 {object} PasswordChangeResponse
// @Failure 401 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/staff/password [put]
func (h *PasswordHandler) ChangePassword(c *gin.Context) {
	staffID, sessionID, ok := callerSession(c)
	if !ok {
		return
	}

	var req PasswordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondValidationError(c, "current_password, new_password and password_confirmation are required")
		return
	}

	result, err := h.change.ChangePassword(c.Request.Context(), usecase.PasswordChangeInput{
		StaffID:          staffID,
		CurrentSessionID: sessionID,
		CurrentPassword:  req.CurrentPassword,
		NewPassword:      req.NewPassword,
		Confirmation:     req.PasswordConfirmation,
	})
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, PasswordChangeResponse{
		Message:            "password changed",
		ChangedAt:          result.ChangedAt,
		SessionsTerminated: result.SessionsTerminated,
		BreachCheckSkipped: result.BreachCheckSkipped,
	})
}
