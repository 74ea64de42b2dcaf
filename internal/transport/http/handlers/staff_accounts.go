package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/library-staff-auth/internal/transport/http/middleware"
	"github.com/arklim/library-staff-auth/internal/usecase"
)

// StaffAccountHandler exposes administrative account management.
type StaffAccountHandler struct {
	accounts *usecase.StaffAccountService
}

// NewStaffAccountHandler constructs a staff account handler.
func NewStaffAccountHandler(accounts *usecase.StaffAccountService) *StaffAccountHandler {
	return &StaffAccountHandler{accounts: accounts}
}

// RegisterRoutes binds account routes. The group must already require an admin session.
func (h *StaffAccountHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.GET("", h.List)
	r.POST("", h.Create)
	r.GET("/:staff_id", h.Get)
	r.PUT("/:staff_id", h.Update)
	r.POST("/:staff_id/reset-password", h.ResetPassword)
	r.POST("/:staff_id/unlock", h.Unlock)
}

// List godoc
// @Summary List staff accounts
// @Tags Staff
// @Produce json
// @Param limit query int false "Page size (default 20, max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} StaffListResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/staff/accounts [get]
func (h *StaffAccountHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	page, err := h.accounts.List(c.Request.Context(), limit, offset)
	if err != nil {
		RespondError(c, err)
		return
	}

	items := make([]StaffPayload, 0, len(page.Items))
	for _, staff := range page.Items {
		items = append(items, newStaffPayload(staff))
	}

	c.JSON(http.StatusOK, StaffListResponse{
		Items:  items,
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}

// Get godoc
// @Summary Get one staff account
// @Tags Staff
// @Produce json
// @Param staff_id path string true "Staff ID"
// @Success 200 {object} StaffPayload
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/staff/accounts/{staff_id} [get]
func (h *StaffAccountHandler) Get(c *gin.Context) {
	staff, err := h.accounts.Get(c.Request.Context(), c.Param("staff_id"))
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newStaffPayload(staff))
}

// Create godoc
// @Summary Create a staff account with a generated temporary password
// @Tags Staff
// @Accept json
// @Produce json
// @Param request body StaffCreateRequest true "Account"
// @Success 201 {object} StaffCreateResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/staff/accounts [post]
func (h *StaffAccountHandler) Create(c *gin.Context) {
	operatorID, _ := middleware.GetAuthenticatedStaffID(c)

	var req StaffCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondValidationError(c, "email and name are required")
		return
	}

	created, err := h.accounts.Create(c.Request.Context(), operatorID, usecase.CreateStaffInput{
		Email:   req.Email,
		Name:    req.Name,
		IsAdmin: req.IsAdmin,
	})
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, StaffCreateResponse{
		Staff:             newStaffPayload(created.Staff),
		TemporaryPassword: created.TemporaryPassword,
	})
}

// Update godoc
// @Summary Update a staff account
// @Description updated_at must echo the value last read; a mismatch returns 409 and the caller must reload.
// @Tags Staff
// @Accept json
// @Produce json
// @Param staff_id path string true "Staff ID"
// @Param request body StaffUpdateRequest true "Changes"
// @Success 200 {object} StaffPayload
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/staff/accounts/{staff_id} [put]
func (h *StaffAccountHandler) Update(c *gin.Context) {
	operatorID, _ := middleware.GetAuthenticatedStaffID(c)

	var req StaffUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondValidationError(c, "invalid account payload")
		return
	}
	if req.UpdatedAt.IsZero() {
		RespondValidationError(c, "updated_at is required")
		return
	}

	updated, err := h.accounts.Update(c.Request.Context(), operatorID, usecase.UpdateStaffInput{
		StaffID:           strings.TrimSpace(c.Param("staff_id")),
		Name:              req.Name,
		Email:             req.Email,
		IsAdmin:           req.IsAdmin,
		ObservedUpdatedAt: req.UpdatedAt,
	})
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newStaffPayload(updated))
}

// ResetPassword godoc
// @Summary Reset a staff member's password
// @Description Generates a temporary password and signs out every session of the account.
// @Tags Staff
// @Produce json
// @Param staff_id path string true "Staff ID"
// @Success 200 {object} PasswordResetResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/staff/accounts/{staff_id}/reset-password [post]
func (h *StaffAccountHandler) ResetPassword(c *gin.Context) {
	operatorID, _ := middleware.GetAuthenticatedStaffID(c)

	temporary, err := h.accounts.ResetPassword(c.Request.Context(), operatorID, c.Param("staff_id"))
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, PasswordResetResponse{TemporaryPassword: temporary})
}

// Unlock godoc
// @Summary Unlock a locked staff account
// @Tags Staff
// @Produce json
// @Param staff_id path string true "Staff ID"
// @Success 200 {object} StaffPayload
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/staff/accounts/{staff_id}/unlock [post]
func (h *StaffAccountHandler) Unlock(c *gin.Context) {
	operatorID, _ := middleware.GetAuthenticatedStaffID(c)

	staff, err := h.accounts.Unlock(c.Request.Context(), operatorID, c.Param("staff_id"))
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newStaffPayload(staff))
}
