package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/library-staff-auth/internal/transport/http/middleware"
	"github.com/arklim/library-staff-auth/internal/usecase"
)

// CookieSettings controls the session cookie issued at login.
type CookieSettings struct {
	Name   string
	Domain string
	Secure bool
	MaxAge time.Duration
}

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	login  *usecase.LoginService
	cookie CookieSettings
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(login *usecase.LoginService, cookie CookieSettings) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = "staff_session"
	}
	return &AuthHandler{login: login, cookie: cookie}
}

// RegisterRoutes binds authentication routes, applying optional middleware ahead of the login handler.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, requireSession gin.HandlerFunc, loginMiddlewares ...gin.HandlerFunc) {
	chain := append([]gin.HandlerFunc{}, loginMiddlewares...)
	chain = append(chain, h.Login)
	r.POST("/login", chain...)

	r.POST("/logout", requireSession, h.Logout)
	r.GET("/user", requireSession, h.CurrentUser)
}

// Login godoc
// @Summary Authenticate a staff member with email and password
// @Description Establishes a session, sets the session cookie and returns the staff profile.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} LoginResponse
// @Failure 401 {object} ErrorResponse "Invalid credentials"
// @Failure 422 {object} ErrorResponse "Malformed request"
// @Failure 423 {object} ErrorResponse "Account locked"
// @Failure 429 {object} ErrorResponse "Rate limit exceeded"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondValidationError(c, "email and password are required")
		return
	}

	reqCtx := middleware.GetRequestContext(c)
	result, err := h.login.Login(c.Request.Context(), usecase.LoginInput{
		Email:     strings.TrimSpace(req.Email),
		Password:  req.Password,
		IPAddress: reqCtx.IP,
		UserAgent: reqCtx.UserAgent,
	})
	if err != nil {
		RespondError(c, err)
		return
	}

	h.setSessionCookie(c, result.Token)

	c.JSON(http.StatusOK, LoginResponse{
		Staff:           newStaffPayload(result.Staff),
		Session:         newSessionPayload(result.Session, true),
		SessionToken:    result.Token,
		EvictedSessions: result.Evicted,
	})
}

// Logout godoc
// @Summary Logout the current session
// @Description Terminates the caller's session and clears the session cookie.
// @Tags Authentication
// @Produce json
// @Success 200 {object} MessageResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	staffID, ok := middleware.GetAuthenticatedStaffID(c)
	session, hasSession := middleware.GetCurrentSession(c)
	if !ok || !hasSession {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "UNAUTHENTICATED", "authentication required"))
		return
	}

	if err := h.login.Logout(c.Request.Context(), staffID, session.ID); err != nil {
		RespondError(c, err)
		return
	}

	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}

// CurrentUser godoc
// @Summary Return the authenticated staff member
// @Tags Authentication
// @Produce json
// @Success 200 {object} CurrentStaffResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/user [get]
func (h *AuthHandler) CurrentUser(c *gin.Context) {
	staff, ok := middleware.GetAuthenticatedStaff(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "UNAUTHENTICATED", "authentication required"))
		return
	}

	c.JSON(http.StatusOK, CurrentStaffResponse{Staff: newStaffPayload(staff)})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookie.Name, token, int(h.cookie.MaxAge/time.Second), "/", h.cookie.Domain, h.cookie.Secure, true)
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", h.cookie.Domain, h.cookie.Secure, true)
}
