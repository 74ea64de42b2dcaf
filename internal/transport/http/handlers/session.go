package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/library-staff-auth/internal/transport/http/middleware"
	"github.com/arklim/library-staff-auth/internal/usecase"
)

// SessionHandler lets staff inspect and end their own sessions.
type SessionHandler struct {
	sessions *usecase.SessionService
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(sessions *usecase.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// RegisterRoutes binds session management routes. The group must already require a session.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.GET("", h.ListSessions)
	r.DELETE("/others", h.TerminateOtherSessions)
	r.DELETE("/:session_id", h.TerminateSession)
}

// ListSessions godoc
// @Summary List the caller's active sessions
// @Description Most recently active first; the session used for this request is flagged as current.
// @Tags Sessions
// @Produce json
// @Success 200 {object} SessionListResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/staff/sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
	staffID, currentID, ok := callerSession(c)
	if !ok {
		return
	}

	views, err := h.sessions.GetActiveSessions(c.Request.Context(), staffID, currentID)
	if err != nil {
		RespondError(c, err)
		return
	}

	payload := make([]SessionPayload, 0, len(views))
	for _, view := range views {
		payload = append(payload, newSessionPayload(view.Session, view.IsCurrent))
	}

	c.JSON(http.StatusOK, SessionListResponse{Sessions: payload, Total: len(payload)})
}

// TerminateSession godoc
// @Summary Terminate one of the caller's sessions
// @Description Sessions owned by other staff are never touched; terminated is false for them.
// @Tags Sessions
// @Produce json
// @Param session_id path string true "Session ID"
// @Success 200 {object} SessionTerminateResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/staff/sessions/{session_id} [delete]
func (h *SessionHandler) TerminateSession(c *gin.Context) {
	staffID, _, ok := callerSession(c)
	if !ok {
		return
	}

	sessionID := strings.TrimSpace(c.Param("session_id"))
	if sessionID == "" {
		RespondValidationError(c, "session_id is required")
		return
	}

	terminated, err := h.sessions.TerminateSession(c.Request.Context(), staffID, sessionID)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SessionTerminateResponse{Terminated: terminated})
}

// TerminateOtherSessions godoc
// @Summary Terminate every session of the caller except the current one
// @Tags Sessions
// @Produce json
// @Success 200 {object} SessionBulkTerminateResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/staff/sessions/others [delete]
func (h *SessionHandler) TerminateOtherSessions(c *gin.Context) {
	staffID, currentID, ok := callerSession(c)
	if !ok {
		return
	}

	count, err := h.sessions.TerminateOtherSessions(c.Request.Context(), staffID, currentID)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SessionBulkTerminateResponse{Terminated: count})
}

// callerSession returns the authenticated staff and session IDs, responding 401 when absent.
func callerSession(c *gin.Context) (string, string, bool) {
	staffID, ok := middleware.GetAuthenticatedStaffID(c)
	session, hasSession := middleware.GetCurrentSession(c)
	if !ok || !hasSession {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "UNAUTHENTICATED", "authentication required"))
		return "", "", false
	}
	return staffID, session.ID, true
}
