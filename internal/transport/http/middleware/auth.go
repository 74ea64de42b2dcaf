package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/library-staff-auth/internal/core/domain"
	"github.com/arklim/library-staff-auth/internal/infra/logger"
	"github.com/arklim/library-staff-auth/internal/usecase"
)

// ErrorBody matches the handlers.ErrorBody structure
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error      ErrorBody `json:"error"`
	TraceID    string    `json:"trace_id,omitempty"`
	RetryAfter *int      `json:"retry_after,omitempty"`
}

// newErrorResponse creates an error response with trace ID
func newErrorResponse(c *gin.Context, code, message string) ErrorResponse {
	return ErrorResponse{
		Error:   ErrorBody{Code: code, Message: message},
		TraceID: GetTraceID(c),
	}
}

// SessionResolver turns a session ID into an authenticated identity.
type SessionResolver interface {
	ResolveSession(ctx context.Context, sessionID string) (*usecase.AuthenticatedSession, error)
}

// TokenHasher derives the stored session ID from a client token.
type TokenHasher interface {
	SessionID(token string) string
}

// SessionAuthOptions configures where RequireSession looks for the session token.
type SessionAuthOptions struct {
	CookieName string
}

// RequireSession reads the session token from the session cookie or a Bearer header and
// re-validates it on every request. Nothing about the session is cached between requests.
func RequireSession(resolver SessionResolver, tokens TokenHasher, opts SessionAuthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := sessionToken(c, opts.CookieName)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "UNAUTHENTICATED", "authentication required"))
			return
		}

		auth, err := resolver.ResolveSession(c.Request.Context(), tokens.SessionID(token))
		if err != nil {
			status, body := sessionError(c, err)
			c.AbortWithStatusJSON(status, body)
			return
		}

		setAuthenticated(c, auth.Staff, auth.Session)
		c.Next()
	}
}

// RequireAdmin rejects authenticated staff without the admin flag. It must follow RequireSession.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		staff, ok := GetAuthenticatedStaff(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "UNAUTHENTICATED", "authentication required"))
			return
		}

		if !staff.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "FORBIDDEN", "administrator role required"))
			return
		}

		c.Next()
	}
}

func sessionToken(c *gin.Context, cookieName string) (string, bool) {
	if cookieName != "" {
		if value, err := c.Cookie(cookieName); err == nil && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), true
		}
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func sessionError(c *gin.Context, err error) (int, ErrorResponse) {
	var rejected *domain.SessionRejectedError
	if errors.As(err, &rejected) {
		switch {
		case rejected.Reason == domain.SessionEvicted:
			return http.StatusUnauthorized, newErrorResponse(c, "SESSION_EVICTED", "session was ended by a newer login")
		case rejected.Reason.IsTimeout():
			return http.StatusUnauthorized, newErrorResponse(c, "SESSION_EXPIRED", "session expired")
		default:
			return http.StatusUnauthorized, newErrorResponse(c, "SESSION_TERMINATED", "session was terminated")
		}
	}

	switch {
	case errors.Is(err, domain.ErrSessionExpired):
		return http.StatusUnauthorized, newErrorResponse(c, "SESSION_EXPIRED", "session expired")
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusUnauthorized, newErrorResponse(c, "UNAUTHENTICATED", "authentication required")
	}

	logger.WithContext(c.Request.Context()).Error("session resolution failed", zap.Error(err))
	return http.StatusInternalServerError, newErrorResponse(c, "INTERNAL_ERROR", "internal server error")
}
