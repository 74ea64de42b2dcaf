package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/arklim/library-staff-auth/internal/core/domain"
	"github.com/arklim/library-staff-auth/internal/infra/logger"
)

const (
	// TraceIDKey is the gin context key holding the trace id echoed in error envelopes.
	TraceIDKey = "trace_id"
	// StaffIDKey is the gin context key for the authenticated staff id.
	StaffIDKey = "staff_id"

	staffKey         = "staff"
	sessionKey       = "session"
	requestContextID = "request_context"
)

// RequestContext holds request-scoped client information.
type RequestContext struct {
	TraceID   string
	StaffID   string
	IP        string
	UserAgent string
}

// EnrichContext records client metadata and resolves the trace id once per request.
// It runs after RequestID and Tracing so the trace id reflects the active span.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := logger.TraceIDFromContext(c.Request.Context())
		c.Set(TraceIDKey, traceID)

		c.Set(requestContextID, &RequestContext{
			TraceID:   traceID,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})

		c.Next()
	}
}

// GetTraceID retrieves the trace ID from the context.
func GetTraceID(c *gin.Context) string {
	if traceID, exists := c.Get(TraceIDKey); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return logger.TraceIDFromContext(c.Request.Context())
}

// GetRequestContext retrieves the full request context
func GetRequestContext(c *gin.Context) *RequestContext {
	if ctx, exists := c.Get(requestContextID); exists {
		if reqCtx, ok := ctx.(*RequestContext); ok {
			return reqCtx
		}
	}
	return &RequestContext{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

// setAuthenticated stores the resolved identity on both the gin and the request context.
func setAuthenticated(c *gin.Context, staff *domain.Staff, session *domain.Session) {
	c.Set(StaffIDKey, staff.ID())
	c.Set(staffKey, staff)
	c.Set(sessionKey, session)

	if reqCtx := GetRequestContext(c); reqCtx != nil {
		reqCtx.StaffID = staff.ID()
	}

	ctx := context.WithValue(c.Request.Context(), logger.StaffIDKey{}, staff.ID())
	c.Request = c.Request.WithContext(ctx)
}

// GetAuthenticatedStaff returns the staff member resolved by RequireSession.
func GetAuthenticatedStaff(c *gin.Context) (*domain.Staff, bool) {
	raw, exists := c.Get(staffKey)
	if !exists {
		return nil, false
	}
	staff, ok := raw.(*domain.Staff)
	return staff, ok && staff != nil
}

// GetCurrentSession returns the session resolved by RequireSession.
func GetCurrentSession(c *gin.Context) (*domain.Session, bool) {
	raw, exists := c.Get(sessionKey)
	if !exists {
		return nil, false
	}
	session, ok := raw.(*domain.Session)
	return session, ok && session != nil
}

// GetAuthenticatedStaffID retrieves the staff ID from context (helper for handlers)
func GetAuthenticatedStaffID(c *gin.Context) (string, bool) {
	staffID, exists := c.Get(StaffIDKey)
	if !exists {
		return "", false
	}

	if id, ok := staffID.(string); ok && id != "" {
		return id, true
	}

	return "", false
}
