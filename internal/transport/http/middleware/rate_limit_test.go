package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

type fakeRateLimitStore struct {
	trimErr   error
	count     int
	countErr  error
	oldest    time.Time
	hasOldest bool
	oldestErr error
	recordErr error

	trimmedKeys []string
	recordedKey string
	recordCalls int
}

func (f *fakeRateLimitStore) TrimWindow(_ context.Context, identifier string, _ time.Duration, _ time.Time) error {
	f.trimmedKeys = append(f.trimmedKeys, identifier)
	return f.trimErr
}

func (f *fakeRateLimitStore) CountAttempts(context.Context, string, time.Duration, time.Time) (int, error) {
	return f.count, f.countErr
}

func (f *fakeRateLimitStore) RecordAttempt(_ context.Context, identifier string, _ time.Time) error {
	f.recordedKey = identifier
	f.recordCalls++
	return f.recordErr
}

func (f *fakeRateLimitStore) OldestAttempt(context.Context, string, time.Duration, time.Time) (time.Time, bool, error) {
	return f.oldest, f.hasOldest, f.oldestErr
}

func loginRule() RateLimitRule {
	return RateLimitRule{
		Name:   "auth_login_ip",
		Limit:  10,
		Window: time.Minute,
		Identifier: func(c *gin.Context) (string, bool) {
			return "192.0.2.1", true
		},
	}
}

func newLimitedRouter(limiter *RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(limiter.RateLimit(loginRule()))
	router.POST("/login", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestRateLimiterAllowsWhenBelowLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	now := time.Date(2025, 5, 12, 10, 0, 0, 0, time.UTC)
	oldest := now.Add(-30 * time.Second)
	store := &fakeRateLimitStore{count: 7, oldest: oldest, hasOldest: true}

	limiter := NewRateLimiter(store, zaptest.NewLogger(t)).WithClock(func() time.Time { return now })
	rr := httptest.NewRecorder()
	newLimitedRouter(limiter).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if store.recordCalls != 1 || store.recordedKey != "auth_login_ip:192.0.2.1" {
		t.Fatalf("expected one attempt recorded under the rule key, got %d %q", store.recordCalls, store.recordedKey)
	}
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "2" {
		t.Fatalf("expected remaining header 2, got %q", got)
	}
	expectedReset := oldest.Add(time.Minute).Unix()
	if got := rr.Header().Get("X-RateLimit-Reset"); got != strconv.FormatInt(expectedReset, 10) {
		t.Fatalf("expected reset header %d, got %q", expectedReset, got)
	}
	if got := rr.Header().Get("Retry-After"); got != "" {
		t.Fatalf("expected no retry-after header, got %q", got)
	}
}

func TestRateLimiterBlocksWhenLimitExceeded(t *testing.T) {
	gin.SetMode(gin.TestMode)

	now := time.Date(2025, 5, 12, 10, 0, 0, 0, time.UTC)
	store := &fakeRateLimitStore{count: 10, oldest: now.Add(-20 * time.Second), hasOldest: true}

	var limitedRule string
	limiter := NewRateLimiter(store, zaptest.NewLogger(t)).
		WithClock(func() time.Time { return now }).
		OnLimited(func(rule string) { limitedRule = rule })

	rr := httptest.NewRecorder()
	newLimitedRouter(limiter).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", nil))

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if store.recordCalls != 0 {
		t.Fatalf("expected no record attempt when blocked, got %d", store.recordCalls)
	}
	if got := rr.Header().Get("Retry-After"); got != "40" {
		t.Fatalf("expected retry-after 40, got %q", got)
	}
	if limitedRule != "auth_login_ip" {
		t.Fatalf("expected limited callback for the login rule, got %q", limitedRule)
	}

	var body ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Error.Code != "RATE_LIMITED" {
		t.Fatalf("expected RATE_LIMITED, got %q", body.Error.Code)
	}
	if body.RetryAfter == nil || *body.RetryAfter != 40 {
		t.Fatalf("expected retry_after 40 in body, got %v", body.RetryAfter)
	}
}

func TestRateLimiterFailsOpenOnStoreError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := &fakeRateLimitStore{trimErr: errors.New("redis down")}
	limiter := NewRateLimiter(store, zaptest.NewLogger(t))

	rr := httptest.NewRecorder()
	newLimitedRouter(limiter).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 when failing open, got %d", rr.Code)
	}
	if store.recordCalls != 0 {
		t.Fatalf("expected no record attempt on failure, got %d", store.recordCalls)
	}
}
