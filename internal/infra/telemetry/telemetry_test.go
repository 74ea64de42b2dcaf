package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/arklim/library-staff-auth/internal/core/domain"
)

func TestObserveSecurityEventDerivesLoginOutcome(t *testing.T) {
	p, err := Attach(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("Attach returned error: %v", err)
	}

	p.ObserveSecurityEvent(domain.AuditLoginFailed)
	p.ObserveSecurityEvent(domain.AuditLoginFailed)
	p.ObserveSecurityEvent(domain.AuditLoginRejectedLocked)
	p.ObserveRateLimited()

	if got := testutil.ToFloat64(p.loginAttempts.WithLabelValues(LoginOutcomeFailed)); got != 2 {
		t.Fatalf("expected 2 failed logins, got %v", got)
	}
	if got := testutil.ToFloat64(p.loginAttempts.WithLabelValues(LoginOutcomeLocked)); got != 1 {
		t.Fatalf("expected 1 locked login, got %v", got)
	}
	if got := testutil.ToFloat64(p.loginAttempts.WithLabelValues(LoginOutcomeRateLimited)); got != 1 {
		t.Fatalf("expected 1 rate limited login, got %v", got)
	}
	if got := testutil.ToFloat64(p.securityEvents.WithLabelValues(string(domain.AuditLoginFailed))); got != 2 {
		t.Fatalf("expected 2 login_failed events, got %v", got)
	}
}

func TestObserveHTTPRequest(t *testing.T) {
	p, err := Attach(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("Attach returned error: %v", err)
	}

	p.ObserveHTTPRequest("POST", "/api/v1/auth/login", 401, 20*time.Millisecond)

	if got := testutil.ToFloat64(p.httpRequests.WithLabelValues("POST", "/api/v1/auth/login", "401")); got != 1 {
		t.Fatalf("expected 1 request, got %v", got)
	}
}

func TestAttachTwiceOnSameRegistryFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := Attach(reg); err != nil {
		t.Fatalf("first Attach returned error: %v", err)
	}
	if _, err := Attach(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestNilProviderIsSafe(t *testing.T) {
	var p *Provider
	p.ObserveSecurityEvent(domain.AuditLogout)
	p.ObserveBreachCheck(true)
	p.ObservePublishFailure("topic", nil)
}
