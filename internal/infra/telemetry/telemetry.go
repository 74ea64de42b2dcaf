package telemetry

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arklim/library-staff-auth/internal/core/domain"
)

const namespace = "library_staff_auth"

// Login outcomes reported on login_attempts_total.
const (
	LoginOutcomeSuccess     = "success"
	LoginOutcomeFailed      = "failed"
	LoginOutcomeLocked      = "locked"
	LoginOutcomeRateLimited = "rate_limited"
)

// Breach check results reported on breach_checks_total.
const (
	BreachResultClean    = "clean"
	BreachResultBreached = "breached"
	BreachResultSkipped  = "skipped"
)

// Provider holds the service's Prometheus collectors.
type Provider struct {
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	securityEvents  *prometheus.CounterVec
	loginAttempts   *prometheus.CounterVec
	breachChecks    *prometheus.CounterVec
	publishFailures *prometheus.CounterVec
}

// Attach registers collectors on reg. A nil reg uses the default registerer.
func Attach(reg prometheus.Registerer) (*Provider, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	var p *Provider
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.New("register telemetry collectors: duplicate registration")
			}
		}()
		factory := promauto.With(reg)
		p = &Provider{
			httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			}, []string{"method", "route", "status"}),
			httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method", "route"}),
			securityEvents: factory.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "security_events_total",
				Help:      "Audited security events by type",
			}, []string{"event"}),
			loginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "login_attempts_total",
				Help:      "Login attempts by outcome",
			}, []string{"outcome"}),
			breachChecks: factory.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "breach_checks_total",
				Help:      "Password breach lookups by result",
			}, []string{"result"}),
			publishFailures: factory.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "event_publish_failures_total",
				Help:      "Security events the broker failed to accept",
			}, []string{"topic"}),
		}
		return nil
	}()
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ObserveHTTPRequest records one served request.
func (p *Provider) ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if p == nil {
		return
	}
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveSecurityEvent counts an audit entry and derives the login and breach counters from it.
func (p *Provider) ObserveSecurityEvent(event domain.AuditEvent) {
	if p == nil {
		return
	}
	p.securityEvents.WithLabelValues(string(event)).Inc()

	switch event {
	case domain.AuditLoginSucceeded:
		p.loginAttempts.WithLabelValues(LoginOutcomeSuccess).Inc()
	case domain.AuditLoginFailed:
		p.loginAttempts.WithLabelValues(LoginOutcomeFailed).Inc()
	case domain.AuditLoginRejectedLocked:
		p.loginAttempts.WithLabelValues(LoginOutcomeLocked).Inc()
	case domain.AuditBreachCheckSkipped:
		p.breachChecks.WithLabelValues(BreachResultSkipped).Inc()
	}
}

// ObserveRateLimited counts a login rejected before reaching the service.
func (p *Provider) ObserveRateLimited() {
	if p == nil {
		return
	}
	p.loginAttempts.WithLabelValues(LoginOutcomeRateLimited).Inc()
}

// ObserveBreachCheck counts a completed breach lookup.
func (p *Provider) ObserveBreachCheck(breached bool) {
	if p == nil {
		return
	}
	result := BreachResultClean
	if breached {
		result = BreachResultBreached
	}
	p.breachChecks.WithLabelValues(result).Inc()
}

// ObservePublishFailure matches the kafka.ErrorHook signature.
func (p *Provider) ObservePublishFailure(topic string, _ error) {
	if p == nil {
		return
	}
	p.publishFailures.WithLabelValues(topic).Inc()
}
