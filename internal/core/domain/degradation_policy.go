package domain

import "strings"

// DegradationPolicyMode enumerates how a flow behaves when an optional dependency is unreachable.
type DegradationPolicyMode string

const (
	// DegradationPolicyModeLenient lets the operation proceed and logs a warning.
	DegradationPolicyModeLenient DegradationPolicyMode = "lenient"
	// DegradationPolicyModeStrict rejects the operation when the dependency cannot answer.
	DegradationPolicyModeStrict DegradationPolicyMode = "strict"
)

// DegradationReason captures which dependency failed.
type DegradationReason string

const (
	// DegradationReasonBreachCheckTimeout indicates the breach list did not answer in time.
	DegradationReasonBreachCheckTimeout DegradationReason = "breach_check_timeout"
	// DegradationReasonBreachCheckUnavailable indicates the breach list returned an error.
	DegradationReasonBreachCheckUnavailable DegradationReason = "breach_check_unavailable"
	// DegradationReasonTerminationCacheUnavailable indicates termination reason markers could not be read.
	DegradationReasonTerminationCacheUnavailable DegradationReason = "termination_cache_unavailable"
)

// DegradationPolicy centralises fail-open versus fail-closed decisions.
type DegradationPolicy struct {
	mode DegradationPolicyMode
}

// NewDegradationPolicy constructs a policy, defaulting to lenient when unspecified.
func NewDegradationPolicy(mode DegradationPolicyMode) DegradationPolicy {
	if mode != DegradationPolicyModeStrict {
		mode = DegradationPolicyModeLenient
	}
	return DegradationPolicy{mode: mode}
}

// ParseDegradationPolicyMode normalises textual input into a supported policy mode.
func ParseDegradationPolicyMode(value string) DegradationPolicyMode {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(DegradationPolicyModeStrict):
		return DegradationPolicyModeStrict
	default:
		return DegradationPolicyModeLenient
	}
}

// Mode returns the underlying policy mode.
func (p DegradationPolicy) Mode() DegradationPolicyMode {
	return p.mode
}

// IsStrict indicates whether the policy rejects degraded states.
func (p DegradationPolicy) IsStrict() bool {
	return p.mode == DegradationPolicyModeStrict
}

// AllowsFallback determines if the policy permits continuing when the supplied reason occurs.
// Termination markers only refine error codes, so their absence never blocks.
func (p DegradationPolicy) AllowsFallback(reason DegradationReason) bool {
	if reason == DegradationReasonTerminationCacheUnavailable {
		return true
	}
	return !p.IsStrict()
}
