package security

import (
	"strings"

	"github.com/arklim/library-staff-auth/internal/core/port"
)

const (
	defaultMinPasswordLength = 12
	// Zero disables the strength score; operators opt in through password.min_zxcvbn_score.
	defaultMinZxcvbnScore = 0
)

// PasswordPolicySettings tunes the staff password policy.
type PasswordPolicySettings struct {
	MinLength      int
	MinZxcvbnScore int
}

// DefaultPasswordPolicySettings returns the staff defaults: 12 characters and no strength score.
func DefaultPasswordPolicySettings() PasswordPolicySettings {
	return PasswordPolicySettings{
		MinLength:      defaultMinPasswordLength,
		MinZxcvbnScore: defaultMinZxcvbnScore,
	}
}

// NewStaffPasswordValidator requires length plus upper, lower, digit and symbol classes, then an optional strength score.
func NewStaffPasswordValidator(settings PasswordPolicySettings) *PasswordValidator {
	if settings.MinLength <= 0 {
		settings.MinLength = defaultMinPasswordLength
	}
	return NewPasswordValidator(
		MinLengthRule(settings.MinLength),
		RequireUpperRule(),
		RequireLowerRule(),
		RequireDigitRule(),
		RequireSymbolRule(),
		RequirePasswordStrengthRule(settings.MinZxcvbnScore),
	)
}

// PasswordPolicy adapts the validator to the use-case port and expands user inputs
// so the strength check also catches the local part of an email.
type PasswordPolicy struct {
	validator *PasswordValidator
}

// NewPasswordPolicy wraps validator; a nil validator falls back to the defaults.
func NewPasswordPolicy(validator *PasswordValidator) *PasswordPolicy {
	if validator == nil {
		validator = NewStaffPasswordValidator(DefaultPasswordPolicySettings())
	}
	return &PasswordPolicy{validator: validator}
}

// Validate applies the configured validator.
func (p *PasswordPolicy) Validate(password string, userInputs ...string) error {
	inputs := make([]string, 0, len(userInputs)*2)
	for _, in := range userInputs {
		in = strings.TrimSpace(in)
		if in == "" {
			continue
		}
		inputs = append(inputs, in)
		if at := strings.IndexByte(in, '@'); at > 0 {
			inputs = append(inputs, in[:at])
		}
	}
	return p.validator.Validate(password, inputs...)
}

var _ port.PasswordPolicyValidator = (*PasswordPolicy)(nil)
