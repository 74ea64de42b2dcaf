package security

import (
	"fmt"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/arklim/library-staff-auth/internal/core/domain"
)

// PasswordValidationError represents a single password policy violation.
type PasswordValidationError struct {
	Code    string
	Message string
}

// Error implements error for PasswordValidationError.
func (e *PasswordValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// PasswordRule validates a password according to a specific policy rule.
// userInputs carries account data the password should not resemble.
type PasswordRule interface {
	Validate(password string, userInputs []string) *PasswordValidationError
}

// PasswordRuleFunc adapts a function to be used as a PasswordRule.
type PasswordRuleFunc func(password string, userInputs []string) *PasswordValidationError

// Validate executes the underlying rule function.
func (f PasswordRuleFunc) Validate(password string, userInputs []string) *PasswordValidationError {
	return f(password, userInputs)
}

// PasswordValidator applies a sequence of password rules and reports every violation.
type PasswordValidator struct {
	rules []PasswordRule
}

// NewPasswordValidator constructs a validator with the provided rules.
func NewPasswordValidator(rules ...PasswordRule) *PasswordValidator {
	copied := make([]PasswordRule, len(rules))
	copy(copied, rules)
	return &PasswordValidator{rules: copied}
}

// Validate runs all rules. Failures are returned as *domain.PasswordPolicyError.
func (v *PasswordValidator) Validate(password string, userInputs ...string) error {
	if v == nil {
		return fmt.Errorf("password validator not configured")
	}
	var violations []domain.PasswordPolicyViolation
	for _, rule := range v.rules {
		if vErr := rule.Validate(password, userInputs); vErr != nil {
			violations = append(violations, domain.PasswordPolicyViolation{Code: vErr.Code, Message: vErr.Message})
		}
	}
	if len(violations) > 0 {
		return &domain.PasswordPolicyError{Violations: violations}
	}
	return nil
}

// MinLengthRule ensures the password has at least min characters.
func MinLengthRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string, _ []string) *PasswordValidationError {
		if len([]rune(password)) < min {
			return &PasswordValidationError{
				Code:    "min_length",
				Message: fmt.Sprintf("password must be at least %d characters long", min),
			}
		}
		return nil
	})
}

func requireClass(code, message string, match func(rune) bool) PasswordRule {
	return PasswordRuleFunc(func(password string, _ []string) *PasswordValidationError {
		for _, r := range password {
			if match(r) {
				return nil
			}
		}
		return &PasswordValidationError{Code: code, Message: message}
	})
}

// RequireUpperRule ensures the password contains an upper-case letter.
func RequireUpperRule() PasswordRule {
	return requireClass("uppercase", "password must include at least one upper-case letter", unicode.IsUpper)
}

// RequireLowerRule ensures the password contains a lower-case letter.
func RequireLowerRule() PasswordRule {
	return requireClass("lowercase", "password must include at least one lower-case letter", unicode.IsLower)
}

// RequireDigitRule ensures the password contains at least one digit.
func RequireDigitRule() PasswordRule {
	return requireClass("digit", "password must include at least one digit", unicode.IsDigit)
}

// RequireSymbolRule ensures the password contains at least one symbol (punctuation/mark).
func RequireSymbolRule() PasswordRule {
	return requireClass("symbol", "password must include at least one symbol", func(r rune) bool {
		return unicode.IsSymbol(r) || unicode.IsPunct(r)
	})
}

// RequirePasswordStrengthRule enforces a minimum zxcvbn score to reject weak passwords.
func RequirePasswordStrengthRule(minScore int) PasswordRule {
	return PasswordRuleFunc(func(password string, userInputs []string) *PasswordValidationError {
		if minScore <= 0 {
			return nil
		}
		if minScore > 4 {
			minScore = 4
		}

		result := zxcvbn.PasswordStrength(password, userInputs)
		if result.Score >= minScore {
			return nil
		}

		return &PasswordValidationError{
			Code:    "weak_password",
			Message: "password is too weak; choose a more complex value",
		}
	})
}
