package security

import (
	"strings"
	"testing"
	"unicode"
)

func TestSecurePasswordGeneratorCoversClasses(t *testing.T) {
	gen := NewSecurePasswordGenerator()
	seen := make(map[string]struct{})

	for i := 0; i < 50; i++ {
		pw, err := gen.Generate(DefaultTemporaryPasswordLength)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(pw) != DefaultTemporaryPasswordLength {
			t.Fatalf("expected length %d, got %d", DefaultTemporaryPasswordLength, len(pw))
		}
		var upper, lower, digit, symbol bool
		for _, r := range pw {
			switch {
			case unicode.IsUpper(r):
				upper = true
			case unicode.IsLower(r):
				lower = true
			case unicode.IsDigit(r):
				digit = true
			case strings.ContainsRune(symbolAlphabet, r):
				symbol = true
			}
		}
		if !upper || !lower || !digit || !symbol {
			t.Fatalf("password %q misses a character class", pw)
		}
		seen[pw] = struct{}{}
	}
	if len(seen) != 50 {
		t.Fatalf("expected unique passwords, got %d distinct", len(seen))
	}
}

func TestSecurePasswordGeneratorRejectsShortLength(t *testing.T) {
	if _, err := NewSecurePasswordGenerator().Generate(3); err == nil {
		t.Fatalf("expected error for length below class count")
	}
}

func TestGeneratedPasswordSatisfiesPolicyClasses(t *testing.T) {
	validator := NewPasswordValidator(MinLengthRule(12), RequireUpperRule(), RequireLowerRule(), RequireDigitRule(), RequireSymbolRule())
	pw, err := NewSecurePasswordGenerator().Generate(DefaultTemporaryPasswordLength)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := validator.Validate(pw); err != nil {
		t.Fatalf("generated password fails policy: %v", err)
	}
}

func TestSessionTokensIssue(t *testing.T) {
	tokens := NewSessionTokens()
	token, id, err := tokens.Issue()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(id) != 64 || id != tokens.SessionID(token) {
		t.Fatalf("session id must be the sha-256 hex of the token")
	}
	if strings.Contains(id, token) {
		t.Fatalf("id must not embed the token")
	}
}

func TestULIDGenerator(t *testing.T) {
	gen := NewULIDGenerator()
	a, b := gen.NewID(), gen.NewID()
	if len(a) != 26 || len(b) != 26 {
		t.Fatalf("expected 26-char ids, got %q %q", a, b)
	}
	if !(a < b) {
		t.Fatalf("expected monotonic ids, got %s then %s", a, b)
	}
}
