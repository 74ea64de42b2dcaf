package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Session.AdminLimit != 1 || cfg.Session.StaffLimit != 3 {
		t.Fatalf("unexpected session limits %+v", cfg.Session)
	}
	if cfg.Session.IdleTimeout != 30*time.Minute || cfg.Session.AbsoluteTimeout != 8*time.Hour {
		t.Fatalf("unexpected session timeouts %+v", cfg.Session)
	}
	if cfg.Password.BcryptCost != 12 || cfg.Password.HistoryDepth != 5 || cfg.Password.TemporaryLength != 16 {
		t.Fatalf("unexpected password settings %+v", cfg.Password)
	}
	if cfg.Breach.Timeout != 5*time.Second || cfg.Breach.DegradationPolicy != "lenient" {
		t.Fatalf("unexpected breach settings %+v", cfg.Breach)
	}
}

func TestLoadReadsPrefixedEnv(t *testing.T) {
	t.Setenv("STAFF_SESSION_IDLE_TIMEOUT", "10m")
	t.Setenv("STAFF_PASSWORD_ALGORITHM", "argon2id")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Session.IdleTimeout != 10*time.Minute {
		t.Fatalf("expected idle timeout override, got %v", cfg.Session.IdleTimeout)
	}
	if cfg.Password.Algorithm != "argon2id" {
		t.Fatalf("expected algorithm override, got %s", cfg.Password.Algorithm)
	}
}

func TestValidateRejectsInvertedTimeouts(t *testing.T) {
	t.Setenv("STAFF_SESSION_IDLE_TIMEOUT", "9h")

	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error when idle exceeds absolute timeout")
	}
}

func TestLoadLeavesStrengthScoreOff(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Password.MinLength != 12 || cfg.Password.MinZxcvbnScore != 0 {
		t.Fatalf("expected min length 12 and no strength score, got %+v", cfg.Password)
	}
}

func TestValidateBoundsTemporaryLength(t *testing.T) {
	cases := []struct {
		name  string
		value string
		ok    bool
	}{
		{"below minimum", "11", false},
		{"bcrypt limit", "72", true},
		{"above bcrypt limit", "73", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("STAFF_PASSWORD_TEMPORARY_LENGTH", tc.value)
			_, err := Load()
			if tc.ok && err != nil {
				t.Fatalf("expected %s to load, got %v", tc.value, err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("expected validation error for temporary length %s", tc.value)
			}
		})
	}
}
