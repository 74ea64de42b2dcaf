package logger

import (
	"context"
	"testing"
)

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"":                      "",
		"alice@library.example": "ali***@library.example",
		"bo@branch.example":     "bo***@branch.example",
		"no-at-sign":            "***",
	}
	for in, want := range cases {
		if got := MaskEmail(in); got != want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskIP(t *testing.T) {
	if got := MaskIP("192.168.10.4"); got != "192.168.*.*" {
		t.Fatalf("unexpected ipv4 mask %q", got)
	}
	if got := MaskIP("2001:0db8:85a3:0000:0000:8a2e:0370:7334"); got != "2001:0db8:85a3:0000:*:*:*:*" {
		t.Fatalf("unexpected ipv6 mask %q", got)
	}
	if got := MaskIP("garbage"); got != "***" {
		t.Fatalf("unexpected fallback %q", got)
	}
}

func TestMaskSessionID(t *testing.T) {
	if got := MaskSessionID("abcdef0123456789"); got != "abcd***6789" {
		t.Fatalf("unexpected mask %q", got)
	}
	if got := MaskSessionID("short"); got != "***" {
		t.Fatalf("unexpected mask for short id %q", got)
	}
}

func TestTraceIDFallsBackToRequestID(t *testing.T) {
	ctx := context.WithValue(context.Background(), RequestIDKey{}, "req-1")
	if got := TraceIDFromContext(ctx); got != "req-1" {
		t.Fatalf("expected request id fallback, got %q", got)
	}
	if got := TraceIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty trace id, got %q", got)
	}
}
