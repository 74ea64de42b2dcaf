package port

import (
	"context"
	"time"
)

// RateLimitStore keeps timestamped attempts per identifier (for example "auth_login_ip:<ip>")
// so the HTTP layer can enforce sliding-window login limits.
type RateLimitStore interface {
	// TrimWindow discards attempts older than window before reference.
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
	// OldestAttempt reports the earliest attempt still inside the window; it drives Retry-After.
	OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error)
}
