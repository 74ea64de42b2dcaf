package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/library-staff-auth/internal/core/domain"
	"github.com/arklim/library-staff-auth/internal/core/port"
)

const defaultSessionTerminationPrefix = "staff:session_term"

// SessionTerminationStore keeps short-lived markers explaining why a session row was removed.
type SessionTerminationStore struct {
	client *red.Client
	prefix string
}

// NewSessionTerminationStore constructs a Redis-backed termination marker store.
func NewSessionTerminationStore(client *red.Client, keyPrefix string) *SessionTerminationStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultSessionTerminationPrefix
	}
	return &SessionTerminationStore{client: client, prefix: prefix}
}

// MarkTerminated records reason for sessionID until ttl elapses.
func (s *SessionTerminationStore) MarkTerminated(ctx context.Context, sessionID string, reason domain.SessionTerminationReason, ttl time.Duration) error {
	key := s.key(sessionID)
	if key == "" {
		return fmt.Errorf("session id is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}
	value := strings.TrimSpace(string(reason))
	if value == "" {
		value = string(domain.SessionTerminatedByOwner)
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session termination: %w", err)
	}
	return nil
}

// TerminationReason returns the stored reason, or false when no marker exists.
func (s *SessionTerminationStore) TerminationReason(ctx context.Context, sessionID string) (domain.SessionTerminationReason, bool, error) {
	key := s.key(sessionID)
	if key == "" {
		return "", false, fmt.Errorf("session id is required")
	}
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get session termination: %w", err)
	}
	return domain.SessionTerminationReason(value), true, nil
}

func (s *SessionTerminationStore) key(sessionID string) string {
	trimmed := strings.TrimSpace(sessionID)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", s.prefix, trimmed)
}

var _ port.SessionTerminationStore = (*SessionTerminationStore)(nil)
