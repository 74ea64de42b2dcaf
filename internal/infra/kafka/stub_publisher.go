package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/arklim/library-staff-auth/internal/core/domain"
	"github.com/arklim/library-staff-auth/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

// PublishSecurityEvent logs the entry at debug level.
func (p *StubPublisher) PublishSecurityEvent(_ context.Context, entry domain.AuditEntry) error {
	p.logger.Debug("Stub event published",
		zap.String("event_type", string(entry.Event)),
		zap.String("topic", topicFor(entry.Event)),
		zap.String("staff_id", entry.TargetID),
		zap.Time("timestamp", entry.OccurredAt.UTC()),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
