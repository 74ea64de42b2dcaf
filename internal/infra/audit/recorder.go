package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/library-staff-auth/internal/core/domain"
	"github.com/arklim/library-staff-auth/internal/core/port"
	"github.com/arklim/library-staff-auth/internal/infra/logger"
)

const writeTimeout = 3 * time.Second

// MetricsObserver counts recorded events.
type MetricsObserver interface {
	ObserveSecurityEvent(event domain.AuditEvent)
}

// Recorder fans audit entries out to the log, the audit table, the event broker and metrics.
// Sink failures are logged and never returned.
type Recorder struct {
	logger    *zap.Logger
	store     port.AuditLogRepository
	publisher port.EventPublisher
	metrics   MetricsObserver
	now       func() time.Time
}

// Option customises a Recorder.
type Option func(*Recorder)

// WithStore persists entries to the audit table.
func WithStore(store port.AuditLogRepository) Option {
	return func(r *Recorder) { r.store = store }
}

// WithPublisher forwards entries to the security event stream.
func WithPublisher(publisher port.EventPublisher) Option {
	return func(r *Recorder) { r.publisher = publisher }
}

// WithMetrics counts entries by event type.
func WithMetrics(metrics MetricsObserver) Option {
	return func(r *Recorder) { r.metrics = metrics }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder builds a Recorder that always logs and uses whichever sinks are supplied.
func NewRecorder(log *zap.Logger, opts ...Option) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Recorder{
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record implements port.AuditSink.
func (r *Recorder) Record(ctx context.Context, entry domain.AuditEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = r.now()
	}

	fields := []zap.Field{
		zap.String("audit_id", entry.ID),
		zap.String("event", string(entry.Event)),
		zap.String("actor_id", entry.ActorID),
		zap.String("target_id", entry.TargetID),
		zap.Time("occurred_at", entry.OccurredAt),
	}
	if traceID := logger.TraceIDFromContext(ctx); traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	if len(entry.Details) > 0 {
		fields = append(fields, zap.Any("details", entry.Details))
	}
	r.logger.Info("audit", fields...)

	if r.metrics != nil {
		r.metrics.ObserveSecurityEvent(entry.Event)
	}

	// The request may already be cancelled when the caller records its outcome.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if r.store != nil {
		if err := r.store.Append(writeCtx, entry); err != nil {
			r.logger.Error("persist audit entry failed",
				zap.String("audit_id", entry.ID),
				zap.String("event", string(entry.Event)),
				zap.Error(err),
			)
		}
	}

	if r.publisher != nil {
		if err := r.publisher.PublishSecurityEvent(writeCtx, entry); err != nil {
			r.logger.Warn("publish security event failed",
				zap.String("audit_id", entry.ID),
				zap.String("event", string(entry.Event)),
				zap.Error(err),
			)
		}
	}
}

var _ port.AuditSink = (*Recorder)(nil)
