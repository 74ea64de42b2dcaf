package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/library-staff-auth/internal/core/domain"
	"github.com/arklim/library-staff-auth/internal/core/port"
	"github.com/arklim/library-staff-auth/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	StaffID   string           `json:"staff_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   securityPayload  `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

type securityPayload struct {
	ActorID  string         `json:"actor_id,omitempty"`
	TargetID string         `json:"target_id,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
}

// topicFor groups events by family: auth.login_failed -> staff.security.auth.
func topicFor(event domain.AuditEvent) string {
	family, _, _ := strings.Cut(string(event), ".")
	return "staff.security." + family
}

// PublishSecurityEvent enqueues the entry keyed by its target staff id.
func (p *EventPublisher) PublishSecurityEvent(ctx context.Context, entry domain.AuditEntry) error {
	ts := entry.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := entry.ID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: string(entry.Event),
		StaffID:   entry.TargetID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload: securityPayload{
			ActorID:  entry.ActorID,
			TargetID: entry.TargetID,
			Details:  entry.Details,
		},
		Metadata: metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(topicFor(entry.Event)),
		Value: sarama.ByteEncoder(bytes),
	}
	if entry.TargetID != "" {
		message.Key = sarama.StringEncoder(entry.TargetID)
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ port.EventPublisher = (*EventPublisher)(nil)
