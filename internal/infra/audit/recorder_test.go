package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/arklim/library-staff-auth/internal/core/domain"
)

type fakeStore struct {
	entries []domain.AuditEntry
	err     error
}

func (f *fakeStore) Append(_ context.Context, entry domain.AuditEntry) error {
	f.entries = append(f.entries, entry)
	return f.err
}

type fakePublisher struct {
	entries []domain.AuditEntry
	err     error
}

func (f *fakePublisher) PublishSecurityEvent(_ context.Context, entry domain.AuditEntry) error {
	f.entries = append(f.entries, entry)
	return f.err
}

type fakeMetrics struct {
	events []domain.AuditEvent
}

func (f *fakeMetrics) ObserveSecurityEvent(event domain.AuditEvent) {
	f.events = append(f.events, event)
}

func TestRecordFansOutAndFillsDefaults(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	store := &fakeStore{}
	publisher := &fakePublisher{}
	metrics := &fakeMetrics{}
	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	rec := NewRecorder(zap.New(core),
		WithStore(store),
		WithPublisher(publisher),
		WithMetrics(metrics),
		WithClock(func() time.Time { return fixed }),
	)

	rec.Record(context.Background(), domain.AuditEntry{
		Event:    domain.AuditStaffUnlocked,
		ActorID:  "admin-1",
		TargetID: "staff-1",
	})

	if len(store.entries) != 1 || len(publisher.entries) != 1 || len(metrics.events) != 1 {
		t.Fatalf("expected one entry per sink, got store=%d publisher=%d metrics=%d",
			len(store.entries), len(publisher.entries), len(metrics.events))
	}
	got := store.entries[0]
	if got.ID == "" {
		t.Fatalf("expected generated id")
	}
	if !got.OccurredAt.Equal(fixed) {
		t.Fatalf("expected clock timestamp, got %v", got.OccurredAt)
	}
	if publisher.entries[0].ID != got.ID {
		t.Fatalf("sinks received different ids")
	}
	if logs.FilterMessage("audit").Len() != 1 {
		t.Fatalf("expected one audit log line")
	}
}

func TestRecordSwallowsSinkFailures(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	rec := NewRecorder(zap.New(core),
		WithStore(&fakeStore{err: errors.New("db down")}),
		WithPublisher(&fakePublisher{err: errors.New("broker down")}),
	)

	rec.Record(context.Background(), domain.AuditEntry{Event: domain.AuditLogout, TargetID: "staff-1"})

	if logs.FilterMessage("persist audit entry failed").Len() != 1 {
		t.Fatalf("expected store failure to be logged")
	}
	if logs.FilterMessage("publish security event failed").Len() != 1 {
		t.Fatalf("expected publish failure to be logged")
	}
}

func TestRecordSurvivesCancelledContext(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecorder(nil, WithStore(store))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Record(ctx, domain.AuditEntry{Event: domain.AuditLoginFailed})

	if len(store.entries) != 1 {
		t.Fatalf("expected entry persisted despite cancelled request")
	}
}
