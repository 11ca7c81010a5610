package generic

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// AUDIT - Who did what when. Storage and display live outside the engine.
// =============================================================================

type AuditAction string

const (
	AuditRequestCreated  AuditAction = "REQUEST_CREATED"
	AuditRequestApproved AuditAction = "REQUEST_APPROVED"
	AuditRequestRejected AuditAction = "REQUEST_REJECTED"
	AuditRequestCanceled AuditAction = "REQUEST_CANCELED"
	AuditEmployeeSaved   AuditAction = "EMPLOYEE_SAVED"
	AuditQuotaChanged    AuditAction = "QUOTA_CHANGED"
	AuditRegionSaved     AuditAction = "REGION_SAVED"
	AuditHolidayChanged  AuditAction = "HOLIDAY_CHANGED"
)

// AuditOutcome says whether the attempted action took effect.
type AuditOutcome string

const (
	OutcomeSucceeded AuditOutcome = "succeeded"
	OutcomeRejected  AuditOutcome = "rejected"
)

// AuditEvent records a single attempted action.
type AuditEvent struct {
	ID        string
	Timestamp time.Time
	ActorID   string
	Action    AuditAction
	Outcome   AuditOutcome
	TargetID  string // employee the action affects, if any
	RequestID string
	Details   string
	Payload   map[string]any
}

// NewAuditEvent stamps a fresh ID and the current time.
func NewAuditEvent(actorID string, action AuditAction) AuditEvent {
	return AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		ActorID:   actorID,
		Action:    action,
		Outcome:   OutcomeSucceeded,
	}
}

// AuditSink receives audit events. Record must not block for long; the
// engine calls it after the state change has been persisted.
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent) error
}

// NopAuditSink drops every event.
type NopAuditSink struct{}

func (NopAuditSink) Record(context.Context, AuditEvent) error { return nil }

// LogAuditSink writes events to a structured logger.
type LogAuditSink struct {
	Logger *zap.Logger
}

func NewLogAuditSink(logger *zap.Logger) *LogAuditSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogAuditSink{Logger: logger.Named("audit")}
}

func (s *LogAuditSink) Record(_ context.Context, e AuditEvent) error {
	fields := []zap.Field{
		zap.String("event_id", e.ID),
		zap.Time("at", e.Timestamp),
		zap.String("actor", e.ActorID),
		zap.String("action", string(e.Action)),
		zap.String("outcome", string(e.Outcome)),
	}
	if e.TargetID != "" {
		fields = append(fields, zap.String("target", e.TargetID))
	}
	if e.RequestID != "" {
		fields = append(fields, zap.String("request_id", e.RequestID))
	}
	if e.Details != "" {
		fields = append(fields, zap.String("details", e.Details))
	}
	if len(e.Payload) > 0 {
		fields = append(fields, zap.Any("payload", e.Payload))
	}
	s.Logger.Info("audit", fields...)
	return nil
}

// MemoryAuditSink keeps events in memory. Used by tests and the demo server.
type MemoryAuditSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *MemoryAuditSink) Record(_ context.Context, e AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

// Events returns a copy of everything recorded so far.
func (s *MemoryAuditSink) Events() []AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AuditEvent(nil), s.events...)
}

// MultiAuditSink fans an event out to several sinks, returning the first error.
type MultiAuditSink []AuditSink

func (m MultiAuditSink) Record(ctx context.Context, e AuditEvent) error {
	var first error
	for _, s := range m {
		if err := s.Record(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
