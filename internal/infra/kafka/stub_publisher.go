package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, actorID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("actor_id", actorID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishSessionStateChanged logs fieldops.session.state.changed events.
func (p *StubPublisher) PublishSessionStateChanged(_ context.Context, event domain.SessionStateChangedEvent) error {
	payload := map[string]any{
		"session_id":     event.SessionID,
		"submission_id":  event.SubmissionID,
		"program_id":     event.ProgramID,
		"previous_state": event.PreviousState,
		"state":          event.State,
		"actor_user_id":  event.ActorUserID,
		"changed_at":     event.At,
		"metadata":       event.Metadata,
	}
	p.logEvent("fieldops.session.state.changed", event.ActorUserID, event.At, payload)
	return nil
}

// PublishHistoryAppended logs fieldops.history.appended events.
func (p *StubPublisher) PublishHistoryAppended(_ context.Context, event domain.HistoryAppendedEvent) error {
	payload := map[string]any{
		"history_id":    event.HistoryID,
		"kind":          event.Kind,
		"object_type":   event.ObjectType,
		"object_id":     event.ObjectID,
		"program_id":    event.ProgramID,
		"actor_user_id": event.ActorUserID,
		"recorded_at":   event.At,
	}
	p.logEvent("fieldops.history.appended", event.ActorUserID, event.At, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
