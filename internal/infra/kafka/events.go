package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/port"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/infra/config"
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
	ActorID   string           `json:"actor_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, actorID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		ActorID:   actorID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishSessionStateChanged publishes fieldops.session.state.changed events.
func (p *EventPublisher) PublishSessionStateChanged(ctx context.Context, event domain.SessionStateChangedEvent) error {
	payload := struct {
		SessionID     string         `json:"session_id"`
		SubmissionID  string         `json:"submission_id"`
		ProgramID     string         `json:"program_id"`
		PreviousState string         `json:"previous_state"`
		State         string         `json:"state"`
		ActorUserID   string         `json:"actor_user_id,omitempty"`
		ChangedAt     time.Time      `json:"changed_at"`
		Metadata      map[string]any `json:"metadata,omitempty"`
	}{
		SessionID:     event.SessionID,
		SubmissionID:  event.SubmissionID,
		ProgramID:     event.ProgramID,
		PreviousState: string(event.PreviousState),
		State:         string(event.State),
		ActorUserID:   event.ActorUserID,
		ChangedAt:     event.At.UTC(),
		Metadata:      event.Metadata,
	}

	return p.publish(ctx, event.EventID, "fieldops.session.state.changed", event.ActorUserID, event.At, payload)
}

// PublishHistoryAppended publishes fieldops.history.appended events.
func (p *EventPublisher) PublishHistoryAppended(ctx context.Context, event domain.HistoryAppendedEvent) error {
	payload := struct {
		HistoryID   string    `json:"history_id"`
		Kind        string    `json:"kind"`
		ObjectType  string    `json:"object_type"`
		ObjectID    string    `json:"object_id"`
		ProgramID   *string   `json:"program_id,omitempty"`
		ActorUserID string    `json:"actor_user_id"`
		RecordedAt  time.Time `json:"recorded_at"`
	}{
		HistoryID:   event.HistoryID,
		Kind:        string(event.Kind),
		ObjectType:  event.ObjectType,
		ObjectID:    event.ObjectID,
		ProgramID:   event.ProgramID,
		ActorUserID: event.ActorUserID,
		RecordedAt:  event.At.UTC(),
	}

	return p.publish(ctx, event.EventID, "fieldops.history.appended", event.ActorUserID, event.At, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
