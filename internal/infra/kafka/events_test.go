package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap/zaptest"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/domain"
	"github.com/putYourWifeOuttaWork/fieldops-core/internal/infra/config"
)

type fakeAsyncProducer struct {
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
}

func newFakeAsyncProducer() *fakeAsyncProducer {
	return &fakeAsyncProducer{
		input:  make(chan *sarama.ProducerMessage, 1),
		errors: make(chan *sarama.ProducerError, 1),
	}
}

func (f *fakeAsyncProducer) AsyncClose() {}

func (f *fakeAsyncProducer) Close() error { return nil }

func (f *fakeAsyncProducer) Input() chan<- *sarama.ProducerMessage { return f.input }

func (f *fakeAsyncProducer) Successes() <-chan *sarama.ProducerMessage { return nil }

func (f *fakeAsyncProducer) Errors() <-chan *sarama.ProducerError { return f.errors }

func (f *fakeAsyncProducer) IsTransactional() bool { return false }

func (f *fakeAsyncProducer) BeginTxn() error { return nil }

func (f *fakeAsyncProducer) CommitTxn() error { return nil }

func (f *fakeAsyncProducer) AbortTxn() error { return nil }

func (f *fakeAsyncProducer) AddOffsetsToTxn(offsets map[string][]*sarama.PartitionOffsetMetadata, groupID string) error {
	return nil
}

func (f *fakeAsyncProducer) AddMessageToTxn(msg *sarama.ConsumerMessage, groupID string, metadata *string) error {
	return nil
}

func (f *fakeAsyncProducer) TxnStatus() sarama.ProducerTxnStatusFlag {
	return sarama.ProducerTxnStatusFlag(0)
}

func newTestPublisher(t *testing.T, asyncProducer sarama.AsyncProducer) *EventPublisher {
	t.Helper()

	producer := &Producer{
		producer: asyncProducer,
		logger:   zaptest.NewLogger(t),
		cfg: config.KafkaSettings{
			TopicPrefix: "fieldops",
		},
		errChan: make(chan error, 1),
		done:    make(chan struct{}),
	}

	return NewEventPublisher(producer, config.AppSettings{
		Name: "fieldops-core",
		Env:  "test",
	}, zaptest.NewLogger(t))
}

func TestPublishSessionStateChanged(t *testing.T) {
	asyncProducer := newFakeAsyncProducer()
	publisher := newTestPublisher(t, asyncProducer)

	changedAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	event := domain.SessionStateChangedEvent{
		EventID:       "event-123",
		SessionID:     "session-456",
		SubmissionID:  "submission-789",
		ProgramID:     "program-1",
		PreviousState: domain.VisitOpened,
		State:         domain.VisitWorking,
		ActorUserID:   "user-1",
		At:            changedAt,
		Metadata:      map[string]any{"percent_complete": 50},
	}

	if err := publisher.PublishSessionStateChanged(context.Background(), event); err != nil {
		t.Fatalf("PublishSessionStateChanged returned error: %v", err)
	}

	select {
	case msg := <-asyncProducer.input:
		if msg.Topic != "fieldops.session.state.changed" {
			t.Fatalf("unexpected topic: %s", msg.Topic)
		}

		bytes, err := msg.Value.Encode()
		if err != nil {
			t.Fatalf("Value.Encode returned error: %v", err)
		}

		var envelope map[string]any
		if err := json.Unmarshal(bytes, &envelope); err != nil {
			t.Fatalf("failed to unmarshal envelope: %v", err)
		}

		if got := envelope["event_type"]; got != "fieldops.session.state.changed" {
			t.Fatalf("unexpected event_type: %v", got)
		}

		if got := envelope["actor_id"]; got != event.ActorUserID {
			t.Fatalf("unexpected actor_id: %v", got)
		}

		timestamp, ok := envelope["timestamp"].(string)
		if !ok {
			t.Fatalf("timestamp not a string: %T", envelope["timestamp"])
		}
		if timestamp != changedAt.Format(time.RFC3339Nano) {
			t.Fatalf("unexpected timestamp: %s", timestamp)
		}

		payload, ok := envelope["payload"].(map[string]any)
		if !ok {
			t.Fatalf("payload not a map: %T", envelope["payload"])
		}

		if got := payload["session_id"]; got != event.SessionID {
			t.Fatalf("unexpected session_id: %v", got)
		}
		if got := payload["previous_state"]; got != "opened" {
			t.Fatalf("unexpected previous_state: %v", got)
		}
		if got := payload["state"]; got != "working" {
			t.Fatalf("unexpected state: %v", got)
		}

		percent, ok := payload["metadata"].(map[string]any)["percent_complete"].(float64)
		if !ok || int(percent) != 50 {
			t.Fatalf("metadata did not round-trip: %v", payload["metadata"])
		}

		envelopeMetadata, ok := envelope["metadata"].(map[string]any)
		if !ok {
			t.Fatalf("envelope metadata not a map: %T", envelope["metadata"])
		}
		if envelopeMetadata["service"] != "fieldops-core" {
			t.Fatalf("unexpected metadata service: %v", envelopeMetadata["service"])
		}
		if envelopeMetadata["environment"] != "test" {
			t.Fatalf("unexpected metadata environment: %v", envelopeMetadata["environment"])
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message on async producer input channel")
	}
}

func TestPublishSessionStateChangedUnattributed(t *testing.T) {
	asyncProducer := newFakeAsyncProducer()
	publisher := newTestPublisher(t, asyncProducer)

	event := domain.SessionStateChangedEvent{
		EventID:       "event-124",
		SessionID:     "session-456",
		SubmissionID:  "submission-789",
		ProgramID:     "program-1",
		PreviousState: domain.VisitOpened,
		State:         domain.VisitExpiredIncomplete,
		At:            time.Date(2026, 3, 3, 0, 5, 0, 0, time.UTC),
	}

	if err := publisher.PublishSessionStateChanged(context.Background(), event); err != nil {
		t.Fatalf("PublishSessionStateChanged returned error: %v", err)
	}

	select {
	case msg := <-asyncProducer.input:
		bytes, err := msg.Value.Encode()
		if err != nil {
			t.Fatalf("Value.Encode returned error: %v", err)
		}

		var envelope map[string]any
		if err := json.Unmarshal(bytes, &envelope); err != nil {
			t.Fatalf("failed to unmarshal envelope: %v", err)
		}

		// Background expirations carry no actor at all.
		if _, present := envelope["actor_id"]; present {
			t.Fatalf("expected actor_id omitted for unattributed event, got %v", envelope["actor_id"])
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message on async producer input channel")
	}
}

func TestPublishHistoryAppended(t *testing.T) {
	asyncProducer := newFakeAsyncProducer()
	publisher := newTestPublisher(t, asyncProducer)

	programID := "program-1"
	recordedAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	event := domain.HistoryAppendedEvent{
		EventID:     "evt-001",
		HistoryID:   "history-123",
		Kind:        domain.HistoryUpdated,
		ObjectType:  domain.ObjectSession,
		ObjectID:    "session-456",
		ProgramID:   &programID,
		ActorUserID: "user-1",
		At:          recordedAt,
	}

	if err := publisher.PublishHistoryAppended(context.Background(), event); err != nil {
		t.Fatalf("PublishHistoryAppended returned error: %v", err)
	}

	select {
	case msg := <-asyncProducer.input:
		if msg.Topic != "fieldops.history.appended" {
			t.Fatalf("unexpected topic: %s", msg.Topic)
		}

		bytes, err := msg.Value.Encode()
		if err != nil {
			t.Fatalf("Value.Encode returned error: %v", err)
		}

		var envelope map[string]any
		if err := json.Unmarshal(bytes, &envelope); err != nil {
			t.Fatalf("failed to unmarshal envelope: %v", err)
		}

		if got := envelope["event_type"]; got != "fieldops.history.appended" {
			t.Fatalf("unexpected event_type: %v", got)
		}

		payload, ok := envelope["payload"].(map[string]any)
		if !ok {
			t.Fatalf("payload not a map: %T", envelope["payload"])
		}

		if got := payload["history_id"]; got != event.HistoryID {
			t.Fatalf("unexpected history_id: %v", got)
		}
		if got := payload["kind"]; got != "updated" {
			t.Fatalf("unexpected kind: %v", got)
		}
		if got := payload["program_id"]; got != programID {
			t.Fatalf("unexpected program_id: %v", got)
		}
		if got := payload["actor_user_id"]; got != event.ActorUserID {
			t.Fatalf("unexpected actor_user_id: %v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message on async producer input channel")
	}
}
