package publisher_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	kafkapublisher "github.com/example/roadside-intake/internal/kafka/publisher"
	"github.com/example/roadside-intake/internal/models"
)

type fakeSyncProducer struct {
	err     error
	topic   string
	key     []byte
	headers map[string][]byte
	payload []byte
}

func (f *fakeSyncProducer) PublishSync(topic string, key []byte, headers map[string][]byte, payload []byte) error {
	f.topic = topic
	f.key = append([]byte(nil), key...)
	f.headers = headers
	f.payload = append([]byte(nil), payload...)
	return f.err
}

func TestIntakeEventPublisherPublishesEvent(t *testing.T) {
	prod := &fakeSyncProducer{}
	pub := kafkapublisher.NewIntakeEventPublisher(prod, "intake-topic", zerolog.Nop())
	if pub == nil {
		t.Fatalf("expected publisher instance")
	}

	event := models.IntakeEvent{
		EventID:        "evt-1",
		RequestID:      "ER-1-ABCDE",
		EventType:      models.IntakeEventInternalNotified,
		State:          "internal_notified",
		Target:         models.AudienceInternal,
		VehicleModel:   "Tiggo 7 Pro",
		AssistanceType: "Flat Tire",
		Timestamp:      time.Unix(123, 0).UTC(),
	}

	if err := pub.PublishIntakeEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected publish error: %v", err)
	}

	if prod.topic != "intake-topic" {
		t.Fatalf("expected topic intake-topic, got %s", prod.topic)
	}
	if string(prod.key) != "ER-1-ABCDE" {
		t.Fatalf("expected key ER-1-ABCDE, got %s", string(prod.key))
	}
	if ct := prod.headers["content-type"]; string(ct) != "application/json" {
		t.Fatalf("expected content-type header, got %s", string(ct))
	}
	if et := prod.headers["event-type"]; string(et) != models.IntakeEventInternalNotified {
		t.Fatalf("expected event-type header, got %s", string(et))
	}

	var payload map[string]any
	if err := json.Unmarshal(prod.payload, &payload); err != nil {
		t.Fatalf("failed to unmarshal payload: %v", err)
	}
	if payload["request_id"] != "ER-1-ABCDE" || payload["vehicle_model"] != "Tiggo 7 Pro" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestIntakeEventPublisherKeysRejectedByEventID(t *testing.T) {
	prod := &fakeSyncProducer{}
	pub := kafkapublisher.NewIntakeEventPublisher(prod, "intake-topic", zerolog.Nop())

	if err := pub.PublishIntakeEvent(context.Background(), models.IntakeEvent{EventID: "evt-9", EventType: models.IntakeEventRejected}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(prod.key) != "evt-9" {
		t.Fatalf("expected event id key, got %s", string(prod.key))
	}
}

func TestIntakeEventPublisherPropagatesProducerError(t *testing.T) {
	expectedErr := errors.New("broker down")
	prod := &fakeSyncProducer{err: expectedErr}

	pub := kafkapublisher.NewIntakeEventPublisher(prod, "intake-topic", zerolog.Nop())
	err := pub.PublishIntakeEvent(context.Background(), models.IntakeEvent{EventID: "id"})
	if !errors.Is(err, expectedErr) {
		t.Fatalf("expected producer error, got %v", err)
	}
}

func TestIntakeEventPublisherNilSafe(t *testing.T) {
	pub := kafkapublisher.NewIntakeEventPublisher(nil, "intake-topic", zerolog.Nop())
	if pub != nil {
		t.Fatalf("expected nil publisher without producer")
	}
	if err := pub.PublishIntakeEvent(context.Background(), models.IntakeEvent{}); !errors.Is(err, kafkapublisher.ErrProducerNotInitialised()) {
		t.Fatalf("expected not initialised error, got %v", err)
	}
}
