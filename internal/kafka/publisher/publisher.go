package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/example/roadside-intake/internal/logger"
	"github.com/example/roadside-intake/internal/models"
)

var errProducerNotInitialised = errors.New("kafka publisher: producer not initialised")

// SyncProducer captures the subset of producer behaviour required by the
// publisher.
type SyncProducer interface {
	PublishSync(topic string, key []byte, headers map[string][]byte, payload []byte) error
}

// ErrProducerNotInitialised exposes the sentinel error for callers and tests.
func ErrProducerNotInitialised() error {
	return errProducerNotInitialised
}

// IntakeEventPublisher writes intake pipeline transitions to a Kafka topic.
// Records are keyed by request id so one submission stays on one partition.
type IntakeEventPublisher struct {
	producer SyncProducer
	topic    string
	logger   zerolog.Logger
}

// NewIntakeEventPublisher returns nil when prod is nil so callers can keep
// the sink optional.
func NewIntakeEventPublisher(prod SyncProducer, topic string, log zerolog.Logger) *IntakeEventPublisher {
	if prod == nil {
		return nil
	}
	return &IntakeEventPublisher{
		producer: prod,
		topic:    topic,
		logger:   logger.Component(log, "intake_events"),
	}
}

// PublishIntakeEvent writes the event synchronously.
func (p *IntakeEventPublisher) PublishIntakeEvent(ctx context.Context, event models.IntakeEvent) error {
	if p == nil || p.producer == nil {
		return errProducerNotInitialised
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka publisher: marshal intake event: %w", err)
	}

	key := event.RequestID
	if key == "" {
		key = event.EventID
	}
	headers := map[string][]byte{
		"content-type": []byte("application/json"),
		"event-type":   []byte(event.EventType),
	}

	if err := p.producer.PublishSync(p.topic, []byte(key), headers, payload); err != nil {
		return fmt.Errorf("kafka publisher: publish intake event: %w", err)
	}
	p.logger.Debug().
		Str("event_type", event.EventType).
		Str("request_id", event.RequestID).
		Msg("intake event published")
	return nil
}
