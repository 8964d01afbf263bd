package producer

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/example/roadside-intake/internal/logger"
)

const clientID = "roadside-intake"

// Producer publishes intake events through a Sarama sync producer. Readiness
// reflects the initial metadata fetch and then the outcome of the latest send.
type Producer struct {
	logger zerolog.Logger
	client sarama.Client
	sync   sarama.SyncProducer
	ready  atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

// New connects to brokers. Startup fails only when no client can be built;
// an unreachable cluster leaves the producer created but not ready.
func New(brokers []string, log zerolog.Logger) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka producer: at least one broker is required")
	}

	client, err := sarama.NewClient(brokers, newConfig())
	if err != nil {
		return nil, fmt.Errorf("kafka producer: create client: %w", err)
	}
	sp, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("kafka producer: create sync producer: %w", err)
	}

	p := &Producer{logger: logger.Component(log, "kafka_producer"), client: client, sync: sp}
	if err := client.RefreshMetadata(); err != nil {
		p.logger.Warn().Err(err).Strs("brokers", brokers).Msg("kafka metadata unavailable at startup")
	} else {
		p.ready.Store(true)
	}
	return p, nil
}

// NewFromSyncProducer wraps an existing sync producer, typically a mock.
func NewFromSyncProducer(sp sarama.SyncProducer, log zerolog.Logger) (*Producer, error) {
	if sp == nil {
		return nil, errors.New("kafka producer: sync producer is required")
	}
	p := &Producer{logger: logger.Component(log, "kafka_producer"), sync: sp}
	p.ready.Store(true)
	return p, nil
}

// PublishSync sends one record and waits for the broker acknowledgement.
func (p *Producer) PublishSync(topic string, key []byte, headers map[string][]byte, payload []byte) error {
	if topic == "" {
		return errors.New("kafka producer: topic is required")
	}

	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Value:   sarama.ByteEncoder(payload),
		Headers: toRecordHeaders(headers),
	}
	if len(key) > 0 {
		msg.Key = sarama.ByteEncoder(key)
	}

	if _, _, err := p.sync.SendMessage(msg); err != nil {
		if p.ready.Swap(false) {
			p.logger.Warn().Err(err).Str("topic", topic).Msg("kafka producer marked not ready")
		}
		return fmt.Errorf("kafka producer: send sync: %w", err)
	}
	p.ready.Store(true)
	return nil
}

// IsReady backs the health endpoint.
func (p *Producer) IsReady() bool { return p.ready.Load() }

// Close releases the producer and its client. Later calls return the first
// result.
func (p *Producer) Close() error {
	p.closeOnce.Do(func() {
		p.ready.Store(false)
		errs := []error{p.sync.Close()}
		if p.client != nil && !p.client.Closed() {
			errs = append(errs, p.client.Close())
		}
		p.closeErr = errors.Join(errs...)
	})
	return p.closeErr
}

func toRecordHeaders(headers map[string][]byte) []sarama.RecordHeader {
	if len(headers) == 0 {
		return nil
	}
	out := make([]sarama.RecordHeader, 0, len(headers))
	for k, v := range headers {
		out = append(out, sarama.RecordHeader{Key: []byte(k), Value: append([]byte(nil), v...)})
	}
	return out
}

// newConfig favours failing fast: the sink is observational and a slow broker
// must not hold intake events in memory for long.
func newConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Retry.Max = 1
	cfg.Producer.Retry.Backoff = 100 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.Timeout = 2 * time.Second
	cfg.Net.DialTimeout = 2 * time.Second
	cfg.Net.WriteTimeout = 2 * time.Second
	cfg.Net.ReadTimeout = 2 * time.Second
	cfg.Metadata.Full = false
	cfg.Metadata.Retry.Max = 1
	return cfg
}
