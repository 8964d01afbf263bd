package publisher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/roadside-intake/internal/logger"
	"github.com/example/roadside-intake/internal/models"
)

// ErrQueueFull is returned when the async publisher drops an event because
// the sink is not keeping up.
var ErrQueueFull = errors.New("kafka publisher: event queue full")

// ErrPublisherClosed is returned for events offered after Close.
var ErrPublisherClosed = errors.New("kafka publisher: closed")

const (
	defaultQueueSize   = 256
	defaultSendTimeout = 3 * time.Second
)

// EventSink is the blocking publisher drained by AsyncPublisher.
type EventSink interface {
	PublishIntakeEvent(ctx context.Context, event models.IntakeEvent) error
}

// AsyncPublisher queues intake events and hands them to a sink from a single
// goroutine, so request handling never waits on the broker. Events are
// dropped when the queue is full.
type AsyncPublisher struct {
	sink        EventSink
	logger      zerolog.Logger
	sendTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan models.IntakeEvent
	done   chan struct{}
}

// AsyncOption customises an AsyncPublisher.
type AsyncOption func(*AsyncPublisher)

// WithSendTimeout bounds each hand-off to the sink.
func WithSendTimeout(d time.Duration) AsyncOption {
	return func(a *AsyncPublisher) {
		if d > 0 {
			a.sendTimeout = d
		}
	}
}

// NewAsyncPublisher starts the drain goroutine. A non-positive size selects
// the default queue length.
func NewAsyncPublisher(sink EventSink, size int, log zerolog.Logger, opts ...AsyncOption) (*AsyncPublisher, error) {
	if sink == nil {
		return nil, errProducerNotInitialised
	}
	if size <= 0 {
		size = defaultQueueSize
	}
	a := &AsyncPublisher{
		sink:        sink,
		logger:      logger.Component(log, "intake_events_async"),
		sendTimeout: defaultSendTimeout,
		queue:       make(chan models.IntakeEvent, size),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	go a.drain()
	return a, nil
}

// PublishIntakeEvent enqueues event without blocking.
func (a *AsyncPublisher) PublishIntakeEvent(_ context.Context, event models.IntakeEvent) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrPublisherClosed
	}
	select {
	case a.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting events and waits for queued ones to be handed to the
// sink, or for ctx to end.
func (a *AsyncPublisher) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *AsyncPublisher) drain() {
	defer close(a.done)
	for event := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.sendTimeout)
		err := a.sink.PublishIntakeEvent(ctx, event)
		cancel()
		if err != nil {
			a.logger.Warn().
				Err(err).
				Str("event_type", event.EventType).
				Str("request_id", event.RequestID).
				Msg("intake event dropped")
		}
	}
}
