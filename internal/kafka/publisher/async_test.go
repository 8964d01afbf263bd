package publisher_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	kafkapublisher "github.com/example/roadside-intake/internal/kafka/publisher"
	"github.com/example/roadside-intake/internal/models"
)

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	got     []string
	err     error
}

func (b *blockingSink) PublishIntakeEvent(_ context.Context, event models.IntakeEvent) error {
	<-b.release
	b.mu.Lock()
	defer b.mu.Unlock()
	b.got = append(b.got, event.EventID)
	return b.err
}

func (b *blockingSink) delivered() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.got...)
}

func TestAsyncPublisherDoesNotWaitForSink(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	pub, err := kafkapublisher.NewAsyncPublisher(sink, 4, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	returned := make(chan error, 1)
	go func() {
		returned <- pub.PublishIntakeEvent(context.Background(), models.IntakeEvent{EventID: "evt-1"})
	}()

	select {
	case err := <-returned:
		if err != nil {
			t.Fatalf("unexpected enqueue error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a stalled sink")
	}

	close(sink.release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := pub.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := sink.delivered(); len(got) != 1 || got[0] != "evt-1" {
		t.Fatalf("expected queued event to be delivered, got %v", got)
	}
}

func TestAsyncPublisherDropsWhenQueueFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	pub, _ := kafkapublisher.NewAsyncPublisher(sink, 1, zerolog.Nop())

	var full bool
	for i := 0; i < 5; i++ {
		if err := pub.PublishIntakeEvent(context.Background(), models.IntakeEvent{EventID: "evt"}); errors.Is(err, kafkapublisher.ErrQueueFull) {
			full = true
			break
		}
	}
	if !full {
		t.Fatalf("expected ErrQueueFull once the sink stalls")
	}

	close(sink.release)
	if err := pub.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestAsyncPublisherRejectsAfterClose(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{}), err: errors.New("broker down")}
	close(sink.release)
	pub, _ := kafkapublisher.NewAsyncPublisher(sink, 2, zerolog.Nop())

	if err := pub.PublishIntakeEvent(context.Background(), models.IntakeEvent{EventID: "evt-1"}); err != nil {
		t.Fatalf("unexpected enqueue error: %v", err)
	}
	if err := pub.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := pub.Close(context.Background()); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := pub.PublishIntakeEvent(context.Background(), models.IntakeEvent{}); !errors.Is(err, kafkapublisher.ErrPublisherClosed) {
		t.Fatalf("expected ErrPublisherClosed, got %v", err)
	}
}

func TestAsyncPublisherCloseHonoursContext(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	pub, _ := kafkapublisher.NewAsyncPublisher(sink, 2, zerolog.Nop())
	_ = pub.PublishIntakeEvent(context.Background(), models.IntakeEvent{EventID: "stuck"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := pub.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	close(sink.release)
}

func TestNewAsyncPublisherRequiresSink(t *testing.T) {
	if _, err := kafkapublisher.NewAsyncPublisher(nil, 1, zerolog.Nop()); err == nil {
		t.Fatalf("expected error without sink")
	}
}
