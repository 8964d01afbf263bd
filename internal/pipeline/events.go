package pipeline

import (
	"context"

	"github.com/example/roadside-intake/internal/models"
)

// EventPublisher receives observational state transitions. Publish errors are
// logged by the orchestrator and never change the outcome of a submission.
type EventPublisher interface {
	PublishIntakeEvent(ctx context.Context, event models.IntakeEvent) error
}

type nopPublisher struct{}

func (nopPublisher) PublishIntakeEvent(context.Context, models.IntakeEvent) error { return nil }
